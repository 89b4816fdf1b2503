package httpapi

import "github.com/lexiqai/voice-relay/internal/orchestrator"

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type recordingAck struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type generateAudioRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice"`
}

type generateAudioResponse struct {
	Success   bool                  `json:"success"`
	AudioURL  orchestrator.AudioRef `json:"audio_url"`
	VoiceUsed string                `json:"voice_used"`
	Warning   string                `json:"warning,omitempty"`
}

type transcriptionResponse struct {
	Transcription string `json:"transcription"`
	Status        string `json:"status"`
	Message       string `json:"message"`
}

type testPipelineResponse struct {
	Success     bool                  `json:"success"`
	InputText   string                `json:"input_text"`
	LLMResponse string                `json:"llm_response"`
	AudioURL    orchestrator.AudioRef `json:"audio_url"`
	Warning     string                `json:"warning,omitempty"`
}

type uploadResponse struct {
	Status      string `json:"status"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Size        int    `json:"size"`
	Message     string `json:"message"`
}

type voicesResponse struct {
	Voices []string `json:"voices"`
}
