package orchestrator

import (
	"fmt"

	"github.com/bytedance/sonic"
)

// Category is the error category reported in a failed Result.
type Category string

const (
	CategoryInvalidInput        Category = "invalid_input"
	CategoryTranscriptionFailed Category = "transcription_failed"
	CategoryLLMError            Category = "llm_error"
	CategoryTTSFailed           Category = "tts_failed"
	CategoryServiceUnavailable  Category = "service_unavailable"
)

// Reason refines a Category.
type Reason string

const (
	ReasonMissingFile     Reason = "missing_file"
	ReasonMissingFilename Reason = "missing_filename"
	ReasonInvalidFileType Reason = "invalid_file_type"
	ReasonEmptyAudio      Reason = "empty_audio"
	ReasonAudioTooLarge   Reason = "audio_too_large"
	ReasonNoSpeech        Reason = "no_speech_detected"
)

// Stage names a state of the pipeline.
type Stage string

const (
	StageReceiveAudio Stage = "receive_audio"
	StageTranscribe   Stage = "transcribe"
	StageGenerate     Stage = "generate"
	StageSynthesize   Stage = "synthesize"
	StageRespond      Stage = "respond"
)

// AudioRef holds zero or more audio URLs. It encodes as "" when empty, as a
// plain string for one URL and as a list otherwise.
type AudioRef []string

func (a AudioRef) MarshalJSON() ([]byte, error) {
	switch len(a) {
	case 0:
		return []byte(`""`), nil
	case 1:
		return sonic.Marshal(a[0])
	default:
		return sonic.Marshal([]string(a))
	}
}

func (a *AudioRef) UnmarshalJSON(data []byte) error {
	var single string
	if err := sonic.Unmarshal(data, &single); err == nil {
		if single == "" {
			*a = nil
		} else {
			*a = AudioRef{single}
		}
		return nil
	}
	var many []string
	if err := sonic.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("audio_url must be a string or a list of strings: %w", err)
	}
	*a = many
	return nil
}

// First returns the first URL or "".
func (a AudioRef) First() string {
	if len(a) == 0 {
		return ""
	}
	return a[0]
}

// Result is the outcome of one pipeline invocation.
type Result struct {
	Success       bool     `json:"success"`
	Transcription string   `json:"transcription"`
	LLMResponse   string   `json:"llm_response"`
	AudioURL      AudioRef `json:"audio_url"`
	SessionID     string   `json:"session_id,omitempty"`
	Error         Category `json:"error,omitempty"`
	Reason        string   `json:"reason,omitempty"`
	Type          string   `json:"type,omitempty"`
	Message       string   `json:"message,omitempty"`
	Warning       string   `json:"warning,omitempty"`
	VoiceUsed     string   `json:"voice_used,omitempty"`
	TextLength    int      `json:"text_length,omitempty"`

	// Stage is where the invocation ended.
	Stage Stage `json:"-"`
}

// InputError is a rejected upload.
type InputError struct {
	Reason  Reason
	Message string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid input (%s): %s", e.Reason, e.Message)
}

// Upload is one recorded audio file. A nil *Upload means no file was sent.
type Upload struct {
	Filename string
	Data     []byte
}
