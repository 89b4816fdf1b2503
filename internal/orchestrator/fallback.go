package orchestrator

import "github.com/lexiqai/voice-relay/internal/tts"

// Spoken apologies, one per failure.
const (
	apologyMissingFile     = "Please send an audio message"
	apologyMissingFilename = "The selected file has no name."
	apologyInvalidType     = "Unsupported file format"
	apologyEmptyAudio      = "The audio contains no data"
	apologyTooLarge        = "That recording is too long for me to process."
	apologyTranscription   = "I couldn't understand that audio"
	apologyNoSpeech        = "No speech was detected in the audio."
	apologyGeneration      = "I'm having trouble thinking right now"
	apologySynthesis       = "I can't speak right now"
	apologySynthesisSlow   = "The voice service is taking too long to respond."
	apologyUnavailable     = "System maintenance in progress"
)

func inputApology(reason Reason) string {
	switch reason {
	case ReasonMissingFile:
		return apologyMissingFile
	case ReasonMissingFilename:
		return apologyMissingFilename
	case ReasonInvalidFileType:
		return apologyInvalidType
	case ReasonAudioTooLarge:
		return apologyTooLarge
	default:
		return apologyEmptyAudio
	}
}

func synthesisApology(kind tts.Kind) string {
	if kind == tts.KindTimeout {
		return apologySynthesisSlow
	}
	return apologySynthesis
}
