package stt

import (
	"bytes"
	"context"
	"fmt"

	api "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/rest"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	listenClient "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"

	"github.com/lexiqai/voice-relay/internal/config"
	"github.com/lexiqai/voice-relay/internal/observability"
)

// DeepgramClient transcribes complete recordings with Deepgram's prerecorded API.
type DeepgramClient struct {
	model    string
	language string
	dg       *api.Client
}

// NewDeepgramClient creates a new Deepgram prerecorded client
func NewDeepgramClient(cfg *config.Config) *DeepgramClient {
	c := listenClient.NewREST(cfg.DeepgramAPIKey, &interfaces.ClientOptions{})
	return &DeepgramClient{
		model:    cfg.DeepgramModel,
		language: cfg.DeepgramLanguage,
		dg:       api.New(c),
	}
}

// Name implements Provider.
func (d *DeepgramClient) Name() string {
	return config.ProviderDeepgram
}

// Transcribe implements Provider. The container is detected by Deepgram from the bytes.
func (d *DeepgramClient) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	options := &interfaces.PreRecordedTranscriptionOptions{
		Model:       d.model,
		Language:    d.language,
		Punctuate:   true,
		SmartFormat: true,
	}

	res, err := d.dg.FromStream(ctx, bytes.NewReader(audio), options)
	if err != nil {
		return "", fmt.Errorf("deepgram transcription failed: %w", err)
	}
	if res == nil || res.Results == nil || len(res.Results.Channels) == 0 {
		return "", nil
	}

	channel := res.Results.Channels[0]
	if len(channel.Alternatives) == 0 {
		return "", nil
	}
	alt := channel.Alternatives[0]

	observability.LoggerFrom(ctx).Debug().
		Str("mime_type", mimeType).
		Float64("confidence", alt.Confidence).
		Msg("Deepgram transcription received")
	return alt.Transcript, nil
}
