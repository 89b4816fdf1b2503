// Package orchestrator runs the transcribe, generate and synthesize pipeline
// for one recording and turns every stage failure into a Result.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/lexiqai/voice-relay/internal/audio"
	"github.com/lexiqai/voice-relay/internal/llm"
	"github.com/lexiqai/voice-relay/internal/observability"
	"github.com/lexiqai/voice-relay/internal/session"
	"github.com/lexiqai/voice-relay/internal/stt"
	"github.com/lexiqai/voice-relay/internal/tts"
)

// Transcriber converts a recording to text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error)
}

// Generator produces a reply given prior turns.
type Generator interface {
	Generate(ctx context.Context, prompt string, history []session.Turn) (string, error)
}

// Synthesizer turns text into audio references.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voiceID string) (*tts.Synthesis, error)
	SynthesizeFallback(ctx context.Context, message string) string
	ResolveVoice(voiceID string) string
}

// Orchestrator composes the adapters and the session store.
type Orchestrator struct {
	stt      Transcriber
	llm      Generator
	tts      Synthesizer
	sessions session.Store
	maxBytes int64
}

// New creates an orchestrator. maxUploadBytes <= 0 uses audio.MaxUploadBytes.
func New(transcriber Transcriber, generator Generator, synthesizer Synthesizer, sessions session.Store, maxUploadBytes int64) *Orchestrator {
	if maxUploadBytes <= 0 {
		maxUploadBytes = audio.MaxUploadBytes
	}
	return &Orchestrator{
		stt:      transcriber,
		llm:      generator,
		tts:      synthesizer,
		sessions: sessions,
		maxBytes: maxUploadBytes,
	}
}

// ConverseRequest is one spoken turn. An empty SessionID runs the pipeline
// without history and leaves the store untouched.
type ConverseRequest struct {
	Entry     string
	SessionID string
	Upload    *Upload
	Voice     string
}

// plan selects which stages an invocation runs.
type plan struct {
	entry      string
	sessionID  string
	upload     *Upload
	prompt     string
	voice      string
	transcribe bool
	generate   bool
	synthesize bool
}

// Converse runs the full pipeline for a recording.
func (o *Orchestrator) Converse(ctx context.Context, req ConverseRequest) *Result {
	return o.run(ctx, plan{
		entry:      req.Entry,
		sessionID:  req.SessionID,
		upload:     req.Upload,
		voice:      req.Voice,
		transcribe: true,
		generate:   true,
		synthesize: true,
	})
}

// Echo transcribes a recording and speaks the transcription back.
func (o *Orchestrator) Echo(ctx context.Context, entry string, upload *Upload, voice string) *Result {
	return o.run(ctx, plan{entry: entry, upload: upload, voice: voice, transcribe: true, synthesize: true})
}

// Transcribe validates and transcribes a recording only.
func (o *Orchestrator) Transcribe(ctx context.Context, entry string, upload *Upload) *Result {
	return o.run(ctx, plan{entry: entry, upload: upload, transcribe: true})
}

// RespondText generates and speaks a reply to a text prompt, without history.
func (o *Orchestrator) RespondText(ctx context.Context, entry, prompt, voice string) *Result {
	return o.run(ctx, plan{entry: entry, prompt: prompt, voice: voice, generate: true, synthesize: true})
}

// Speak synthesizes text directly.
func (o *Orchestrator) Speak(ctx context.Context, entry, text, voice string) *Result {
	return o.run(ctx, plan{entry: entry, prompt: text, voice: voice, synthesize: true})
}

// ReceiveAudio validates an upload and returns its MIME type.
func (o *Orchestrator) ReceiveAudio(u *Upload) (string, error) {
	if u == nil {
		return "", &InputError{Reason: ReasonMissingFile, Message: "No audio file provided"}
	}
	if strings.TrimSpace(u.Filename) == "" {
		return "", &InputError{Reason: ReasonMissingFilename, Message: "No selected file"}
	}
	if !audio.AllowedExtension(u.Filename) {
		return "", &InputError{
			Reason:  ReasonInvalidFileType,
			Message: "Allowed formats: " + strings.Join(audio.AllowedExtensions(), ", "),
		}
	}
	if len(u.Data) == 0 {
		return "", &InputError{Reason: ReasonEmptyAudio, Message: "The uploaded file contains no data"}
	}
	if int64(len(u.Data)) > o.maxBytes {
		return "", &InputError{
			Reason:  ReasonAudioTooLarge,
			Message: fmt.Sprintf("Audio exceeds the %d byte limit", o.maxBytes),
		}
	}
	return audio.MimeType(audio.Extension(u.Filename)), nil
}

// Reject reports an upload the transport refused before the pipeline could
// read it, such as an oversized body or a non-binary WebSocket frame. Like
// every other abort it attempts fallback audio.
func (o *Orchestrator) Reject(ctx context.Context, entry, sessionID string, inErr *InputError) *Result {
	if inErr == nil {
		inErr = &InputError{Reason: ReasonMissingFile, Message: "No audio file provided"}
	}
	ctx, _ = scoped(ctx, entry, sessionID)

	metrics := observability.NewPipelineMetrics(entry)
	metrics.RecordError(string(inErr.Reason), "receive")
	res := &Result{SessionID: sessionID, Reason: string(inErr.Reason)}
	res = o.abort(ctx, res, StageReceiveAudio, CategoryInvalidInput, "", inErr.Message, inputApology(inErr.Reason))
	metrics.RecordOutcome(string(res.Error))
	return res
}

// scoped detaches ctx from client cancellation and tags its logger. Each
// adapter applies its own deadline.
func scoped(ctx context.Context, entry, sessionID string) (context.Context, zerolog.Logger) {
	ctx = context.WithoutCancel(ctx)
	logger := observability.LoggerFrom(ctx).With().Str("entry", entry).Logger()
	if sessionID != "" {
		logger = logger.With().Str("session_id", sessionID).Logger()
	}
	return observability.ContextWithLogger(ctx, logger), logger
}

func (o *Orchestrator) run(ctx context.Context, p plan) (res *Result) {
	ctx, logger := scoped(ctx, p.entry, p.sessionID)

	metrics := observability.NewPipelineMetrics(p.entry)
	res = &Result{SessionID: p.sessionID}
	defer func() {
		outcome := "success"
		if !res.Success {
			outcome = string(res.Error)
		}
		metrics.RecordOutcome(outcome)
	}()

	if (p.transcribe && o.stt == nil) || (p.generate && o.llm == nil) || o.tts == nil {
		return o.abort(ctx, res, StageReceiveAudio, CategoryServiceUnavailable, "",
			"Required providers are not configured", apologyUnavailable)
	}

	if p.sessionID != "" && p.generate {
		if _, err := o.sessions.GetOrCreate(p.sessionID); err != nil {
			return o.abort(ctx, res, StageReceiveAudio, CategoryInvalidInput, "", err.Error(), apologyMissingFile)
		}
	}

	text := p.prompt
	if p.transcribe {
		metrics.RecordStageStart(observability.StageReceive)
		mimeType, err := o.ReceiveAudio(p.upload)
		metrics.RecordStageEnd(observability.StageReceive, err == nil)
		if err != nil {
			var inErr *InputError
			errors.As(err, &inErr)
			metrics.RecordError(string(inErr.Reason), "receive")
			res.Reason = string(inErr.Reason)
			return o.abort(ctx, res, StageReceiveAudio, CategoryInvalidInput, "", inErr.Message, inputApology(inErr.Reason))
		}
		metrics.RecordAudioBytes(len(p.upload.Data))

		metrics.RecordStageStart(observability.StageTranscribe)
		text, err = o.stt.Transcribe(ctx, p.upload.Data, mimeType)
		metrics.RecordStageEnd(observability.StageTranscribe, err == nil)
		if err != nil {
			return o.transcriptionFailed(ctx, res, metrics, err)
		}
		res.Transcription = text
		logger.Info().Int("chars", tts.CharCount(text)).Msg("Audio transcribed")
	}

	spoken := text
	if p.generate {
		var history []session.Turn
		if p.sessionID != "" {
			history = o.sessions.History(p.sessionID)
		}

		metrics.RecordStageStart(observability.StageGenerate)
		reply, err := o.llm.Generate(ctx, text, history)
		metrics.RecordStageEnd(observability.StageGenerate, err == nil)
		if err != nil {
			var genErr *llm.Error
			if errors.As(err, &genErr) {
				res.Type = genErr.Subtype
			}
			metrics.RecordError(res.Type, "generate")
			return o.abort(ctx, res, StageGenerate, CategoryLLMError, "", err.Error(), apologyGeneration)
		}
		res.LLMResponse = reply
		spoken = reply
	}

	if p.synthesize {
		metrics.RecordStageStart(observability.StageSynthesize)
		synth, err := o.tts.Synthesize(ctx, spoken, p.voice)
		metrics.RecordStageEnd(observability.StageSynthesize, err == nil)
		if err != nil {
			kind := tts.KindConnection
			var synthErr *tts.Error
			if errors.As(err, &synthErr) {
				kind = synthErr.Kind
			}
			res.Reason = string(kind)
			metrics.RecordError(string(kind), "synthesize")
			return o.abort(ctx, res, StageSynthesize, CategoryTTSFailed, string(kind), err.Error(), synthesisApology(kind))
		}
		res.AudioURL = AudioRef(synth.URLs)
		res.Warning = synth.Warning
		if !p.generate {
			res.VoiceUsed = synth.Voice
			res.TextLength = tts.CharCount(spoken)
		}
	}

	if p.sessionID != "" && p.generate {
		if err := o.sessions.Append(p.sessionID, text, res.LLMResponse); err != nil {
			logger.Error().Err(err).Msg("Failed to record conversation turns")
		}
	}

	res.Success = true
	res.Stage = StageRespond
	logger.Info().Int("audio_refs", len(res.AudioURL)).Msg("Pipeline completed")
	return res
}

func (o *Orchestrator) transcriptionFailed(ctx context.Context, res *Result, metrics *observability.Metrics, err error) *Result {
	var sttErr *stt.Error
	if !errors.As(err, &sttErr) {
		metrics.RecordError("unknown", "transcribe")
		return o.abort(ctx, res, StageTranscribe, CategoryTranscriptionFailed, "", err.Error(), apologyTranscription)
	}
	metrics.RecordError(string(sttErr.Kind), "transcribe")

	switch sttErr.Kind {
	case stt.KindEmptyAudio:
		res.Reason = string(ReasonEmptyAudio)
		return o.abort(ctx, res, StageReceiveAudio, CategoryInvalidInput, "", sttErr.Message, apologyEmptyAudio)
	case stt.KindNoSpeech:
		res.Reason = string(ReasonNoSpeech)
		return o.abort(ctx, res, StageTranscribe, CategoryTranscriptionFailed, "",
			"The audio file didn't contain any recognizable speech", apologyNoSpeech)
	default:
		return o.abort(ctx, res, StageTranscribe, CategoryTranscriptionFailed, "", sttErr.Message, apologyTranscription)
	}
}

// abort fills res as a failure and attempts fallback audio. A failed fallback
// leaves the audio reference empty.
func (o *Orchestrator) abort(ctx context.Context, res *Result, stage Stage, category Category, reason, message, apology string) *Result {
	res.Success = false
	res.Stage = stage
	res.Error = category
	if reason != "" {
		res.Reason = reason
	}
	res.Message = message
	res.AudioURL = nil

	logger := observability.LoggerFrom(ctx)
	logEvent(logger, category).
		Str("stage", string(stage)).
		Str("category", string(category)).
		Str("reason", res.Reason).
		Str("detail", message).
		Msg("Pipeline aborted")

	if o.tts != nil {
		if url := o.tts.SynthesizeFallback(ctx, apology); url != "" {
			res.AudioURL = AudioRef{url}
		}
	}
	return res
}

func logEvent(logger *zerolog.Logger, category Category) *zerolog.Event {
	if category == CategoryInvalidInput {
		return logger.Warn()
	}
	return logger.Error()
}
