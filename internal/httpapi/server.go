// Package httpapi exposes the voice pipeline over HTTP and WebSocket.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lexiqai/voice-relay/internal/config"
	"github.com/lexiqai/voice-relay/internal/observability"
	"github.com/lexiqai/voice-relay/internal/orchestrator"
	"github.com/lexiqai/voice-relay/internal/session"
	"github.com/lexiqai/voice-relay/internal/tts"
)

// Pipeline is the orchestrator surface the handlers drive.
type Pipeline interface {
	Converse(ctx context.Context, req orchestrator.ConverseRequest) *orchestrator.Result
	Echo(ctx context.Context, entry string, upload *orchestrator.Upload, voice string) *orchestrator.Result
	Transcribe(ctx context.Context, entry string, upload *orchestrator.Upload) *orchestrator.Result
	RespondText(ctx context.Context, entry, prompt, voice string) *orchestrator.Result
	Speak(ctx context.Context, entry, text, voice string) *orchestrator.Result
	ReceiveAudio(upload *orchestrator.Upload) (string, error)
	Reject(ctx context.Context, entry, sessionID string, inErr *orchestrator.InputError) *orchestrator.Result
}

// Voices lists and refreshes the synthesis voice catalog.
type Voices interface {
	Current() []string
	Contains(voiceID string) bool
	Refresh(ctx context.Context) ([]string, error)
	RefreshIfStale(ctx context.Context)
}

// testPrompt is the fixed input of /test_pipeline.
const testPrompt = "Hello, how are you today?"

// multipartMemory is how much of a multipart body is held in memory before
// spilling to temporary files.
const multipartMemory = 8 << 20

type Server struct {
	cfg      *config.Config
	pipeline Pipeline
	voices   Voices
	checks   map[string]observability.HealthCheckFunc
	upgrader websocket.Upgrader
	now      func() time.Time
}

func New(cfg *config.Config, pipeline Pipeline, voices Voices, checks map[string]observability.HealthCheckFunc) *Server {
	return &Server{
		cfg:      cfg,
		pipeline: pipeline,
		voices:   voices,
		checks:   checks,
		now:      time.Now,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     sameOrigin,
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", observability.HealthCheckHandler())
	r.Get("/ready", observability.ReadinessHandler(s.checks))
	if s.cfg.MetricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Post("/agent/chat/{session_id}", s.handleChat)
	r.Get("/agent/ws/{session_id}", s.handleSessionWS)
	r.Post("/llm/query", s.handleStateless("llm_query"))
	r.Post("/api/process-audio", s.handleStateless("process_audio"))
	r.Post("/api/start-recording", s.handleStartRecording)
	r.Post("/api/stop-recording", s.handleStopRecording)
	r.Post("/tts/echo", s.handleEcho)
	r.Post("/generate_audio", s.handleGenerateAudio)
	r.Post("/transcribe/file", s.handleTranscribeFile)
	r.Post("/upload_audio", s.handleUploadAudio)
	r.Post("/test_pipeline", s.handleTestPipeline)
	r.Get("/get_voices", s.handleVoices)

	return r
}

// requestLogger attaches a correlation-scoped logger to every request and
// logs its completion.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		correlationID := strings.TrimSpace(r.Header.Get(middleware.RequestIDHeader))
		if correlationID == "" {
			correlationID = observability.NewCorrelationID()
		}
		logger := observability.WithCorrelationID(correlationID)
		w.Header().Set(middleware.RequestIDHeader, correlationID)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r.WithContext(observability.ContextWithLogger(r.Context(), logger)))

		logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("Request handled")
	})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(chi.URLParam(r, "session_id"))
	s.converse(w, r, "agent_chat", sessionID)
}

func (s *Server) handleStateless(entry string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.converse(w, r, entry, "")
	}
}

func (s *Server) handleStartRecording(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, recordingAck{
		Status:  "recording_started",
		Message: "Recording session initialized",
	})
}

func (s *Server) handleStopRecording(w http.ResponseWriter, r *http.Request) {
	s.converse(w, r, "stop_recording", session.NewTimestampID(s.now()))
}

func (s *Server) converse(w http.ResponseWriter, r *http.Request, entry, sessionID string) {
	upload, err := s.readUpload(w, r, "audio")
	if err != nil {
		s.rejectUpload(w, r, entry, sessionID, err)
		return
	}
	res := s.pipeline.Converse(r.Context(), orchestrator.ConverseRequest{
		Entry:     entry,
		SessionID: sessionID,
		Upload:    upload,
		Voice:     r.FormValue("voice"),
	})
	writeResult(w, res)
}

func (s *Server) handleEcho(w http.ResponseWriter, r *http.Request) {
	upload, err := s.readUpload(w, r, "audio")
	if err != nil {
		s.rejectUpload(w, r, "tts_echo", "", err)
		return
	}
	writeResult(w, s.pipeline.Echo(r.Context(), "tts_echo", upload, r.FormValue("voice")))
}

func (s *Server) handleGenerateAudio(w http.ResponseWriter, r *http.Request) {
	var req generateAudioRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		respondError(w, http.StatusBadRequest, string(orchestrator.CategoryInvalidInput), "Text is required")
		return
	}

	if strings.TrimSpace(req.Voice) != "" && !s.voices.Contains(req.Voice) {
		observability.LoggerFrom(r.Context()).Warn().
			Str("voice", req.Voice).
			Msg("Requested voice is not in the catalog, passing it to the provider as given")
	}

	res := s.pipeline.Speak(r.Context(), "generate_audio", req.Text, req.Voice)
	if !res.Success {
		writeResult(w, res)
		return
	}
	respondJSON(w, http.StatusOK, generateAudioResponse{
		Success:   true,
		AudioURL:  res.AudioURL,
		VoiceUsed: res.VoiceUsed,
		Warning:   res.Warning,
	})
}

func (s *Server) handleTranscribeFile(w http.ResponseWriter, r *http.Request) {
	upload, err := s.readUpload(w, r, "file", "audio")
	if err != nil {
		s.rejectUpload(w, r, "transcribe_file", "", err)
		return
	}
	res := s.pipeline.Transcribe(r.Context(), "transcribe_file", upload)
	if !res.Success {
		writeResult(w, res)
		return
	}
	respondJSON(w, http.StatusOK, transcriptionResponse{
		Transcription: res.Transcription,
		Status:        "success",
		Message:       "Audio transcribed successfully",
	})
}

func (s *Server) handleTestPipeline(w http.ResponseWriter, r *http.Request) {
	res := s.pipeline.RespondText(r.Context(), "test_pipeline", testPrompt, "")
	if !res.Success {
		writeResult(w, res)
		return
	}
	respondJSON(w, http.StatusOK, testPipelineResponse{
		Success:     true,
		InputText:   testPrompt,
		LLMResponse: res.LLMResponse,
		AudioURL:    res.AudioURL,
		Warning:     res.Warning,
	})
}

// handleVoices serves the catalog, refreshing it first when it is past its
// TTL or when ?refresh=true forces it.
func (s *Server) handleVoices(w http.ResponseWriter, r *http.Request) {
	if !strings.EqualFold(r.URL.Query().Get("refresh"), "true") {
		s.voices.RefreshIfStale(r.Context())
		respondJSON(w, http.StatusOK, voicesResponse{Voices: s.voices.Current()})
		return
	}

	voices, err := s.voices.Refresh(r.Context())
	if err != nil {
		observability.LoggerFrom(r.Context()).Warn().Err(err).Msg("Voice catalog refresh failed, serving cached voices")
	}
	respondJSON(w, http.StatusOK, voicesResponse{Voices: voices})
}

// readUpload extracts the first file found under fields. A missing file
// yields a nil upload so the pipeline can report it. The file is read up to
// one byte past the limit so oversize recordings are rejected downstream. A
// body too large to parse is returned as an *orchestrator.InputError.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request, fields ...string) (*orchestrator.Upload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+multipartMemory)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return nil, &orchestrator.InputError{
				Reason:  orchestrator.ReasonAudioTooLarge,
				Message: fmt.Sprintf("Request body exceeds the %d byte limit", tooLarge.Limit),
			}
		case errors.Is(err, http.ErrNotMultipart), errors.Is(err, http.ErrMissingBoundary):
			return nil, nil
		default:
			return nil, err
		}
	}

	if r.MultipartForm == nil {
		return nil, nil
	}
	for _, field := range fields {
		file, header, err := r.FormFile(field)
		if err != nil {
			// A part with an empty filename is parsed as a plain value.
			if vals, ok := r.MultipartForm.Value[field]; ok && len(vals) > 0 {
				return &orchestrator.Upload{Data: []byte(vals[0])}, nil
			}
			continue
		}
		defer file.Close()

		data, err := io.ReadAll(io.LimitReader(file, s.cfg.MaxUploadBytes+1))
		if err != nil {
			return nil, err
		}
		return &orchestrator.Upload{Filename: header.Filename, Data: data}, nil
	}
	return nil, nil
}

// rejectUpload answers a failed readUpload. Input errors go through the
// pipeline so the caller still gets fallback audio; malformed requests get a
// plain 400.
func (s *Server) rejectUpload(w http.ResponseWriter, r *http.Request, entry, sessionID string, err error) {
	var inErr *orchestrator.InputError
	if errors.As(err, &inErr) {
		writeResult(w, s.pipeline.Reject(r.Context(), entry, sessionID, inErr))
		return
	}
	respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
}

// StatusFor maps a pipeline result to its HTTP status code.
func StatusFor(res *orchestrator.Result) int {
	if res.Success {
		return http.StatusOK
	}
	switch res.Error {
	case orchestrator.CategoryInvalidInput:
		return http.StatusBadRequest
	case orchestrator.CategoryTranscriptionFailed:
		if res.Reason == string(orchestrator.ReasonNoSpeech) {
			return http.StatusBadRequest
		}
		return http.StatusInternalServerError
	case orchestrator.CategoryTTSFailed:
		if res.Reason == string(tts.KindTimeout) {
			return http.StatusGatewayTimeout
		}
		return http.StatusInternalServerError
	case orchestrator.CategoryServiceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeResult(w http.ResponseWriter, res *orchestrator.Result) {
	respondJSON(w, StatusFor(res), res)
}

func sameOrigin(r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	if err := sonic.ConfigDefault.NewDecoder(r.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) || strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = sonic.ConfigDefault.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: code, Message: message})
}
