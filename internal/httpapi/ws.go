package httpapi

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/lexiqai/voice-relay/internal/audio"
	"github.com/lexiqai/voice-relay/internal/observability"
	"github.com/lexiqai/voice-relay/internal/orchestrator"
)

const (
	wsIdleTimeout  = 120 * time.Second
	wsWriteTimeout = 10 * time.Second
)

// handleSessionWS runs one pipeline turn per binary message. Turns on a
// connection are processed in order, so history stays consistent.
func (s *Server) handleSessionWS(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(chi.URLParam(r, "session_id"))
	logger := observability.LoggerFrom(r.Context()).With().Str("session_id", sessionID).Logger()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to upgrade connection to WebSocket")
		return
	}
	defer conn.Close()

	ctx := observability.ContextWithLogger(r.Context(), logger)
	logger.Info().Msg("WebSocket session connected")

	// Frames past MaxUploadBytes are drained and answered as too large; only
	// frames beyond the HTTP body cap drop the connection.
	conn.SetReadLimit(s.cfg.MaxUploadBytes + multipartMemory)
	_ = conn.SetReadDeadline(time.Now().Add(wsIdleTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsIdleTimeout))
	})

	for {
		msgType, reader, err := conn.NextReader()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn().Err(err).Msg("WebSocket read error")
			}
			break
		}
		data, err := io.ReadAll(io.LimitReader(reader, s.cfg.MaxUploadBytes+1))
		if err == nil {
			_, err = io.Copy(io.Discard, reader)
		}
		if err != nil {
			logger.Warn().Err(err).Msg("WebSocket read error")
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsIdleTimeout))

		var res *orchestrator.Result
		switch {
		case msgType != websocket.BinaryMessage:
			res = s.pipeline.Reject(ctx, "agent_ws", sessionID, &orchestrator.InputError{
				Reason:  orchestrator.ReasonInvalidFileType,
				Message: "Send each recording as one binary message",
			})
		case int64(len(data)) > s.cfg.MaxUploadBytes:
			res = s.pipeline.Reject(ctx, "agent_ws", sessionID, &orchestrator.InputError{
				Reason:  orchestrator.ReasonAudioTooLarge,
				Message: fmt.Sprintf("Audio exceeds the %d byte limit", s.cfg.MaxUploadBytes),
			})
		default:
			res = s.pipeline.Converse(ctx, orchestrator.ConverseRequest{
				Entry:     "agent_ws",
				SessionID: sessionID,
				Upload:    sniffedUpload(data),
			})
		}

		payload, err := sonic.Marshal(res)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to encode result")
			break
		}
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			logger.Warn().Err(err).Msg("WebSocket write error")
			break
		}
	}

	logger.Info().Msg("WebSocket session closed")
}

// sniffedUpload names a raw recording after its detected container. Unknown
// containers get no extension and are rejected by the pipeline.
func sniffedUpload(data []byte) *orchestrator.Upload {
	name := "recording"
	if ext, ok := audio.Sniff(data); ok {
		name += "." + ext
	}
	return &orchestrator.Upload{Filename: name, Data: data}
}
