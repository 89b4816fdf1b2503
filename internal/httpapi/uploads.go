package httpapi

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/lexiqai/voice-relay/internal/observability"
)

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// sanitizeFilename reduces name to a safe base name.
func sanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(strings.TrimSpace(name), `\`, "/"))
	name = unsafeFilenameChars.ReplaceAllString(name, "_")
	name = strings.TrimLeft(name, "._")
	if name == "" {
		return "audio"
	}
	return name
}

func (s *Server) handleUploadAudio(w http.ResponseWriter, r *http.Request) {
	upload, err := s.readUpload(w, r, "audio")
	if err != nil {
		s.rejectUpload(w, r, "upload_audio", "", err)
		return
	}

	contentType, err := s.pipeline.ReceiveAudio(upload)
	if err != nil {
		s.rejectUpload(w, r, "upload_audio", "", err)
		return
	}

	logger := observability.LoggerFrom(r.Context())
	name := fmt.Sprintf("recording_%s_%s", s.now().Format("20060102_150405"), sanitizeFilename(upload.Filename))
	if err := os.MkdirAll(s.cfg.UploadDir, 0o755); err != nil {
		logger.Error().Err(err).Str("dir", s.cfg.UploadDir).Msg("Failed to create upload directory")
		respondError(w, http.StatusInternalServerError, "storage_error", "Could not store the recording")
		return
	}
	if err := os.WriteFile(filepath.Join(s.cfg.UploadDir, name), upload.Data, 0o644); err != nil {
		logger.Error().Err(err).Str("filename", name).Msg("Failed to save upload")
		respondError(w, http.StatusInternalServerError, "storage_error", "Could not store the recording")
		return
	}

	logger.Info().Str("filename", name).Int("size", len(upload.Data)).Msg("Recording saved")
	respondJSON(w, http.StatusOK, uploadResponse{
		Status:      "success",
		Filename:    name,
		ContentType: contentType,
		Size:        len(upload.Data),
		Message:     "Audio uploaded successfully",
	})
}
