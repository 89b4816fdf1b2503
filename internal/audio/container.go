// Package audio recognises the recorded-speech containers the relay accepts.
package audio

import (
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// MaxUploadBytes is the default ceiling on a single recording.
const MaxUploadBytes = 16 * 1024 * 1024

// Supported container extensions.
const (
	ExtWAV  = "wav"
	ExtMP3  = "mp3"
	ExtOGG  = "ogg"
	ExtWebM = "webm"
)

var mimeTypes = map[string]string{
	ExtWAV:  "audio/wav",
	ExtMP3:  "audio/mpeg",
	ExtOGG:  "audio/ogg",
	ExtWebM: "audio/webm",
}

// AllowedExtensions lists accepted extensions in display order.
func AllowedExtensions() []string {
	return []string{ExtWAV, ExtMP3, ExtOGG, ExtWebM}
}

// Extension returns the lower-cased extension of filename without the dot.
func Extension(filename string) string {
	ext := filepath.Ext(strings.TrimSpace(filename))
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// AllowedExtension reports whether filename has one of the accepted extensions.
func AllowedExtension(filename string) bool {
	_, ok := mimeTypes[Extension(filename)]
	return ok
}

// MimeType returns the MIME type for ext, or application/octet-stream.
func MimeType(ext string) string {
	if mt, ok := mimeTypes[strings.ToLower(ext)]; ok {
		return mt
	}
	return "application/octet-stream"
}

// sniffed maps detected MIME types to accepted extensions. Parents are
// consulted too, so a bare Ogg page counts as ogg.
var sniffed = []struct {
	mime string
	ext  string
}{
	{"audio/wav", ExtWAV},
	{"audio/mpeg", ExtMP3},
	{"audio/ogg", ExtOGG},
	{"application/ogg", ExtOGG},
	{"video/webm", ExtWebM},
}

// Sniff identifies the container from its leading bytes.
func Sniff(data []byte) (string, bool) {
	for m := mimetype.Detect(data); m != nil; m = m.Parent() {
		for _, c := range sniffed {
			if m.Is(c.mime) {
				return c.ext, true
			}
		}
	}
	return "", false
}
