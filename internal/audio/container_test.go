package audio

import "testing"

func TestAllowedExtension(t *testing.T) {
	tests := []struct {
		filename string
		expected bool
	}{
		{"recording.wav", true},
		{"recording.MP3", true},
		{"voice.note.ogg", true},
		{"clip.webm", true},
		{"clip.flac", false},
		{"noextension", false},
		{"", false},
		{".wav", true},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			if got := AllowedExtension(tt.filename); got != tt.expected {
				t.Errorf("AllowedExtension(%q): expected %v, got %v", tt.filename, tt.expected, got)
			}
		})
	}
}

func TestMimeType(t *testing.T) {
	if got := MimeType("mp3"); got != "audio/mpeg" {
		t.Errorf("Expected audio/mpeg, got %s", got)
	}
	if got := MimeType("WEBM"); got != "audio/webm" {
		t.Errorf("Expected audio/webm, got %s", got)
	}
	if got := MimeType("exe"); got != "application/octet-stream" {
		t.Errorf("Expected application/octet-stream, got %s", got)
	}
}

func TestSniff(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		ext  string
		ok   bool
	}{
		{"wav", []byte("RIFF\x24\x08\x00\x00WAVEfmt "), ExtWAV, true},
		{"riff but not wave", []byte("RIFF\x24\x08\x00\x00AVI LIST"), "", false},
		{"ogg", []byte("OggS\x00\x02"), ExtOGG, true},
		{"webm", append([]byte{0x1A, 0x45, 0xDF, 0xA3, 0x9F, 0x42, 0x82, 0x84}, "webm"...), ExtWebM, true},
		{"matroska", append([]byte{0x1A, 0x45, 0xDF, 0xA3, 0x9F, 0x42, 0x82, 0x88}, "matroska"...), "", false},
		{"mp3 id3", []byte("ID3\x04\x00"), ExtMP3, true},
		{"mp3 frame sync", []byte{0xFF, 0xFB, 0x90, 0x64}, ExtMP3, true},
		{"text", []byte("hello"), "", false},
		{"flac", []byte("fLaC\x00\x00\x00\x22"), "", false},
		{"empty", nil, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ext, ok := Sniff(tt.data)
			if ext != tt.ext || ok != tt.ok {
				t.Errorf("Expected (%q, %v), got (%q, %v)", tt.ext, tt.ok, ext, ok)
			}
		})
	}
}
