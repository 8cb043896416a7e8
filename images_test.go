package spacetraveling

import (
	"bytes"
	"image"
	"image/png"
	"strings"
	"testing"
)

func encodePNG(t *testing.T, w, h int) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, testImage(w, h)); err != nil {
		t.Fatal(err)
	}
	return &buf
}

func TestProcessBanner(t *testing.T) {
	tests := []struct {
		name         string
		w, h, max    int
		wantW, wantH int
	}{
		{"scales down wide images", 400, 200, 100, 100, 50},
		{"keeps narrow images", 80, 40, 100, 80, 40},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := processBanner(encodePNG(t, tt.w, tt.h), tt.max)
			if err != nil {
				t.Fatalf("processBanner: %v", err)
			}
			cfg, format, err := image.DecodeConfig(bytes.NewReader(out))
			if err != nil {
				t.Fatalf("decode output: %v", err)
			}
			if format != "jpeg" || cfg.Width != tt.wantW || cfg.Height != tt.wantH {
				t.Errorf("got %s %dx%d, want jpeg %dx%d", format, cfg.Width, cfg.Height, tt.wantW, tt.wantH)
			}
		})
	}
}

func TestProcessBannerRejectsGarbage(t *testing.T) {
	if _, err := processBanner(strings.NewReader("not an image"), 100); err == nil {
		t.Fatal("expected decode error")
	}
}
