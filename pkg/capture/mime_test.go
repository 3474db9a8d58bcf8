package capture

import "testing"

func TestNegotiateMimeTypeFirstSupportedWins(t *testing.T) {
	tests := []struct {
		name      string
		supported map[string]bool
		want      string
	}{
		{
			name:      "vp9 preferred",
			supported: map[string]bool{"video/webm;codecs=vp9,opus": true, "video/webm;codecs=vp8,opus": true},
			want:      "video/webm;codecs=vp9,opus",
		},
		{
			name:      "vp8 when vp9 missing",
			supported: map[string]bool{"video/webm;codecs=vp8,opus": true, "video/mp4": true},
			want:      "video/webm;codecs=vp8,opus",
		},
		{
			name:      "plain webm before mp4",
			supported: map[string]bool{"video/webm": true, "video/mp4": true},
			want:      "video/webm",
		},
		{
			name:      "mp4 only",
			supported: map[string]bool{"video/mp4": true},
			want:      "video/mp4",
		},
		{
			name:      "nothing supported falls back",
			supported: map[string]bool{},
			want:      FallbackMimeType,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NegotiateMimeType(CapabilityFunc(func(mt string) bool { return tt.supported[mt] }))
			if got != tt.want {
				t.Fatalf("NegotiateMimeType = %q, want %q", got, tt.want)
			}
			if got == "" {
				t.Fatal("negotiated type must never be empty")
			}
		})
	}
}

func TestNegotiateMimeTypeNilProvider(t *testing.T) {
	if got := NegotiateMimeType(nil); got != FallbackMimeType {
		t.Fatalf("got %q, want fallback", got)
	}
}
