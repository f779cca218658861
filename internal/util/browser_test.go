package util

import (
	"strings"
	"testing"
)

func TestBrowserCommand(t *testing.T) {
	t.Parallel()

	tests := []struct {
		goos string
		want string
	}{
		{"windows", "rundll32 url.dll,FileProtocolHandler http://localhost:20261"},
		{"darwin", "open http://localhost:20261"},
		{"linux", "xdg-open http://localhost:20261"},
		{"freebsd", "xdg-open http://localhost:20261"},
	}
	for _, tt := range tests {
		cmd := browserCommand(tt.goos, "http://localhost:20261")
		if got := strings.Join(cmd.Args, " "); got != tt.want {
			t.Fatalf("%s: got %q, want %q", tt.goos, got, tt.want)
		}
	}
}
