package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePlatform(t *testing.T) {
	tests := []struct {
		name  string
		probe string
		want  string
	}{
		{
			name:  "linux glibc",
			probe: "Linux x86_64 /lib/x86_64-linux-gnu/libc.so.6",
			want:  "x86_64-unknown-linux-gnu",
		},
		{
			name:  "linux musl",
			probe: "Linux x86_64",
			want:  "x86_64-unknown-linux-musl",
		},
		{
			name:  "linux arm glibc",
			probe: "Linux aarch64 /lib/aarch64-linux-gnu/libc.so.6",
			want:  "aarch64-unknown-linux-gnu",
		},
		{
			name:  "darwin arm64",
			probe: "Darwin arm64",
			want:  "aarch64-apple-darwin",
		},
		{
			name:  "darwin x86_64",
			probe: "Darwin x86_64",
			want:  "x86_64-apple-darwin",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := parsePlatform(tt.probe)
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Triple())
		})
	}
}

func TestParsePlatformErrors(t *testing.T) {
	tests := []struct {
		name  string
		probe string
	}{
		{"unknown os", "Plan9 x86_64"},
		{"unknown arch", "Linux riscv64"},
		{"empty output", ""},
		{"missing arch", "Linux"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parsePlatform(tt.probe)
			assert.Error(t, err)
		})
	}
}
