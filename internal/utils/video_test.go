package utils

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProbeOutput(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   VideoMetadata
	}{
		{"横屏", "1920,1080\n12.500000\n", VideoMetadata{Width: 1920, Height: 1080, Duration: 12.5}},
		{"竖屏无时长", "1080,1920\n", VideoMetadata{Width: 1080, Height: 1920}},
		{"时长为N/A", "720,720\nN/A\n", VideoMetadata{Width: 720, Height: 720}},
		{"单行输出", "1280,720,3.2", VideoMetadata{Width: 1280, Height: 720, Duration: 3.2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseProbeOutput(tt.output)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseProbeOutput_Invalid(t *testing.T) {
	for _, out := range []string{"", "abc,def", "0,720", "1920"} {
		_, err := ParseProbeOutput(out)
		assert.Error(t, err, out)
	}
}

func TestDefaultVideoMetadata_AspectRatio(t *testing.T) {
	ratio := DefaultVideoMetadata.AspectRatio()
	assert.True(t, math.Abs(ratio-1.7777) < 0.001)
	assert.Zero(t, VideoMetadata{Width: 10}.AspectRatio())
}
