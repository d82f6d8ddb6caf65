package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShareKey(t *testing.T) {
	assert.Equal(t, "shares/abc.m4a", ShareKey("abc", "/data/recordings/recording_1_abc.M4A"))
	assert.Equal(t, "shares/abc.mp4", ShareKey("abc", "recording_1_abc.mp4"))
}

func TestContentTypeForFilename(t *testing.T) {
	assert.Equal(t, "audio/mp4", ContentTypeForFilename("a.m4a"))
	assert.Equal(t, "video/mp4", ContentTypeForFilename("a.MP4"))
	assert.Equal(t, "application/octet-stream", ContentTypeForFilename("a.wav"))
}

func TestPresignExpireDefault(t *testing.T) {
	s := &S3{cfg: S3Config{}}
	assert.Equal(t, "15m0s", s.PresignExpire().String())
	s.cfg.PresignExpireMinutes = 60
	assert.Equal(t, "1h0m0s", s.PresignExpire().String())
}
