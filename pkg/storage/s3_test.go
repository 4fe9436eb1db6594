package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateResourceType(t *testing.T) {
	ct, ok := ValidateResourceType("application/pdf", "guide.pdf")
	assert.True(t, ok)
	assert.Equal(t, "application/pdf", ct)

	ct, ok = ValidateResourceType("application/octet-stream", "Handbook.DOCX")
	assert.True(t, ok)
	assert.Equal(t, AllowedResourceExtensions[".docx"], ct)

	ct, ok = ValidateResourceType("text/plain; charset=utf-8", "notes")
	assert.True(t, ok)
	assert.Equal(t, "text/plain", ct)

	_, ok = ValidateResourceType("application/x-msdownload", "setup.exe")
	assert.False(t, ok)
}

func TestResourceKey(t *testing.T) {
	assert.Equal(t, "resources/direct-action/abc.pdf", ResourceKey("Direct Action", "abc", "Guide.PDF"))
	assert.Equal(t, "resources/uncategorised/abc", ResourceKey("!!", "abc", "README"))
	assert.Equal(t, "resources/legal/abc.txt", ResourceKey("legal", "abc", "../../etc/passwd.txt"))
}

func TestPresignGet(t *testing.T) {
	s, err := NewS3(context.Background(), S3Config{
		Region:          "eu-west-1",
		AccessKeyID:     "AKIDEXAMPLE",
		SecretAccessKey: "secret",
		ResourcesBucket: "chapter-resources",
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, 15*time.Minute, s.PresignExpire())

	url, err := s.PresignGet(context.Background(), "resources/legal/abc.pdf")
	require.NoError(t, err)
	assert.Contains(t, url, "chapter-resources")
	assert.Contains(t, url, "resources/legal/abc.pdf")
	assert.Contains(t, url, "X-Amz-Signature=")
}
