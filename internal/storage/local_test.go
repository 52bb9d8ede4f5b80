package storage

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLocal(t *testing.T) *LocalStorage {
	t.Helper()
	s, err := NewLocalStorage(LocalConfig{
		BasePath: t.TempDir(),
		BaseURL:  "http://localhost:8080/files/",
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return s
}

func TestLocalStorage_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newLocal(t)

	require.NoError(t, s.Put(ctx, "cards/07.jpg", strings.NewReader("first"), PutOptions{}))
	require.NoError(t, s.Put(ctx, "cards/07.jpg", strings.NewReader("second"), PutOptions{}))

	rc, info, err := s.Get(ctx, "cards/07.jpg")
	require.NoError(t, err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)

	assert.Equal(t, "second", string(body))
	assert.Equal(t, int64(6), info.Size)
	assert.Equal(t, "image/jpeg", info.ContentType)

	ok, err := s.Exists(ctx, "cards/07.jpg")
	require.NoError(t, err)
	assert.True(t, ok)

	url, err := s.URL(ctx, "cards/07.jpg", 0)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/files/cards/07.jpg", url)

	require.NoError(t, s.Delete(ctx, "cards/07.jpg"))
	require.NoError(t, s.Delete(ctx, "cards/07.jpg"))

	_, _, err = s.Get(ctx, "cards/07.jpg")
	assert.True(t, IsNotFound(err))
}

func TestLocalStorage_MaxSize(t *testing.T) {
	ctx := context.Background()
	s := newLocal(t)

	err := s.Put(ctx, "cards/01.jpg", strings.NewReader("0123456789"), PutOptions{MaxSize: 5})
	assert.True(t, IsTooLarge(err))

	ok, err := s.Exists(ctx, "cards/01.jpg")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestValidateKey(t *testing.T) {
	tests := []struct {
		key   string
		valid bool
	}{
		{"cards/01.jpg", true},
		{"", false},
		{"/etc/passwd", false},
		{"../secret", false},
		{"cards/../../x", false},
		{"cards//01.jpg", false},
		{"cards/./01.jpg", false},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			err := validateKey(tt.key)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidKey)
			}
		})
	}
}
