package service

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/DukeRupert/oraculo/internal/domain"
	"github.com/DukeRupert/oraculo/internal/storage"
	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngImage(t *testing.T, w, h int) *bytes.Buffer {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, h/2, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return &buf
}

func TestArtworkService_UploadCardImage(t *testing.T) {
	ctx := context.Background()
	store, err := storage.NewLocalStorage(storage.LocalConfig{
		BasePath: t.TempDir(),
		BaseURL:  "http://localhost:8080/files",
	}, testLogger())
	require.NoError(t, err)
	svc := NewArtworkService(store, testLogger())

	url, err := svc.UploadCardImage(ctx, 7, pngImage(t, 1200, 1000))
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/files/cards/07.jpg", url)

	rc, info, err := store.Get(ctx, domain.CardImageKey(7))
	require.NoError(t, err)
	defer rc.Close()
	assert.Equal(t, "image/jpeg", info.ContentType)

	img, err := imaging.Decode(rc)
	require.NoError(t, err)
	assert.Equal(t, CardImageWidth, img.Bounds().Dx())
	assert.Equal(t, 500, img.Bounds().Dy())
}

func TestArtworkService_Errors(t *testing.T) {
	ctx := context.Background()
	store, err := storage.NewLocalStorage(storage.LocalConfig{BasePath: t.TempDir()}, testLogger())
	require.NoError(t, err)
	svc := NewArtworkService(store, testLogger())

	_, err = svc.UploadCardImage(ctx, 37, pngImage(t, 10, 10))
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))

	_, err = svc.UploadCardImage(ctx, 1, strings.NewReader("not an image"))
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))

	_, err = svc.CardImageURL(ctx, 0)
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))
}

func TestArtworkService_CardImageLifecycle(t *testing.T) {
	ctx := context.Background()
	store, err := storage.NewLocalStorage(storage.LocalConfig{
		BasePath: t.TempDir(),
		BaseURL:  "http://localhost:8080/files",
	}, testLogger())
	require.NoError(t, err)
	svc := NewArtworkService(store, testLogger())

	// No artwork yet.
	_, err = svc.CardImageURL(ctx, 3)
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))

	_, err = svc.UploadCardImage(ctx, 3, pngImage(t, 60, 100))
	require.NoError(t, err)

	url, err := svc.CardImageURL(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/files/cards/03.jpg", url)

	require.NoError(t, svc.DeleteCardImage(ctx, 3))
	require.NoError(t, svc.DeleteCardImage(ctx, 3))

	_, err = svc.CardImageURL(ctx, 3)
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))

	err = svc.DeleteCardImage(ctx, 99)
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))
}
