package handler

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DukeRupert/oraculo/internal/domain"
	"github.com/DukeRupert/oraculo/internal/storage"
)

func TestFileHandler_ServeFile(t *testing.T) {
	store, err := storage.NewLocalStorage(storage.LocalConfig{
		BasePath: t.TempDir(),
		BaseURL:  "http://localhost:8080/files",
	}, discardLogger())
	require.NoError(t, err)
	require.NoError(t, store.Put(context.Background(), "cards/07.jpg", strings.NewReader("jpeg bytes"), storage.PutOptions{
		ContentType: "image/jpeg",
	}))

	mux := http.NewServeMux()
	NewFileHandler(store, discardLogger()).RegisterRoutes(mux)

	rec := serve(t, mux, "GET", "/files/cards/07.jpg", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
	assert.Equal(t, "10", rec.Header().Get("Content-Length"))
	assert.NotEmpty(t, rec.Header().Get("Last-Modified"))
	assert.Equal(t, "jpeg bytes", rec.Body.String())

	rec = serve(t, mux, "GET", "/files/cards/08.jpg", "")
	requireErrorCode(t, rec, http.StatusNotFound, domain.ENOTFOUND)
}
