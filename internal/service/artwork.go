// Package service contains the business logic layer.
//
// This file implements card artwork: admins upload an image per card, which
// is fitted to the card frame and stored as JPEG.
package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"log/slog"
	"time"

	"github.com/DukeRupert/oraculo/internal/domain"
	"github.com/DukeRupert/oraculo/internal/storage"
	"github.com/disintegration/imaging"
)

const (
	// Card frame size; uploads are scaled to fit inside it.
	CardImageWidth  = 600
	CardImageHeight = 1000

	// CardImageJPEGQuality is the encoding quality of stored artwork.
	CardImageJPEGQuality = 85

	// MaxArtworkUploadBytes caps the size of an uploaded image.
	MaxArtworkUploadBytes = 10 << 20

	artworkURLExpiry = 24 * time.Hour
)

// ArtworkService manages card images.
type ArtworkService interface {
	// UploadCardImage replaces the artwork of a card and returns its URL.
	UploadCardImage(ctx context.Context, cardID int, data io.Reader) (string, error)

	// CardImageURL returns where the artwork of a card can be loaded from.
	// A card without artwork is not found.
	CardImageURL(ctx context.Context, cardID int) (string, error)

	// DeleteCardImage removes the artwork of a card. Removing missing
	// artwork is not an error.
	DeleteCardImage(ctx context.Context, cardID int) error
}

type artworkService struct {
	store  storage.Storage
	logger *slog.Logger
}

// NewArtworkService creates a new ArtworkService.
func NewArtworkService(store storage.Storage, logger *slog.Logger) ArtworkService {
	return &artworkService{
		store:  store,
		logger: logger,
	}
}

func (s *artworkService) UploadCardImage(ctx context.Context, cardID int, data io.Reader) (string, error) {
	const op = "artwork.upload"

	if _, ok := domain.CardByID(cardID); !ok {
		return "", domain.NotFound(op, "card", fmt.Sprint(cardID))
	}

	encoded, width, height, err := fitCardImage(io.LimitReader(data, MaxArtworkUploadBytes+1))
	if err != nil {
		return "", domain.Invalid(op, "the file is not a supported image")
	}

	key := domain.CardImageKey(cardID)
	err = s.store.Put(ctx, key, bytes.NewReader(encoded), storage.PutOptions{
		ContentType: "image/jpeg",
		Public:      true,
	})
	if err != nil {
		return "", domain.Internal(err, op, "failed to store the image")
	}

	s.logger.Info("card artwork uploaded",
		"card_id", cardID,
		"key", key,
		"original_width", width,
		"original_height", height,
		"bytes", len(encoded),
	)
	return s.CardImageURL(ctx, cardID)
}

func (s *artworkService) CardImageURL(ctx context.Context, cardID int) (string, error) {
	const op = "artwork.url"

	if _, ok := domain.CardByID(cardID); !ok {
		return "", domain.NotFound(op, "card", fmt.Sprint(cardID))
	}
	key := domain.CardImageKey(cardID)
	ok, err := s.store.Exists(ctx, key)
	if err != nil {
		return "", domain.Internal(err, op, "failed to look up the image")
	}
	if !ok {
		return "", domain.NotFound(op, "card image", fmt.Sprint(cardID))
	}

	url, err := s.store.URL(ctx, key, artworkURLExpiry)
	if err != nil {
		return "", domain.Internal(err, op, "failed to build the image URL")
	}
	return url, nil
}

func (s *artworkService) DeleteCardImage(ctx context.Context, cardID int) error {
	const op = "artwork.delete"

	if _, ok := domain.CardByID(cardID); !ok {
		return domain.NotFound(op, "card", fmt.Sprint(cardID))
	}
	key := domain.CardImageKey(cardID)
	if err := s.store.Delete(ctx, key); err != nil {
		return domain.Internal(err, op, "failed to delete the image")
	}

	s.logger.Info("card artwork deleted", "card_id", cardID, "key", key)
	return nil
}

// fitCardImage decodes an image, fits it inside the card frame keeping its
// aspect ratio and encodes it as JPEG. It also returns the original size.
func fitCardImage(r io.Reader) ([]byte, int, int, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("decode image: %w", err)
	}
	bounds := img.Bounds()

	fitted := imaging.Fit(img, CardImageWidth, CardImageHeight, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, fitted, imaging.JPEG, imaging.JPEGQuality(CardImageJPEGQuality)); err != nil {
		return nil, 0, 0, fmt.Errorf("encode image: %w", err)
	}
	return buf.Bytes(), bounds.Dx(), bounds.Dy(), nil
}
