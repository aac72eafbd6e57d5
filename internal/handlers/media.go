// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"broadcaster/internal/middleware"
	"broadcaster/internal/storage"
)

// Uploader stores post images.
type Uploader interface {
	UploadImage(ctx context.Context, userID uuid.UUID, contentType string, body io.Reader, size int64) (*storage.Object, error)
}

// Media handles image uploads for photo posts.
type Media struct {
	uploader Uploader
}

// NewMedia creates a Media handler. A nil uploader disables uploads.
func NewMedia(uploader Uploader) *Media {
	return &Media{uploader: uploader}
}

// Upload accepts a multipart "file" and returns its public URL, which
// can be sent as imageUrl to the publish endpoints.
func (m *Media) Upload(w http.ResponseWriter, r *http.Request) {
	if m.uploader == nil {
		writeError(w, http.StatusServiceUnavailable, "Media storage is not configured")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, storage.MaxImageSize+1024)
	if err := r.ParseMultipartForm(storage.MaxImageSize); err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "File too large. Maximum size is 8 MB.")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file provided.")
		return
	}
	defer file.Close()

	// Trust the bytes, not the client's Content-Type.
	sniff := make([]byte, 512)
	n, err := io.ReadFull(file, sniff)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Could not read file.")
		return
	}
	contentType := http.DetectContentType(sniff[:n])
	body := io.MultiReader(bytes.NewReader(sniff[:n]), file)

	userID := middleware.UserIDFromCtx(r.Context())
	obj, err := m.uploader.UploadImage(r.Context(), userID, contentType, body, header.Size)
	if errors.Is(err, storage.ErrUnsupportedType) {
		writeError(w, http.StatusUnsupportedMediaType, "Only JPEG, PNG, GIF and WebP images are supported.")
		return
	}
	if err != nil {
		slog.Error("media upload failed", "error", err, "user_id", userID)
		writeError(w, http.StatusInternalServerError, "Upload failed.")
		return
	}
	slog.Info("media uploaded", "user_id", userID, "key", obj.Key, "size", obj.Size)
	writeJSON(w, http.StatusCreated, obj)
}
