package reel

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/toasterreels/reels/internal/feed"
	"github.com/toasterreels/reels/internal/httputil"
	"github.com/toasterreels/reels/internal/validate"
)

type uploadResponse struct {
	ID       string `json:"id"`
	ShareURL string `json:"shareUrl"`
}

// Upload drives a complete two-step session server-side from one multipart
// request: metadata fields, then the file part, then the transfer. The
// local variant simulates the transfer and prepends the record; the remote
// variant streams the blob to storage and inserts the record into the
// store, where it surfaces through the next snapshot push.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	limit := h.maxUploadBytes
	if limit <= 0 {
		limit = 500 * 1024 * 1024
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit+1024*1024)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}

	title := r.FormValue("title")
	if msg := validate.Title(title); msg != "" {
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}
	if msg := validate.Tags(feed.ParseHashtags(r.FormValue("tags"))); msg != "" {
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}
	// shopUrl renders as a link, so the remote variant pins its shape here;
	// a missing value falls through to the session's step-one gate.
	if shopURL := r.FormValue("shopUrl"); !h.Local() && strings.TrimSpace(shopURL) != "" {
		if msg := validate.ShopURL(shopURL); msg != "" {
			httputil.WriteError(w, http.StatusBadRequest, msg)
			return
		}
	}

	session := h.newSession(nil)
	_ = session.SetTitle(title)
	_ = session.SetTags(r.FormValue("tags"))
	_ = session.SetShopURL(r.FormValue("shopUrl"))

	// Step one: metadata.
	if _, err := session.Next(r.Context()); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Step two: file selection.
	file, header, err := r.FormFile("video")
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, feed.ErrNoFile.Error())
		return
	}
	defer func() { _ = file.Close() }()

	if h.maxUploadBytes > 0 && header.Size > h.maxUploadBytes {
		httputil.WriteError(w, http.StatusBadRequest, "file too large")
		return
	}

	_ = session.SelectFile(feed.FileInput{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Open: func() (io.ReadCloser, error) {
			return header.Open()
		},
	})

	rec, err := session.Next(r.Context())
	if err != nil {
		switch {
		case errors.Is(err, feed.ErrNoFile), errors.Is(err, feed.ErrUnsupportedMediaType):
			httputil.WriteError(w, http.StatusBadRequest, err.Error())
		default:
			slog.Error("reel: upload transfer failed", "title", title, "error", err)
			httputil.WriteError(w, http.StatusInternalServerError, "upload failed")
		}
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, uploadResponse{
		ID:       rec.ID,
		ShareURL: h.ShareURL(rec.ID),
	})
}

// BlobTransfer moves the session's file into object storage, reporting
// fractional progress as the payload streams, and resolves to the stored
// object key. It implements feed.Transferrer for the remote variant.
type BlobTransfer struct {
	Storage ObjectStorage
}

func (t BlobTransfer) Transfer(ctx context.Context, file feed.FileInput, onProgress func(percent int)) (string, error) {
	token, err := generateFileToken()
	if err != nil {
		return "", err
	}
	key := reelFileKey(token)

	body, err := file.Open()
	if err != nil {
		return "", err
	}
	defer func() { _ = body.Close() }()

	if err := t.Storage.Upload(ctx, key, body, file.Size, file.ContentType, onProgress); err != nil {
		return "", err
	}
	return key, nil
}
