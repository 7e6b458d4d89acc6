package reel

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/toasterreels/reels/internal/feed"
	"github.com/toasterreels/reels/internal/httputil"
	"github.com/toasterreels/reels/internal/store"
	"github.com/toasterreels/reels/internal/validate"
)

const uploadURLExpiry = 30 * time.Minute

type createRequest struct {
	Title       string `json:"title"`
	Tags        string `json:"tags"`
	ShopURL     string `json:"shopUrl"`
	FileSize    int64  `json:"fileSize"`
	ContentType string `json:"contentType"`
}

type createResponse struct {
	ID        string `json:"id"`
	UploadURL string `json:"uploadUrl"`
	ShareURL  string `json:"shareUrl"`
}

// Create begins a browser-direct upload: it validates the metadata the
// wizard collected, inserts an uploading record, and presigns the PUT the
// browser transfers the blob through. Progress events come from the
// browser's own upload machinery; the record stays out of the feed until
// Complete confirms the blob.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// Step-one validation, in wizard order.
	if strings.TrimSpace(req.Title) == "" {
		httputil.WriteError(w, http.StatusBadRequest, feed.ErrTitleRequired.Error())
		return
	}
	if strings.TrimSpace(req.ShopURL) == "" {
		httputil.WriteError(w, http.StatusBadRequest, feed.ErrShopURLRequired.Error())
		return
	}
	if msg := validate.Title(req.Title); msg != "" {
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}
	if msg := validate.ShopURL(req.ShopURL); msg != "" {
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}
	hashtags := feed.ParseHashtags(req.Tags)
	if msg := validate.Tags(hashtags); msg != "" {
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}

	// Step-two gate: exactly the MP4 video type, declared up front so the
	// presigned PUT pins it.
	if req.ContentType != feed.MediaTypeMP4 {
		httputil.WriteError(w, http.StatusBadRequest, feed.ErrUnsupportedMediaType.Error())
		return
	}
	if req.FileSize <= 0 {
		httputil.WriteError(w, http.StatusBadRequest, "fileSize must be positive")
		return
	}
	if h.maxUploadBytes > 0 && req.FileSize > h.maxUploadBytes {
		httputil.WriteError(w, http.StatusBadRequest, "file too large")
		return
	}

	token, err := generateFileToken()
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to generate file token")
		return
	}
	fileKey := reelFileKey(token)

	id, err := h.remote.CreateUploading(r.Context(), store.CreateParams{
		Title:    req.Title,
		Hashtags: hashtags,
		FileKey:  fileKey,
		ShopURL:  req.ShopURL,
	})
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to create reel")
		return
	}

	uploadURL, err := h.storage.GenerateUploadURL(r.Context(), fileKey, feed.MediaTypeMP4, req.FileSize, uploadURLExpiry)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to generate upload URL")
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, createResponse{
		ID:        id,
		UploadURL: uploadURL,
		ShareURL:  h.ShareURL(id),
	})
}

type completeRequest struct {
	Status string `json:"status"`
}

// Complete verifies the transferred blob and flips the record to ready,
// which pushes a fresh snapshot to every subscriber. The new record reaches
// feeds only through that push; there is no local prepend, so the latency
// gap between upload completion and feed appearance is the push latency.
func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req completeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Status != "ready" {
		httputil.WriteError(w, http.StatusBadRequest, "status can only be set to ready")
		return
	}

	fileKey, err := h.remote.UploadingFileKey(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, http.StatusNotFound, "reel not found")
		return
	}

	size, contentType, err := h.storage.HeadObject(r.Context(), fileKey)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "could not verify upload")
		return
	}
	if size <= 0 || (h.maxUploadBytes > 0 && size > h.maxUploadBytes) {
		httputil.WriteError(w, http.StatusBadRequest, "uploaded file invalid size")
		return
	}
	if contentType != feed.MediaTypeMP4 {
		httputil.WriteError(w, http.StatusBadRequest, feed.ErrUnsupportedMediaType.Error())
		return
	}

	if err := h.remote.MarkReady(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httputil.WriteError(w, http.StatusNotFound, "reel not found")
			return
		}
		httputil.WriteError(w, http.StatusInternalServerError, "failed to update reel")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type feedResponse struct {
	Records []feed.Record `json:"records"`
}

// List returns the current full record set in feed order.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	records, err := h.feed.List(r.Context())
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to load feed")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, feedResponse{Records: records})
}

type likeRequest struct {
	Delta int `json:"delta"`
}

// Like applies an atomic ±1 adjustment to a record's like count. The
// viewer's optimistic state lives client-side; a failure here is its cue
// to roll back.
func (h *Handler) Like(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req likeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Delta != 1 && req.Delta != -1 {
		httputil.WriteError(w, http.StatusBadRequest, "delta must be 1 or -1")
		return
	}

	if err := h.feed.IncrementLikes(r.Context(), id, req.Delta); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httputil.WriteError(w, http.StatusNotFound, "reel not found")
			return
		}
		httputil.WriteError(w, http.StatusInternalServerError, "failed to update likes")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Extend appends the next sample-pool clone when the viewer scrolls near
// the end of the local feed. The remote variant has no pool and does not
// route this.
func (h *Handler) Extend(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.extender.ExtendNearEnd()
	if !ok {
		httputil.WriteError(w, http.StatusConflict, "feed cannot be extended")
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, rec)
}
