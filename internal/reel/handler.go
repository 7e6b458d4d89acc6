// Package reel serves the feed API: listing and streaming the materialized
// record set, the upload lifecycle, like updates, and playback.
package reel

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"time"

	"github.com/toasterreels/reels/internal/feed"
	"github.com/toasterreels/reels/internal/geoip"
	"github.com/toasterreels/reels/internal/store"
)

// FeedStore is the read-and-like surface both variants provide.
// *store.Store and *store.Memory satisfy it.
type FeedStore interface {
	List(ctx context.Context) ([]feed.Record, error)
	Get(ctx context.Context, id string) (feed.Record, error)
	IncrementLikes(ctx context.Context, id string, delta int) error
	Subscribe(ctx context.Context) (<-chan []feed.Record, func())
}

// RemoteFeed adds the operations only the store-backed variant has.
type RemoteFeed interface {
	CreateUploading(ctx context.Context, p store.CreateParams) (string, error)
	UploadingFileKey(ctx context.Context, id string) (string, error)
	MarkReady(ctx context.Context, id string) error
	RecordView(ctx context.Context, v store.View) error
}

// Extender appends the next sample-pool clone; only the local variant has
// one.
type Extender interface {
	ExtendNearEnd() (feed.Record, bool)
}

// ObjectStorage is the blob uploader capability the remote variant needs.
type ObjectStorage interface {
	GenerateUploadURL(ctx context.Context, key string, contentType string, contentLength int64, expiry time.Duration) (string, error)
	GenerateDownloadURL(ctx context.Context, key string, expiry time.Duration) (string, error)
	HeadObject(ctx context.Context, key string) (int64, string, error)
	Upload(ctx context.Context, key string, body io.Reader, size int64, contentType string, onProgress func(percent int)) error
}

// Handler carries the feed endpoints for one variant.
type Handler struct {
	feed           FeedStore
	remote         RemoteFeed    // nil in the local variant
	storage        ObjectStorage // nil in the local variant
	extender       Extender      // nil in the remote variant
	geo            *geoip.Resolver
	baseURL        string
	maxUploadBytes int64
	defaultMuted   bool
	newSession     func(onProgress func(percent int)) *feed.Session
}

// Config wires a handler. Feed, BaseURL, and NewSession are required;
// Remote/Storage select the remote variant, Extender the local one.
type Config struct {
	Feed           FeedStore
	Remote         RemoteFeed
	Storage        ObjectStorage
	Extender       Extender
	Geo            *geoip.Resolver
	BaseURL        string
	MaxUploadBytes int64
	DefaultMuted   bool
	NewSession     func(onProgress func(percent int)) *feed.Session
}

// NewHandler builds the handler for the configured variant.
func NewHandler(cfg Config) *Handler {
	return &Handler{
		feed:           cfg.Feed,
		remote:         cfg.Remote,
		storage:        cfg.Storage,
		extender:       cfg.Extender,
		geo:            cfg.Geo,
		baseURL:        cfg.BaseURL,
		maxUploadBytes: cfg.MaxUploadBytes,
		defaultMuted:   cfg.DefaultMuted,
		newSession:     cfg.NewSession,
	}
}

// Local reports whether this handler serves the in-memory variant.
func (h *Handler) Local() bool { return h.remote == nil }

// ShareURL builds the shareable link for a record: the record id rides a
// query parameter that the feed page consumes to scroll the entry into
// view.
func (h *Handler) ShareURL(id string) string {
	return fmt.Sprintf("%s/?videoId=%s", h.baseURL, id)
}

func generateFileToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func reelFileKey(token string) string {
	return "reels/" + token + ".mp4"
}
