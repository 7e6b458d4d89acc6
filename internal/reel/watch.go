package reel

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/toasterreels/reels/internal/feed"
	"github.com/toasterreels/reels/internal/httputil"
	"github.com/toasterreels/reels/internal/store"
)

type watchResponse struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	MediaURL  string   `json:"mediaUrl"`
	Hashtags  []string `json:"hashtags"`
	LikeCount int      `json:"likeCount"`
	ShopURL   string   `json:"shopUrl,omitempty"`
	CreatedAt string   `json:"createdAt"`
}

// Watch resolves one record for playback and, in the remote variant,
// records the view in the background. View recording is best-effort and
// never delays the response.
func (h *Handler) Watch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rec, err := h.feed.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httputil.WriteError(w, http.StatusNotFound, "reel not found")
			return
		}
		httputil.WriteError(w, http.StatusInternalServerError, "failed to load reel")
		return
	}

	if h.remote != nil {
		h.recordView(r, rec)
	}

	httputil.WriteJSON(w, http.StatusOK, watchResponse{
		ID:        rec.ID,
		Title:     rec.Title,
		MediaURL:  rec.MediaRef,
		Hashtags:  rec.Hashtags,
		LikeCount: rec.LikeCount,
		ShopURL:   rec.ShopURL,
		CreatedAt: rec.CreatedAt.Format(time.RFC3339),
	})
}

func (h *Handler) recordView(r *http.Request, rec feed.Record) {
	ip := clientIP(r)
	ua := r.UserAgent()
	referrer := categorizeReferrer(r.Header.Get("Referer"))

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		browser, device := parseUserAgent(ua)
		var country, city string
		if h.geo != nil {
			loc := h.geo.Lookup(ip)
			country, city = loc.Country, loc.City
		}
		if err := h.remote.RecordView(ctx, store.View{
			ReelID:     rec.ID,
			ViewerHash: viewerHash(ip, ua),
			Referrer:   referrer,
			Browser:    browser,
			Device:     device,
			Country:    country,
			City:       city,
		}); err != nil {
			slog.Error("reel: failed to record view", "reel_id", rec.ID, "error", err)
		}
	}()
}

func viewerHash(ip, userAgent string) string {
	sum := sha256.Sum256([]byte(ip + "|" + userAgent))
	return fmt.Sprintf("%x", sum[:8])
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		if first, _, ok := strings.Cut(forwarded, ","); ok {
			return strings.TrimSpace(first)
		}
		return strings.TrimSpace(forwarded)
	}
	return r.RemoteAddr
}

func categorizeReferrer(referrer string) string {
	if referrer == "" {
		return "direct"
	}
	lowered := strings.ToLower(referrer)
	switch {
	case strings.Contains(lowered, "instagram."), strings.Contains(lowered, "tiktok."),
		strings.Contains(lowered, "facebook."), strings.Contains(lowered, "twitter."),
		strings.Contains(lowered, "x.com"), strings.Contains(lowered, "youtube."):
		return "social"
	case strings.Contains(lowered, "google."), strings.Contains(lowered, "bing."),
		strings.Contains(lowered, "duckduckgo."):
		return "search"
	default:
		return "other"
	}
}
