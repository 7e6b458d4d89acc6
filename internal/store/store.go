// Package store implements the remote feed store: an append-only reels
// collection in Postgres, queried by snapshot subscription and mutated by
// insert and atomic field update. Every successful mutation re-reads the
// full collection and pushes it to all subscribers, so consumers always
// receive complete record sets in receipt order.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/toasterreels/reels/internal/database"
	"github.com/toasterreels/reels/internal/feed"
)

// ErrNotFound is returned when a reel id does not exist or is not visible.
var ErrNotFound = errors.New("reel not found")

// mediaURLExpiry bounds how long a pushed media URL stays retrievable.
const mediaURLExpiry = 1 * time.Hour

// MediaResolver turns a stored object key into a retrievable URL.
// *storage.Storage satisfies it.
type MediaResolver interface {
	GenerateDownloadURL(ctx context.Context, key string, expiry time.Duration) (string, error)
}

// Store is the Postgres-backed feed store.
type Store struct {
	db    database.DBTX
	media MediaResolver

	mu   sync.Mutex
	subs map[chan []feed.Record]struct{}
}

// New creates a store over the given pool. media may be nil, in which case
// records carry their raw object keys instead of resolvable URLs.
func New(db database.DBTX, media MediaResolver) *Store {
	return &Store{
		db:    db,
		media: media,
		subs:  make(map[chan []feed.Record]struct{}),
	}
}

// CreateParams describes a record inserted ahead of a browser-direct upload.
type CreateParams struct {
	Title    string
	Hashtags []string
	FileKey  string
	ShopURL  string
}

// CreateUploading inserts a new record in the uploading state and returns
// its store-assigned id. The record stays invisible to the feed until
// MarkReady confirms the blob arrived.
func (s *Store) CreateUploading(ctx context.Context, p CreateParams) (string, error) {
	var id string
	err := s.db.QueryRow(ctx,
		`INSERT INTO reels (title, hashtags, file_key, shop_url, status)
		 VALUES ($1, $2, $3, $4, 'uploading') RETURNING id`,
		p.Title, p.Hashtags, p.FileKey, p.ShopURL,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("insert reel: %w", err)
	}
	return id, nil
}

// UploadingFileKey returns the object key of a record still waiting for
// its blob, so the upload can be verified before the record goes live.
func (s *Store) UploadingFileKey(ctx context.Context, id string) (string, error) {
	var key string
	err := s.db.QueryRow(ctx,
		`SELECT file_key FROM reels WHERE id = $1 AND status = 'uploading'`,
		id,
	).Scan(&key)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("lookup uploading reel: %w", err)
	}
	return key, nil
}

// MarkReady flips an uploading record to ready and pushes a fresh snapshot.
func (s *Store) MarkReady(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE reels SET status = 'ready', updated_at = now()
		 WHERE id = $1 AND status = 'uploading'`,
		id,
	)
	if err != nil {
		return fmt.Errorf("mark reel ready: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	s.broadcast(ctx)
	return nil
}

// Publish inserts a completed record directly in the ready state. It
// implements feed.Publisher for server-side upload sessions; rec.MediaRef
// carries the object key the transfer produced. The record reaches feeds
// through the snapshot push this triggers, not through a local prepend.
func (s *Store) Publish(ctx context.Context, rec feed.Record) (string, error) {
	var id string
	err := s.db.QueryRow(ctx,
		`INSERT INTO reels (title, hashtags, file_key, shop_url, status)
		 VALUES ($1, $2, $3, $4, 'ready') RETURNING id`,
		rec.Title, rec.Hashtags, rec.MediaRef, rec.ShopURL,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("publish reel: %w", err)
	}
	s.broadcast(ctx)
	return id, nil
}

// IncrementLikes applies an atomic relative adjustment to a record's like
// count, floored at zero. It never writes an absolute value, so concurrent
// viewers cannot clobber each other.
func (s *Store) IncrementLikes(ctx context.Context, id string, delta int) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE reels SET like_count = GREATEST(like_count + $1, 0), updated_at = now()
		 WHERE id = $2 AND status = 'ready'`,
		delta, id,
	)
	if err != nil {
		return fmt.Errorf("increment likes: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	s.broadcast(ctx)
	return nil
}

// List returns the full ready record set, newest first.
func (s *Store) List(ctx context.Context) ([]feed.Record, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, title, hashtags, file_key, like_count, shop_url, created_at
		 FROM reels WHERE status = 'ready' ORDER BY created_at DESC, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list reels: %w", err)
	}
	defer rows.Close()

	records := make([]feed.Record, 0)
	for rows.Next() {
		rec, err := s.scanRecord(ctx, rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list reels: %w", err)
	}
	return records, nil
}

// Get returns one ready record by id.
func (s *Store) Get(ctx context.Context, id string) (feed.Record, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, title, hashtags, file_key, like_count, shop_url, created_at
		 FROM reels WHERE id = $1 AND status = 'ready'`,
		id,
	)
	if err != nil {
		return feed.Record{}, fmt.Errorf("get reel: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return feed.Record{}, fmt.Errorf("get reel: %w", err)
		}
		return feed.Record{}, ErrNotFound
	}
	return s.scanRecord(ctx, rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanRecord(ctx context.Context, row rowScanner) (feed.Record, error) {
	var rec feed.Record
	var fileKey string
	if err := row.Scan(&rec.ID, &rec.Title, &rec.Hashtags, &fileKey, &rec.LikeCount, &rec.ShopURL, &rec.CreatedAt); err != nil {
		return feed.Record{}, fmt.Errorf("scan reel: %w", err)
	}
	rec.MediaRef = fileKey
	if s.media != nil {
		url, err := s.media.GenerateDownloadURL(ctx, fileKey, mediaURLExpiry)
		if err != nil {
			return feed.Record{}, fmt.Errorf("resolve media for %s: %w", rec.ID, err)
		}
		rec.MediaRef = url
	}
	return rec, nil
}

// View is one playback event recorded for analytics.
type View struct {
	ReelID     string
	ViewerHash string
	Referrer   string
	Browser    string
	Device     string
	Country    string
	City       string
}

// RecordView appends a view row. Failures are the caller's to log; views
// are best-effort and never block playback.
func (s *Store) RecordView(ctx context.Context, v View) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO reel_views (reel_id, viewer_hash, referrer, browser, device, country, city)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		v.ReelID, v.ViewerHash, v.Referrer, v.Browser, v.Device, v.Country, v.City,
	)
	if err != nil {
		return fmt.Errorf("record view: %w", err)
	}
	return nil
}

// Subscribe returns a channel of full record sets. The current set is
// delivered immediately, then a new one after every mutation. The channel
// holds at most one pending snapshot; when the consumer lags, stale
// snapshots are replaced rather than queued. Cancel the context or call
// the returned func to tear the subscription down.
func (s *Store) Subscribe(ctx context.Context) (<-chan []feed.Record, func()) {
	ch := make(chan []feed.Record, 1)

	initial, err := s.List(ctx)
	if err != nil {
		slog.Error("store: initial snapshot failed", "error", err)
	}

	s.mu.Lock()
	s.subs[ch] = struct{}{}
	if err == nil {
		ch <- initial
	}
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, ch)
			close(ch)
			s.mu.Unlock()
		})
	}
	if ctx.Done() != nil {
		go func() {
			<-ctx.Done()
			cancel()
		}()
	}
	return ch, cancel
}

// broadcast re-reads the collection and pushes it to every subscriber.
func (s *Store) broadcast(ctx context.Context) {
	s.mu.Lock()
	idle := len(s.subs) == 0
	s.mu.Unlock()
	if idle {
		return
	}

	snapshot, err := s.List(ctx)
	if err != nil {
		slog.Error("store: snapshot refresh failed", "error", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.subs {
		select {
		case ch <- snapshot:
		default:
			// Drop the stale pending snapshot; the latest full set wins.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snapshot:
			default:
			}
		}
	}
}
