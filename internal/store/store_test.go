package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/toasterreels/reels/internal/feed"
)

type mockMedia struct {
	url string
	err error
}

func (m *mockMedia) GenerateDownloadURL(_ context.Context, _ string, _ time.Duration) (string, error) {
	return m.url, m.err
}

func publishRecord() feed.Record {
	return feed.Record{
		Title:    "my reel",
		Hashtags: []string{"#bunny"},
		MediaRef: "reels/key.mp4",
	}
}

func reelRows() *pgxmock.Rows {
	now := time.Now().UTC()
	return pgxmock.NewRows([]string{"id", "title", "hashtags", "file_key", "like_count", "shop_url", "created_at"}).
		AddRow("r2", "newer", []string{"#two"}, "reels/b.mp4", 4, "https://shop.example.com/b", now).
		AddRow("r1", "older", []string{"#one"}, "reels/a.mp4", 0, "", now.Add(-time.Hour))
}

func TestCreateUploading(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	mock.ExpectQuery(`INSERT INTO reels`).
		WithArgs("my reel", []string{"#bunny"}, "reels/key.mp4", "https://shop.example.com").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("reel-123"))

	s := New(mock, nil)
	id, err := s.CreateUploading(context.Background(), CreateParams{
		Title:    "my reel",
		Hashtags: []string{"#bunny"},
		FileKey:  "reels/key.mp4",
		ShopURL:  "https://shop.example.com",
	})
	if err != nil {
		t.Fatalf("CreateUploading failed: %v", err)
	}
	if id != "reel-123" {
		t.Errorf("id = %q, want reel-123", id)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestMarkReady(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	mock.ExpectExec(`UPDATE reels SET status = 'ready'`).
		WithArgs("reel-123").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	s := New(mock, nil)
	if err := s.MarkReady(context.Background(), "reel-123"); err != nil {
		t.Fatalf("MarkReady failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestMarkReadyUnknownID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	mock.ExpectExec(`UPDATE reels SET status = 'ready'`).
		WithArgs("nope").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	s := New(mock, nil)
	if err := s.MarkReady(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestIncrementLikesIsRelative(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	mock.ExpectExec(`UPDATE reels SET like_count = GREATEST`).
		WithArgs(-1, "reel-123").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	s := New(mock, nil)
	if err := s.IncrementLikes(context.Background(), "reel-123", -1); err != nil {
		t.Fatalf("IncrementLikes failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestIncrementLikesUnknownID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	mock.ExpectExec(`UPDATE reels SET like_count = GREATEST`).
		WithArgs(1, "nope").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	s := New(mock, nil)
	if err := s.IncrementLikes(context.Background(), "nope", 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestListResolvesMediaURLs(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	mock.ExpectQuery(`SELECT id, title, hashtags, file_key, like_count, shop_url, created_at`).
		WillReturnRows(reelRows())

	s := New(mock, &mockMedia{url: "https://cdn.example.com/signed"})
	records, err := s.List(context.Background())
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0].ID != "r2" {
		t.Errorf("newest record should come first, got %s", records[0].ID)
	}
	for _, rec := range records {
		if rec.MediaRef != "https://cdn.example.com/signed" {
			t.Errorf("media ref for %s = %q, want presigned URL", rec.ID, rec.MediaRef)
		}
	}
}

func TestGetNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	mock.ExpectQuery(`SELECT id, title, hashtags, file_key, like_count, shop_url, created_at`).
		WithArgs("nope").
		WillReturnRows(pgxmock.NewRows([]string{"id", "title", "hashtags", "file_key", "like_count", "shop_url", "created_at"}))

	s := New(mock, nil)
	if _, err := s.Get(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestGetQueryFailureIsNotNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	mock.ExpectQuery(`SELECT id, title, hashtags, file_key, like_count, shop_url, created_at`).
		WithArgs("reel-123").
		WillReturnError(errors.New("connection reset"))

	s := New(mock, nil)
	_, err = s.Get(context.Background(), "reel-123")
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want a wrapped query error, not ErrNotFound", err)
	}
}

func TestUploadingFileKey(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	mock.ExpectQuery(`SELECT file_key FROM reels`).
		WithArgs("reel-123").
		WillReturnRows(pgxmock.NewRows([]string{"file_key"}).AddRow("reels/key.mp4"))

	s := New(mock, nil)
	key, err := s.UploadingFileKey(context.Background(), "reel-123")
	if err != nil {
		t.Fatalf("UploadingFileKey failed: %v", err)
	}
	if key != "reels/key.mp4" {
		t.Errorf("key = %q", key)
	}
}

func TestUploadingFileKeyDistinguishesErrors(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	mock.ExpectQuery(`SELECT file_key FROM reels`).
		WithArgs("nope").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(`SELECT file_key FROM reels`).
		WithArgs("reel-123").
		WillReturnError(errors.New("connection reset"))

	s := New(mock, nil)
	if _, err := s.UploadingFileKey(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing row: err = %v, want ErrNotFound", err)
	}
	_, err = s.UploadingFileKey(context.Background(), "reel-123")
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("query failure: err = %v, want a wrapped query error, not ErrNotFound", err)
	}
}

func TestPublishBroadcastsFullSnapshot(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	// Initial subscription snapshot, then the insert, then the refresh.
	mock.ExpectQuery(`SELECT id, title, hashtags, file_key, like_count, shop_url, created_at`).
		WillReturnRows(pgxmock.NewRows([]string{"id", "title", "hashtags", "file_key", "like_count", "shop_url", "created_at"}))
	mock.ExpectQuery(`INSERT INTO reels`).
		WithArgs("my reel", []string{"#bunny"}, "reels/key.mp4", "").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("reel-123"))
	mock.ExpectQuery(`SELECT id, title, hashtags, file_key, like_count, shop_url, created_at`).
		WillReturnRows(reelRows())

	s := New(mock, nil)
	ch, cancel := s.Subscribe(context.Background())
	defer cancel()

	if initial := <-ch; len(initial) != 0 {
		t.Fatalf("initial snapshot has %d records, want 0", len(initial))
	}

	id, err := s.Publish(context.Background(), publishRecord())
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if id != "reel-123" {
		t.Errorf("id = %q, want reel-123", id)
	}

	select {
	case snapshot := <-ch:
		if len(snapshot) != 2 {
			t.Errorf("pushed snapshot has %d records, want the full set of 2", len(snapshot))
		}
	case <-time.After(time.Second):
		t.Fatal("no snapshot pushed after publish")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestSubscribeCancelClosesChannel(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	mock.ExpectQuery(`SELECT id, title, hashtags, file_key, like_count, shop_url, created_at`).
		WillReturnRows(pgxmock.NewRows([]string{"id", "title", "hashtags", "file_key", "like_count", "shop_url", "created_at"}))

	s := New(mock, nil)
	ch, cancel := s.Subscribe(context.Background())
	<-ch
	cancel()
	cancel() // idempotent

	if _, open := <-ch; open {
		t.Error("channel should be closed after cancel")
	}
}

func TestRecordView(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	mock.ExpectExec(`INSERT INTO reel_views`).
		WithArgs("reel-123", "abcd1234", "social", "Firefox", "mobile", "DE", "Berlin").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	s := New(mock, nil)
	err = s.RecordView(context.Background(), View{
		ReelID:     "reel-123",
		ViewerHash: "abcd1234",
		Referrer:   "social",
		Browser:    "Firefox",
		Device:     "mobile",
		Country:    "DE",
		City:       "Berlin",
	})
	if err != nil {
		t.Fatalf("RecordView failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}
