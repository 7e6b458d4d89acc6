package feed

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"
)

// SessionState is the wizard step of an upload session.
type SessionState int

const (
	CollectingMetadata SessionState = iota
	SelectingFile
	Transferring
	Done
)

func (s SessionState) String() string {
	switch s {
	case SelectingFile:
		return "selecting-file"
	case Transferring:
		return "transferring"
	case Done:
		return "done"
	default:
		return "collecting-metadata"
	}
}

// MediaTypeMP4 is the only media type accepted for upload. Everything else
// is rejected before any transfer begins.
const MediaTypeMP4 = "video/mp4"

var (
	ErrTitleRequired        = errors.New("a title for the video is required")
	ErrShopURLRequired      = errors.New("a shop link is required")
	ErrNoFile               = errors.New("a video file must be selected")
	ErrUnsupportedMediaType = errors.New("only MP4 files are accepted")
	ErrTransferInProgress   = errors.New("a transfer is in progress")
	ErrSessionDone          = errors.New("upload session already finished")
)

// FileInput describes the file selected in step two. Open is used by real
// transfers to read the payload; the simulated local transfer never calls it.
type FileInput struct {
	Name        string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

// Transferrer moves the selected file to durable storage, reporting
// fractional progress from 0 to 100, and resolves to a playable media ref.
type Transferrer interface {
	Transfer(ctx context.Context, file FileInput, onProgress func(percent int)) (mediaRef string, err error)
}

// Publisher receives the completed record. The local variant prepends it to
// the feed controller immediately; the remote variant inserts it into the
// feed store, where it surfaces through the next snapshot push. Publish
// returns the record's authoritative id.
type Publisher interface {
	Publish(ctx context.Context, rec Record) (id string, err error)
}

// Session is the two-step upload wizard: metadata entry, then file
// selection and transfer. It produces exactly one record and is discarded
// afterwards. While a transfer is underway every input and the advance
// control are rejected with ErrTransferInProgress.
type Session struct {
	mu         sync.Mutex
	state      SessionState
	title      string
	tags       string
	shopURL    string
	needsShop  bool
	file       *FileInput
	progress   int
	transfer   Transferrer
	publisher  Publisher
	onProgress func(percent int)
}

// SessionConfig wires a session to its collaborators.
type SessionConfig struct {
	Transfer       Transferrer
	Publisher      Publisher
	RequireShopURL bool              // remote variant: shop link mandatory in step one
	OnProgress     func(percent int) // optional progress observer
}

// NewSession starts a wizard in the CollectingMetadata step.
func NewSession(cfg SessionConfig) *Session {
	return &Session{
		transfer:   cfg.Transfer,
		publisher:  cfg.Publisher,
		needsShop:  cfg.RequireShopURL,
		onProgress: cfg.OnProgress,
	}
}

// State returns the current wizard step.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Progress returns the last reported transfer percentage.
func (s *Session) Progress() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress
}

// SetTitle records the title input.
func (s *Session) SetTitle(title string) error {
	return s.setInput(func() { s.title = title })
}

// SetTags records the comma-separated hashtag input.
func (s *Session) SetTags(tags string) error {
	return s.setInput(func() { s.tags = tags })
}

// SetShopURL records the shop link input.
func (s *Session) SetShopURL(u string) error {
	return s.setInput(func() { s.shopURL = u })
}

// SelectFile records the chosen file in step two.
func (s *Session) SelectFile(file FileInput) error {
	return s.setInput(func() { s.file = &file })
}

// Back returns from file selection to metadata entry.
func (s *Session) Back() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Transferring {
		return ErrTransferInProgress
	}
	if s.state == Done {
		return ErrSessionDone
	}
	s.state = CollectingMetadata
	return nil
}

// Next advances the wizard. From CollectingMetadata it validates the
// metadata, in order, and moves to SelectingFile. From SelectingFile it
// validates the file, runs the transfer, publishes the record, and finishes.
// Validation failures block the advance and leave the step unchanged; a
// transfer failure leaves the session in Transferring with no retry.
func (s *Session) Next(ctx context.Context) (Record, error) {
	s.mu.Lock()
	switch s.state {
	case CollectingMetadata:
		defer s.mu.Unlock()
		if strings.TrimSpace(s.title) == "" {
			return Record{}, ErrTitleRequired
		}
		if s.needsShop && strings.TrimSpace(s.shopURL) == "" {
			return Record{}, ErrShopURLRequired
		}
		s.state = SelectingFile
		return Record{}, nil

	case SelectingFile:
		if s.file == nil {
			s.mu.Unlock()
			return Record{}, ErrNoFile
		}
		if s.file.ContentType != MediaTypeMP4 {
			s.mu.Unlock()
			return Record{}, ErrUnsupportedMediaType
		}
		s.state = Transferring
		file := *s.file
		s.mu.Unlock()
		return s.runTransfer(ctx, file)

	case Transferring:
		s.mu.Unlock()
		return Record{}, ErrTransferInProgress

	default:
		s.mu.Unlock()
		return Record{}, ErrSessionDone
	}
}

func (s *Session) runTransfer(ctx context.Context, file FileInput) (Record, error) {
	mediaRef, err := s.transfer.Transfer(ctx, file, s.reportProgress)
	if err != nil {
		// Stay in Transferring: the viewer restarts with a new session.
		return Record{}, err
	}

	s.mu.Lock()
	rec := Record{
		ID:        NewLocalID(),
		Title:     s.title,
		Hashtags:  ParseHashtags(s.tags),
		MediaRef:  mediaRef,
		ShopURL:   s.shopURL,
		CreatedAt: time.Now().UTC(),
	}
	s.mu.Unlock()

	id, err := s.publisher.Publish(ctx, rec)
	if err != nil {
		return Record{}, err
	}
	rec.ID = id

	s.mu.Lock()
	s.progress = 100
	s.state = Done
	s.mu.Unlock()
	return rec, nil
}

func (s *Session) reportProgress(percent int) {
	s.mu.Lock()
	s.progress = percent
	fn := s.onProgress
	s.mu.Unlock()
	if fn != nil {
		fn(percent)
	}
}

func (s *Session) setInput(apply func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.state == Done:
		return ErrSessionDone
	case s.state == Transferring && s.transferLocked():
		return ErrTransferInProgress
	}
	apply()
	return nil
}

// transferLocked reports whether inputs are frozen: progress strictly
// between 0 and 100 while transferring.
func (s *Session) transferLocked() bool {
	return s.progress > 0 && s.progress < 100
}

// LocalTransfer simulates an upload for the in-memory variant: progress
// advances by Step percentage points every Interval until it reaches 100,
// then the file is addressed by a transient process-local handle that is
// only playable within the current session.
type LocalTransfer struct {
	Step     int           // default 10
	Interval time.Duration // default 200ms
}

func (lt LocalTransfer) Transfer(ctx context.Context, file FileInput, onProgress func(int)) (string, error) {
	step := lt.Step
	if step <= 0 {
		step = 10
	}
	interval := lt.Interval
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}

	for p := step; ; p += step {
		if p > 100 {
			p = 100
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(interval):
		}
		onProgress(p)
		if p >= 100 {
			break
		}
	}
	return "local://" + NewLocalID() + "/" + file.Name, nil
}
