package feed

import (
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

// Record is one entry in the reels feed.
type Record struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Hashtags  []string  `json:"hashtags"`
	MediaRef  string    `json:"mediaRef"`
	LikeCount int       `json:"likeCount"`
	ShopURL   string    `json:"shopUrl,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// ParseHashtags converts comma-separated free text into #-prefixed tags.
// Entries are trimmed, empty entries are dropped, so a bare "#" never
// appears in the result.
func ParseHashtags(input string) []string {
	tags := make([]string, 0)
	for _, part := range strings.Split(input, ",") {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		tags = append(tags, "#"+trimmed)
	}
	return tags
}

var lastLocalID atomic.Int64

// NewLocalID returns a timestamp-derived identifier for records created
// outside the remote store. IDs are bumped past the previous one so they
// stay unique within the process even under a coarse clock.
func NewLocalID() string {
	for {
		prev := lastLocalID.Load()
		next := time.Now().UnixMilli()
		if next <= prev {
			next = prev + 1
		}
		if lastLocalID.CompareAndSwap(prev, next) {
			return strconv.FormatInt(next, 10)
		}
	}
}

// SamplePool is the fixed set of placeholder reels the local variant seeds
// its feed from and cycles through when the viewer scrolls near the end.
func SamplePool() []Record {
	return []Record{
		{
			ID:       "1",
			Title:    "Big Buck Bunny",
			Hashtags: []string{"#bunny", "#nature"},
			MediaRef: "https://commondatastorage.googleapis.com/gtv-videos-bucket/sample/BigBuckBunny.mp4",
		},
		{
			ID:       "2",
			Title:    "Elephant's Dream",
			Hashtags: []string{"#dream", "#elephant"},
			MediaRef: "https://commondatastorage.googleapis.com/gtv-videos-bucket/sample/ElephantsDream.mp4",
		},
		{
			ID:       "3",
			Title:    "Sintel",
			Hashtags: []string{"#sintel", "#animation"},
			MediaRef: "https://commondatastorage.googleapis.com/gtv-videos-bucket/sample/Sintel.mp4",
		},
	}
}
