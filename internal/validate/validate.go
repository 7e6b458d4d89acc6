package validate

import (
	"fmt"
	"net/url"
)

// Text field length limits, shared with the /api/limits endpoint.
const (
	MaxTitleLength   = 500
	MaxTagNameLength = 50
	MaxShopURLLength = 500
)

func checkLen(value string, max int, field string) string {
	if len(value) > max {
		return fmt.Sprintf("%s must be %d characters or fewer", field, max)
	}
	return ""
}

func Title(s string) string   { return checkLen(s, MaxTitleLength, "title") }
func TagName(s string) string { return checkLen(s, MaxTagNameLength, "tag name") }

// ShopURL checks length and that the value is an absolute http(s) URL,
// since it is rendered as a link on every reel.
func ShopURL(s string) string {
	if msg := checkLen(s, MaxShopURLLength, "shop URL"); msg != "" {
		return msg
	}
	u, err := url.Parse(s)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "shop URL must be an absolute http(s) URL"
	}
	return ""
}

// Tags validates each already-parsed hashtag.
func Tags(tags []string) string {
	for _, t := range tags {
		if msg := TagName(t); msg != "" {
			return msg
		}
	}
	return ""
}

// FieldLimits returns a map of field names to max lengths for the /api/limits endpoint.
func FieldLimits() map[string]int {
	return map[string]int{
		"title":   MaxTitleLength,
		"tagName": MaxTagNameLength,
		"shopUrl": MaxShopURLLength,
	}
}
