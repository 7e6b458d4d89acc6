package reel

import "github.com/mssola/useragent"

// parseUserAgent classifies a raw user-agent string into a browser name
// and a coarse device class for view analytics.
func parseUserAgent(raw string) (browser, device string) {
	if raw == "" {
		return "unknown", "unknown"
	}
	ua := useragent.New(raw)

	browser, _ = ua.Browser()
	if browser == "" {
		browser = "unknown"
	}

	switch {
	case ua.Bot():
		device = "bot"
	case ua.Mobile():
		device = "mobile"
	default:
		device = "desktop"
	}
	return browser, device
}
