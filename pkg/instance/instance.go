package instance

import (
	"os"
	"strings"
)

const fallbackID = "terminal-0"

// ID identifies the terminal this process serves: STOREFRONT_TERMINAL_ID,
// then the hostname, then a fixed default.
func ID() string {
	if id := strings.TrimSpace(os.Getenv("STOREFRONT_TERMINAL_ID")); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return fallbackID
}
