package instance

import (
	"os"
	"strings"
)

const EnvInstanceID = "PROCUREMENT_INSTANCE_ID"

// GetID returns the process instance identifier used in log fields. It falls
// back to the hostname, then to fallback.
func GetID(fallback string) string {
	if id := strings.TrimSpace(os.Getenv(EnvInstanceID)); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return fallback
}
