package instance

import (
	"os"

	"github.com/angelmondragon/stockroute-backend/pkg/env"
)

// GetID identifies the running process in logs: the platform dyno name, then
// the container hostname, then "local".
func GetID() string {
	if id := env.Get("DYNO", ""); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "local"
}
