package api

import (
	"net/http"
	"os"
	"time"

	"github.com/angelmondragon/stockroute-backend/pkg/config"
)

const (
	readHeaderTimeout = 10 * time.Second
	writeTimeout      = 60 * time.Second
	idleTimeout       = 120 * time.Second
)

// Addr returns the listen address. PORT, when set by the platform, wins over
// the configured port.
func Addr(cfg *config.Config) string {
	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	return ":" + port
}

// NewServer wraps the router in an http.Server with conservative timeouts.
// Courier calls made inside a request are bounded by the courier client
// timeout, which must stay below writeTimeout.
func NewServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              Addr(cfg),
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}
}
