package courier

import "sync"

// Session caches the courier bearer token for the whole process. The token
// lives until the courier rejects it; concurrent refreshes are tolerated since
// every stored token is valid.
type Session struct {
	mu    sync.RWMutex
	token string
}

// NewSession returns an empty session. A token is fetched on first use.
func NewSession() *Session {
	return &Session{}
}

// Token returns the cached token, or "" when a login is needed.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Store replaces the cached token.
func (s *Session) Store(token string) {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
}

// Invalidate drops the token only if it still equals rejected, so a token
// refreshed by another request is kept.
func (s *Session) Invalidate(rejected string) {
	s.mu.Lock()
	if s.token == rejected {
		s.token = ""
	}
	s.mu.Unlock()
}

// Reset clears the token unconditionally.
func (s *Session) Reset() {
	s.Store("")
}
