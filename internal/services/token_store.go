package services

import "sync"

// RefreshTokenStore keeps the single currently-valid refresh token per user.
// Issuing a new token overwrites the previous one, which silently logs out
// other devices. State is process-local: a restart invalidates every entry,
// an accepted trade-off for a single-instance deployment.
type RefreshTokenStore struct {
	mu     sync.RWMutex
	tokens map[int64]string
}

func NewRefreshTokenStore() *RefreshTokenStore {
	return &RefreshTokenStore{tokens: make(map[int64]string)}
}

// Set records token as the only valid refresh token for the user.
func (s *RefreshTokenStore) Set(userID int64, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[userID] = token
}

func (s *RefreshTokenStore) Get(userID int64) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	token, ok := s.tokens[userID]
	return token, ok
}

func (s *RefreshTokenStore) Delete(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, userID)
}

// Len reports the number of live entries, for logging.
func (s *RefreshTokenStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tokens)
}

// AccessTokenBlacklist is the set of access tokens revoked by logout before
// their natural expiry. Entries are never evicted; growth is bounded only by
// the process lifetime (multi-instance deployments would move this to Redis
// with TTL-based eviction).
type AccessTokenBlacklist struct {
	mu      sync.RWMutex
	revoked map[string]struct{}
}

func NewAccessTokenBlacklist() *AccessTokenBlacklist {
	return &AccessTokenBlacklist{revoked: make(map[string]struct{})}
}

func (b *AccessTokenBlacklist) Add(token string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.revoked[token] = struct{}{}
}

func (b *AccessTokenBlacklist) Contains(token string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.revoked[token]
	return ok
}

// Len reports the number of revoked tokens, for logging.
func (b *AccessTokenBlacklist) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.revoked)
}
