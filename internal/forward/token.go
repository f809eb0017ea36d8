package forward

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// DefaultTokenTTL is how long a fetched bearer token is reused before a
// fresh one is requested. The remote system does not report expiry, so the
// window is fixed.
const DefaultTokenTTL = time.Hour

// Credentials authenticate against the remote system's token endpoint.
type Credentials struct {
	CompanyCode string `json:"companyCode"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	HostAddress string `json:"hostAddress"`
}

// TokenSource caches one bearer token for the single remote system. It is
// safe for concurrent use; refresh is lazy on first use, expiry, or
// explicit invalidation after a 401.
type TokenSource struct {
	tokenURL    string
	credentials Credentials
	ttl         time.Duration
	client      *http.Client
	now         func() time.Time

	mu        sync.Mutex
	token     string
	fetchedAt time.Time
}

type TokenOption func(*TokenSource)

func WithTokenTTL(ttl time.Duration) TokenOption {
	return func(s *TokenSource) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

func WithTokenHTTPClient(client *http.Client) TokenOption {
	return func(s *TokenSource) {
		if client != nil {
			s.client = client
		}
	}
}

func WithTokenClock(now func() time.Time) TokenOption {
	return func(s *TokenSource) {
		if now != nil {
			s.now = now
		}
	}
}

func NewTokenSource(tokenURL string, credentials Credentials, opts ...TokenOption) (*TokenSource, error) {
	if tokenURL == "" {
		return nil, errors.New("forward: empty token url")
	}
	s := &TokenSource{
		tokenURL:    tokenURL,
		credentials: credentials,
		ttl:         DefaultTokenTTL,
		client:      &http.Client{Timeout: 10 * time.Second},
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Token returns the cached token, fetching a new one when the cache is
// empty or past its TTL.
func (s *TokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" && s.now().Sub(s.fetchedAt) < s.ttl {
		return s.token, nil
	}

	token, err := s.fetch(ctx)
	if err != nil {
		return "", err
	}
	s.token = token
	s.fetchedAt = s.now()
	return token, nil
}

// Invalidate drops the cached token so the next Token call fetches anew.
func (s *TokenSource) Invalidate() {
	s.mu.Lock()
	s.token = ""
	s.mu.Unlock()
}

func (s *TokenSource) fetch(ctx context.Context) (string, error) {
	payload, err := json.Marshal(s.credentials)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.tokenURL, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("forward: token fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("forward: token fetch http %d", resp.StatusCode)
	}

	var body struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("forward: token decode: %w", err)
	}
	if body.AccessToken == "" {
		return "", errors.New("forward: no token in response")
	}
	return body.AccessToken, nil
}
