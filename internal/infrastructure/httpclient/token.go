package httpclient

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"
)

// ErrEmptyToken is returned when a login response carries no token
var ErrEmptyToken = errors.New("httpclient: login response carried no token")

// TokenSource yields bearer tokens for an upstream
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a fixed bearer token
type StaticToken string

// Token returns the fixed token
func (s StaticToken) Token(context.Context) (string, error) {
	if s == "" {
		return "", ErrEmptyToken
	}
	return string(s), nil
}

// LoginTokenSource obtains a token from a login endpoint and caches it for TTL
type LoginTokenSource struct {
	client  *Client
	request Request
	extract func(body map[string]any) string
	ttl     time.Duration
	now     func() time.Time

	mu      sync.Mutex
	token   string
	expires time.Time
}

// NewClientCredentialsSource logs in with HTTP basic auth and reads "access_token"
func NewClientCredentialsSource(client *Client, url, clientID, clientSecret string, ttl time.Duration) *LoginTokenSource {
	return &LoginTokenSource{
		client:  client,
		request: Request{Method: http.MethodPost, URL: url, BasicUser: clientID, BasicPass: clientSecret},
		extract: func(body map[string]any) string {
			s, _ := body["access_token"].(string)
			return s
		},
		ttl: ttl,
		now: time.Now,
	}
}

// NewPasswordLoginSource posts username and password and reads "data.access_token"
func NewPasswordLoginSource(client *Client, url, username, password string, ttl time.Duration) *LoginTokenSource {
	return &LoginTokenSource{
		client: client,
		request: Request{
			Method: http.MethodPost,
			URL:    url,
			Body:   map[string]string{"username": username, "password": password},
		},
		extract: func(body map[string]any) string {
			data, _ := body["data"].(map[string]any)
			s, _ := data["access_token"].(string)
			return s
		},
		ttl: ttl,
		now: time.Now,
	}
}

// Token returns the cached token or logs in again once it has expired
func (s *LoginTokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" && s.now().Before(s.expires) {
		return s.token, nil
	}

	var body map[string]any
	if err := s.client.Do(ctx, s.request, &body); err != nil {
		return "", err
	}
	token := s.extract(body)
	if token == "" {
		return "", ErrEmptyToken
	}
	s.token = token
	s.expires = s.now().Add(s.ttl)
	return token, nil
}

// BearerHeader builds an Authorization header from a token source
func BearerHeader(ctx context.Context, ts TokenSource) (http.Header, error) {
	token, err := ts.Token(ctx)
	if err != nil {
		return nil, err
	}
	h := http.Header{}
	h.Set("Authorization", "Bearer "+token)
	return h, nil
}
