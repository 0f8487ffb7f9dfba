package runner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/stackjob/stackjob/internal/clock"
	"github.com/viant/scy"
	"github.com/viant/scy/auth/jwt/signer"
)

// TokenProvider supplies the bearer token attached to every runner call.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is an operator-supplied token used verbatim.
type StaticToken string

func (t StaticToken) Token(_ context.Context) (string, error) { return string(t), nil }

// SignedToken mints an HMAC-signed JWT naming the service identity, used
// when no static token is configured. Tokens are cached until near expiry.
type SignedToken struct {
	HMACKeyURL string
	KeySecret  string
	Identity   string
	TTL        time.Duration

	mu      sync.Mutex
	signer  *signer.Service
	token   string
	expires time.Time
}

// NewSignedToken creates a provider minting tokens signed with the HMAC key
// at the given URL (base64 encoded key material).
func NewSignedToken(hmacKeyURL, keySecret, identity string) *SignedToken {
	return &SignedToken{
		HMACKeyURL: hmacKeyURL,
		KeySecret:  keySecret,
		Identity:   identity,
		TTL:        time.Hour,
	}
}

func (t *SignedToken) Token(ctx context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := clock.Now()
	if t.token != "" && now.Before(t.expires) {
		return t.token, nil
	}
	if t.signer == nil {
		jwtSigner := signer.New(&signer.Config{
			HMAC: &scy.Resource{URL: t.HMACKeyURL, Key: t.KeySecret},
		})
		if err := jwtSigner.Init(ctx); err != nil {
			return "", fmt.Errorf("failed to initialize JWT signer: %w", err)
		}
		t.signer = jwtSigner
	}

	ttl := t.TTL
	if ttl == 0 {
		ttl = time.Hour
	}
	token, err := t.signer.Create(ttl, map[string]interface{}{"Username": t.Identity})
	if err != nil {
		return "", fmt.Errorf("failed to create bearer token: %w", err)
	}
	t.token = token
	// renew ahead of actual expiry to avoid rejected in-flight requests
	t.expires = now.Add(ttl - time.Minute)
	return token, nil
}
