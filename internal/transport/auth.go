package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/agentstation/aliasmap/pkg/constants"
	"github.com/agentstation/aliasmap/pkg/errors"
)

// TokenSource yields bearer tokens for the management API.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Authenticator applies a token to an outgoing request.
type Authenticator interface {
	Apply(req *http.Request, token string)
}

// BearerAuth implements Bearer token authentication.
type BearerAuth struct{}

// Apply implements the Authenticator interface for BearerAuth.
func (a *BearerAuth) Apply(req *http.Request, token string) {
	req.Header.Set("Authorization", "Bearer "+token)
}

// StaticToken is a pre-acquired bearer token.
type StaticToken string

// Token implements TokenSource.
func (s StaticToken) Token(context.Context) (string, error) {
	if strings.TrimSpace(string(s)) == "" {
		return "", errors.NewAuthenticationError("", "bearer", "no access token configured", nil)
	}
	return string(s), nil
}

// CLITokenSource obtains tokens from the Azure CLI and reuses them until
// shortly before they expire.
type CLITokenSource struct {
	// Resource is the audience the token is requested for.
	Resource string
	// Run executes the CLI and returns its stdout. Defaults to exec'ing az.
	Run func(ctx context.Context, args ...string) ([]byte, error)
	// Now defaults to time.Now.
	Now func() time.Time

	mu      sync.Mutex
	token   string
	expires time.Time
}

// NewCLITokenSource returns a token source backed by `az account get-access-token`.
func NewCLITokenSource() *CLITokenSource {
	return &CLITokenSource{Resource: constants.TokenResource}
}

type cliToken struct {
	AccessToken string `json:"accessToken"`
	ExpiresOn   string `json:"expiresOn"`
	ExpiresUnix int64  `json:"expires_on"`
}

// Token implements TokenSource.
func (c *CLITokenSource) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if c.token != "" && now.Add(constants.TokenRefreshSkew).Before(c.expires) {
		return c.token, nil
	}

	resource := c.Resource
	if resource == "" {
		resource = constants.TokenResource
	}
	out, err := c.run(ctx, "account", "get-access-token", "--resource", resource, "--output", "json")
	if err != nil {
		return "", errors.NewAuthenticationError("", "cli", "az account get-access-token failed", err)
	}

	var tok cliToken
	if err := json.Unmarshal(out, &tok); err != nil {
		return "", errors.NewAuthenticationError("", "cli", "unreadable token response", err)
	}
	if tok.AccessToken == "" {
		return "", errors.NewAuthenticationError("", "cli", "empty access token", nil)
	}

	c.token = tok.AccessToken
	c.expires = tok.expiry(now)
	return c.token, nil
}

func (t cliToken) expiry(now time.Time) time.Time {
	if t.ExpiresUnix > 0 {
		return time.Unix(t.ExpiresUnix, 0)
	}
	if ts, err := time.ParseInLocation("2006-01-02 15:04:05.999999", t.ExpiresOn, time.Local); err == nil {
		return ts
	}
	// Unknown expiry: reuse for one refresh window only.
	return now.Add(constants.TokenRefreshSkew * 2)
}

func (c *CLITokenSource) run(ctx context.Context, args ...string) ([]byte, error) {
	if c.Run != nil {
		return c.Run(ctx, args...)
	}
	return exec.CommandContext(ctx, "az", args...).Output()
}

func (c *CLITokenSource) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}
