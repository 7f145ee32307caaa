// Package arm is the provider client for the resource manager providers API.
// It issues the two call shapes the catalog needs and classifies failures
// but never retries; retry policy lives with the caller.
package arm

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/agentstation/aliasmap/internal/transport"
	"github.com/agentstation/aliasmap/pkg/catalogs"
	"github.com/agentstation/aliasmap/pkg/constants"
	"github.com/agentstation/aliasmap/pkg/errors"
	"github.com/agentstation/aliasmap/pkg/logging"
)

// Config identifies the subscription and endpoint to query.
type Config struct {
	Endpoint       string
	SubscriptionID string
	APIVersion     string
}

// Client lists providers and fetches their aliases.
type Client struct {
	cfg       Config
	transport *transport.Client
}

// New creates a provider client. Endpoint and APIVersion default to the
// public cloud values.
func New(cfg Config, t *transport.Client) (*Client, error) {
	if strings.TrimSpace(cfg.SubscriptionID) == "" {
		return nil, errors.NewValidationError("subscription_id", cfg.SubscriptionID, "cannot be empty")
	}
	if t == nil {
		return nil, errors.NewValidationError("transport", nil, "cannot be nil")
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = constants.DefaultEndpoint
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = constants.DefaultAPIVersion
	}
	cfg.Endpoint = strings.TrimRight(cfg.Endpoint, "/")

	return &Client{cfg: cfg, transport: t}, nil
}

// SubscriptionID returns the subscription this client queries.
func (c *Client) SubscriptionID() string {
	return c.cfg.SubscriptionID
}

// Admit queues ctx for the outbound request budget.
func (c *Client) Admit(ctx context.Context) (context.Context, error) {
	return c.transport.Admit(ctx)
}

// ListProviders returns every provider namespace of the subscription in
// enumeration order, following nextLink pagination.
func (c *Client) ListProviders(ctx context.Context) ([]string, error) {
	next := c.providersURL("")
	var namespaces []string
	pages := 0

	for next != "" {
		resp, err := c.transport.Get(ctx, next, "")
		if err != nil {
			return nil, err
		}
		var page providerPage
		if err := transport.DecodeResponse(resp, "", &page); err != nil {
			return nil, err
		}
		for _, p := range page.Value {
			if p.Namespace != "" {
				namespaces = append(namespaces, p.Namespace)
			}
		}
		next = page.NextLink
		pages++
	}

	logging.Ctx(logging.WithSubscription(ctx, c.cfg.SubscriptionID)).Debug().
		Int("pages", pages).
		Int("providers", len(namespaces)).
		Msg("Listed providers")
	return namespaces, nil
}

// FetchAliases returns the aliases of one provider, flattened across its
// resource types in response order. A provider that does not exist or
// has no resource types yields no aliases and no error.
func (c *Client) FetchAliases(ctx context.Context, namespace string) ([]catalogs.Alias, error) {
	resp, err := c.transport.Get(ctx, c.providersURL(namespace), namespace)
	if err != nil {
		return nil, err
	}

	var p provider
	if err := transport.DecodeResponse(resp, namespace, &p); err != nil {
		var apiErr *errors.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return []catalogs.Alias{}, nil
		}
		return nil, err
	}

	if p.Namespace == "" {
		p.Namespace = namespace
	}
	aliases := p.aliases()
	logging.Ctx(ctx).Debug().
		Int("resource_types", len(p.ResourceTypes)).
		Int("aliases", len(aliases)).
		Msg("Fetched provider aliases")
	return aliases, nil
}

// providersURL builds the providers collection URL, or a single provider
// URL with aliases expanded when namespace is set.
func (c *Client) providersURL(namespace string) string {
	path := "/subscriptions/" + url.PathEscape(c.cfg.SubscriptionID) + "/providers"
	query := url.Values{}
	query.Set("api-version", c.cfg.APIVersion)
	if namespace != "" {
		path += "/" + url.PathEscape(namespace)
		query.Set("$expand", constants.AliasExpand)
	}
	return c.cfg.Endpoint + path + "?" + query.Encode()
}
