package client

import (
	"net/http"

	"drg/client/registry"
	"drg/config"
)

// New create client for the context; every request is authenticated with the context credential
func New(ctx *config.Context) *Client { return WithClient(ctx, &http.Client{}) }
func WithClient(ctx *config.Context, client *http.Client) *Client {
	authorized := *client
	authorized.Transport = &authTransport{cred: ctx.Credential, next: client.Transport}

	return &Client{
		context:  ctx,
		client:   &authorized,
		registry: registry.WithClient(ctx.RegistryURL, ctx.CloudURL, &authorized),
	}
}

type Client struct {
	context *config.Context
	client  *http.Client

	registry *registry.Client
}

func (c *Client) Registry() *registry.Client { return c.registry }
func (c *Client) Context() *config.Context   { return c.context }

// authTransport set Authorization header from the credential
type authTransport struct {
	cred config.Credential
	next http.RoundTripper
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	next := t.next
	if next == nil {
		next = http.DefaultTransport
	}

	if t.cred == nil {
		return next.RoundTrip(req)
	}

	req = req.Clone(req.Context())
	req.Header.Set("Authorization", t.cred.Authorization())
	return next.RoundTrip(req)
}
