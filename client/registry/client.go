package registry

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"
	"github.com/whitekid/goxp/log"
	"github.com/whitekid/goxp/request"

	"drg/client/common"
)

const (
	pathRegistry = "/api/registry/v1"
	pathAdmin    = "/api/admin/v1alpha1"
	pathTokens   = "/api/tokens/v1alpha1"
	pathCommand  = "/api/command/v1alpha1"
)

func New(registryURL, apiURL string) *Client {
	return WithClient(registryURL, apiURL, &http.Client{})
}

// WithClient create registry client; the http client is responsible for authentication
func WithClient(registryURL, apiURL string, client *http.Client) *Client {
	return &Client{
		registry: strings.TrimRight(registryURL, "/"),
		api:      strings.TrimRight(apiURL, "/"),
		client:   request.NewSession(client),
	}
}

// Client registry service client
type Client struct {
	registry string
	api      string
	client   request.Interface
}

func (c *Client) sendRequest(ctx context.Context, req *request.Request) (*request.Response, error) {
	log.Debugf("send request: %s", req.URL)

	resp, err := req.Do(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "request failed")
	}

	if !resp.Success() {
		defer resp.Body.Close()
		return nil, common.NewHTTPError(resp.StatusCode, resp.Body)
	}

	return resp, nil
}

func (c *Client) decode(ctx context.Context, req *request.Request, v interface{}) error {
	resp, err := c.sendRequest(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := resp.JSON(v); err != nil {
		return errors.Wrap(err, "fail to decode response")
	}

	return nil
}

func (c *Client) send(ctx context.Context, req *request.Request) error {
	resp, err := c.sendRequest(ctx, req)
	if err != nil {
		return err
	}

	resp.Body.Close()
	return nil
}

// Apps application service
func (c *Client) Apps() *ResourceService {
	return &ResourceService{client: c, endpoint: c.registry + pathRegistry + "/apps"}
}

// Devices device service of the application
func (c *Client) Devices(app string) *ResourceService {
	return &ResourceService{client: c, endpoint: c.registry + pathRegistry + "/apps/" + url.PathEscape(app) + "/devices"}
}

func (c *Client) Members(app string) *MemberService {
	return &MemberService{client: c, endpoint: c.api + pathAdmin + "/apps/" + url.PathEscape(app)}
}

func (c *Client) Transfer(app string) *TransferService {
	return &TransferService{client: c, endpoint: c.api + pathAdmin + "/apps/" + url.PathEscape(app)}
}

func (c *Client) Tokens() *TokenService {
	return &TokenService{client: c, endpoint: c.api + pathTokens}
}

func (c *Client) Commands(app string) *CommandService {
	return &CommandService{client: c, endpoint: c.api + pathCommand + "/apps/" + url.PathEscape(app) + "/devices"}
}

func withQuery(endpoint string, query url.Values) string {
	if len(query) == 0 {
		return endpoint
	}

	return endpoint + "?" + query.Encode()
}
