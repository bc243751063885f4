package client

import (
	"context"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	"github.com/whitekid/goxp/log"
	"github.com/whitekid/goxp/request"

	"drg/client/common"
)

// Endpoints service endpoints announced by the cloud instance
type Endpoints struct {
	API                  string    `json:"api"`
	IssuerURL            string    `json:"issuer_url"`
	Sso                  string    `json:"sso,omitempty"`
	Registry             *Endpoint `json:"registry,omitempty"`
	CommandURL           *Endpoint `json:"command_url,omitempty"`
	WebsocketIntegration *Endpoint `json:"websocket_integration,omitempty"`
}

type Endpoint struct {
	URL string `json:"url"`
}

// RegistryURL returns registry url or api url if no dedicated registry endpoint
func (e *Endpoints) RegistryURL(fallback string) string {
	switch {
	case e.Registry != nil && e.Registry.URL != "":
		return e.Registry.URL
	case e.API != "":
		return e.API
	}
	return fallback
}

// OpenIDConfiguration part of the OpenID provider metadata
type OpenIDConfiguration struct {
	Issuer                string `json:"issuer"`
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
}

type Version struct {
	Version string `json:"version"`
}

func getJSON(ctx context.Context, client *http.Client, url string, v interface{}) error {
	log.Debugf("discover: %s", url)

	resp, err := request.NewSession(client).Get("%s", url).Do(ctx)
	if err != nil {
		return errors.Wrapf(err, "fail to reach %s", url)
	}
	defer resp.Body.Close()

	if !resp.Success() {
		return common.NewHTTPError(resp.StatusCode, resp.Body)
	}

	if err := resp.JSON(v); err != nil {
		return errors.Wrapf(err, "fail to decode %s", url)
	}

	return nil
}

// Discover fetch endpoints of the cloud instance
func Discover(ctx context.Context, cloudURL string) (*Endpoints, error) {
	var endpoints Endpoints
	if err := getJSON(ctx, &http.Client{}, strings.TrimRight(cloudURL, "/")+"/.well-known/drogue-endpoints", &endpoints); err != nil {
		return nil, err
	}

	if endpoints.IssuerURL == "" {
		return nil, errors.Errorf("no issuer url announced by %s", cloudURL)
	}

	return &endpoints, nil
}

// DiscoverOpenID fetch authorization and token endpoints of the issuer
func DiscoverOpenID(ctx context.Context, issuerURL string) (*OpenIDConfiguration, error) {
	var conf OpenIDConfiguration
	if err := getJSON(ctx, &http.Client{}, strings.TrimRight(issuerURL, "/")+"/.well-known/openid-configuration", &conf); err != nil {
		return nil, err
	}

	return &conf, nil
}

// ServerVersion fetch version of the cloud instance
func ServerVersion(ctx context.Context, cloudURL string) (*Version, error) {
	var version Version
	if err := getJSON(ctx, &http.Client{}, strings.TrimRight(cloudURL, "/")+"/.well-known/drogue-version", &version); err != nil {
		return nil, err
	}

	return &version, nil
}
