package auth

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/lithammer/shortuuid/v4"
	"github.com/pkg/errors"
	"github.com/whitekid/goxp/log"
	"golang.org/x/oauth2"

	"drg/config"
	"drg/pkg/helper"
	"drg/pkg/simplekv"
)

const (
	ClientID       = "drogue"
	defaultTimeout = 5 * time.Minute
)

var (
	ErrLoginCanceled = errors.New("login canceled")
	ErrLoginDenied   = errors.New("login denied")
)

func oauthConfig(authURL, tokenURL, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:    ClientID,
		RedirectURL: redirectURL,
		Scopes:      []string{"openid", "offline_access"},
		Endpoint: oauth2.Endpoint{
			AuthURL:  authURL,
			TokenURL: tokenURL,
		},
	}
}

type LoginOptions struct {
	Port    int                    // callback port on 127.0.0.1; 0 picks one
	Timeout time.Duration          // default 5 minutes
	Open    func(url string) error // shows authorization url to the user
}

type callbackResult struct {
	code     string
	verifier string
	err      error
}

// Login run authorization code flow with PKCE; the code is received by a local callback server
func Login(ctx context.Context, authURL, tokenURL string, opts *LoginOptions) (*config.OAuthToken, error) {
	if opts == nil {
		opts = &LoginOptions{}
	}
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", opts.Port))
	if err != nil {
		return nil, errors.Wrap(err, "fail to start callback server")
	}

	cfg := oauthConfig(authURL, tokenURL, "http://"+ln.Addr().String()+"/")

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	states := simplekv.New[string]()
	resultCh := make(chan *callbackResult, 1)

	e := helper.NewEcho()
	e.GET("/", func(c echo.Context) error {
		verifier, err := states.Get(c.Request().Context(), c.QueryParam("state"))
		if err != nil {
			return helper.NewHTTPError(http.StatusBadRequest, "unknown or expired login state")
		}
		states.Delete(c.Request().Context(), c.QueryParam("state"))

		result := &callbackResult{code: c.QueryParam("code"), verifier: verifier}
		if reason := c.QueryParam("error"); reason != "" {
			result.err = errors.Wrapf(ErrLoginDenied, "%s %s", reason, c.QueryParam("error_description"))
		}

		select {
		case resultCh <- result:
		default:
		}

		if result.err != nil {
			return c.String(http.StatusForbidden, "Login failed, you can close this window.")
		}
		return c.String(http.StatusOK, "Login successful, you can close this window.")
	})

	go func() {
		if err := helper.StartEcho(ctx, e, ln); err != nil {
			log.Errorf("callback server: %+v", err)
		}
	}()

	state := shortuuid.New()
	verifier := oauth2.GenerateVerifier()
	states.Set(ctx, state, verifier, timeout)

	authCodeURL := cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.S256ChallengeOption(verifier))
	open := opts.Open
	if open == nil {
		open = func(url string) error {
			fmt.Printf("Open the following url in your browser to login:\n\n    %s\n\n", url)
			return nil
		}
	}
	if err := open(authCodeURL); err != nil {
		return nil, err
	}

	var result *callbackResult
	select {
	case <-ctx.Done():
		return nil, errors.Wrap(ErrLoginCanceled, ctx.Err().Error())
	case result = <-resultCh:
	}

	if result.err != nil {
		return nil, result.err
	}

	tok, err := cfg.Exchange(ctx, result.code, oauth2.VerifierOption(result.verifier))
	if err != nil {
		return nil, errors.Wrap(err, "fail to exchange authorization code")
	}

	log.Debugf("login succeeded, token expires at %s", tok.Expiry)
	return toOAuthToken(tok), nil
}

func toOAuthToken(tok *oauth2.Token) *config.OAuthToken {
	idToken, _ := tok.Extra("id_token").(string)

	return &config.OAuthToken{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		IDToken:      idToken,
		Expiry:       tok.Expiry.UTC(),
	}
}
