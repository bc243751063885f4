package auth

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
	"github.com/whitekid/goxp/log"
	"golang.org/x/oauth2"
	"golang.org/x/term"

	"drg/config"
)

// refreshBefore refresh token expires within this duration
const refreshBefore = time.Minute

var ErrTokenExpired = errors.New("token expired, please login again")

// NeedsRefresh returns true if the oauth token is expired or expires soon
func NeedsRefresh(tok *config.OAuthToken, now time.Time) bool {
	return !tok.Expiry.IsZero() && tok.Expiry.Sub(now) < refreshBefore
}

// Refresh refresh oauth credential of the context if needed. access tokens are never refreshed.
func Refresh(ctx context.Context, c *config.Context) (bool, error) {
	tok, ok := c.Credential.(*config.OAuthToken)
	if !ok || !NeedsRefresh(tok, time.Now()) {
		return false, nil
	}

	if tok.RefreshToken == "" {
		return false, errors.Wrapf(ErrTokenExpired, "context %q", c.Name)
	}

	log.Debugf("refresh token of context %q, expired at %s", c.Name, tok.Expiry)

	// empty access token forces the token source to use the refresh token
	src := oauthConfig(c.AuthURL, c.TokenURL, "").TokenSource(ctx, &oauth2.Token{RefreshToken: tok.RefreshToken})
	refreshed, err := src.Token()
	if err != nil {
		return false, errors.Wrap(err, "fail to refresh token")
	}

	c.SetCredential(toOAuthToken(refreshed))
	return true, nil
}

// Claims parse claims of the token without verification; only for display
func Claims(token string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, errors.Wrap(err, "fail to parse token")
	}

	return claims, nil
}

// Username returns user name of the credential
func Username(cred config.Credential) string {
	switch c := cred.(type) {
	case *config.AccessToken:
		return c.ID
	case *config.OAuthToken:
		claims, err := Claims(c.AccessToken)
		if err != nil {
			return ""
		}

		for _, key := range []string{"preferred_username", "name", "sub"} {
			if v, ok := claims[key].(string); ok && v != "" {
				return v
			}
		}
	}

	return ""
}

// ParseAccessToken parse "user:token"; the token is prompted when omitted
func ParseAccessToken(s string, in io.Reader, out io.Writer) (*config.AccessToken, error) {
	id, secret, _ := strings.Cut(s, ":")
	if id == "" {
		return nil, errors.New("access token must be in form of user:token")
	}

	if secret == "" {
		fmt.Fprintf(out, "Access token for %s: ", id)
		var err error
		if secret, err = readSecret(in); err != nil {
			return nil, err
		}
		fmt.Fprintln(out)
	}

	if secret == "" {
		return nil, errors.New("empty access token")
	}

	return &config.AccessToken{ID: id, Secret: secret}, nil
}

func readSecret(in io.Reader) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		secret, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", errors.Wrap(err, "fail to read access token")
		}
		return string(secret), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", errors.Wrap(err, "fail to read access token")
	}
	return strings.TrimSpace(line), nil
}
