package config

import (
	"encoding/base64"
	"time"

	"github.com/pkg/errors"
)

// Credential authentication material of a context.
// It is either *OAuthToken or *AccessToken.
type Credential interface {
	// Authorization returns value of Authorization header
	Authorization() string

	// Token returns raw secret
	Token() string
}

// OAuthToken token response of OAuth2 login
type OAuthToken struct {
	AccessToken  string    `yaml:"access_token" json:"access_token"`
	RefreshToken string    `yaml:"refresh_token,omitempty" json:"refresh_token,omitempty"`
	IDToken      string    `yaml:"id_token,omitempty" json:"id_token,omitempty"`
	Expiry       time.Time `yaml:"expiry,omitempty" json:"expiry,omitempty"`
}

var _ Credential = (*OAuthToken)(nil)

func (t *OAuthToken) Authorization() string { return "Bearer " + t.AccessToken }
func (t *OAuthToken) Token() string         { return t.AccessToken }

// AccessToken static access token pair; never expires
type AccessToken struct {
	ID     string `yaml:"id" json:"id"`
	Secret string `yaml:"token" json:"token"`
}

var _ Credential = (*AccessToken)(nil)

func (t *AccessToken) Authorization() string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(t.ID+":"+t.Secret))
}

func (t *AccessToken) Token() string { return t.Secret }

// credentialYAML persisted form; exactly one field is set
type credentialYAML struct {
	OAuth       *OAuthToken  `yaml:"oauth,omitempty"`
	AccessToken *AccessToken `yaml:"access_token,omitempty"`
}

func toCredentialYAML(cred Credential) (*credentialYAML, error) {
	switch c := cred.(type) {
	case nil:
		return nil, nil
	case *OAuthToken:
		return &credentialYAML{OAuth: c}, nil
	case *AccessToken:
		return &credentialYAML{AccessToken: c}, nil
	}

	return nil, errors.Errorf("unsupported credential: %T", cred)
}

func (c *credentialYAML) credential() (Credential, error) {
	switch {
	case c == nil:
		return nil, errors.Wrap(ErrInvalidConfig, "token is required")
	case c.OAuth != nil && c.AccessToken != nil:
		return nil, errors.Wrap(ErrInvalidConfig, "token must be either oauth or access_token, not both")
	case c.OAuth != nil:
		return c.OAuth, nil
	case c.AccessToken != nil:
		return c.AccessToken, nil
	}

	return nil, errors.Wrap(ErrInvalidConfig, "token must have oauth or access_token")
}
