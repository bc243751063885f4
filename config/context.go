package config

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"drg/pkg/helper"
	"drg/trust"
)

// Context connection profile of one service instance
type Context struct {
	Name        string     `yaml:"name" json:"name" validate:"required"`
	CloudURL    string     `yaml:"drogue_cloud_url" json:"drogue_cloud_url" validate:"required,url"`
	AuthURL     string     `yaml:"auth_url" json:"auth_url" validate:"required,url"`
	TokenURL    string     `yaml:"token_url" json:"token_url" validate:"required,url"`
	RegistryURL string     `yaml:"registry_url" json:"registry_url" validate:"required,url"`
	DefaultApp  string     `yaml:"default_app,omitempty" json:"default_app,omitempty"`
	DefaultAlgo string     `yaml:"default_algo,omitempty" json:"default_algo,omitempty"`
	TokenExpiry *time.Time `yaml:"token_exp_date,omitempty" json:"token_exp_date,omitempty"`
	Credential  Credential `yaml:"-" json:"-"`
}

type plainContext Context

type contextDocument struct {
	plainContext `yaml:",inline"`
	Token        *credentialYAML `yaml:"token" json:"token"`
}

func (c *Context) document() (*contextDocument, error) {
	token, err := toCredentialYAML(c.Credential)
	if err != nil {
		return nil, err
	}

	return &contextDocument{plainContext: plainContext(*c), Token: token}, nil
}

func (c *Context) MarshalYAML() (interface{}, error) { return c.document() }

func (c *Context) UnmarshalYAML(value *yaml.Node) error {
	var doc contextDocument
	if err := value.Decode(&doc); err != nil {
		return err
	}

	cred, err := doc.Token.credential()
	if err != nil {
		return errors.Wrapf(err, "context %q", doc.Name)
	}

	*c = Context(doc.plainContext)
	c.Credential = cred
	return nil
}

func (c *Context) MarshalJSON() ([]byte, error) {
	doc, err := c.document()
	if err != nil {
		return nil, err
	}

	return json.Marshal(doc)
}

// Validate validate context fields and credential
func (c *Context) Validate() error {
	if err := helper.ValidateStruct(c); err != nil {
		return errors.Wrapf(ErrInvalidConfig, "context %q: %s", c.Name, err)
	}

	if c.Credential == nil {
		return errors.Wrapf(ErrInvalidConfig, "context %q: no credential", c.Name)
	}

	if c.DefaultAlgo != "" {
		if _, err := trust.ParseAlgorithm(c.DefaultAlgo); err != nil {
			return errors.Wrapf(ErrInvalidConfig, "context %q: %s", c.Name, err)
		}
	}

	return nil
}

// App resolve application name; override wins over context default
func (c *Context) App(override string) (string, error) {
	if override != "" {
		return override, nil
	}

	if c.DefaultApp != "" {
		return c.DefaultApp, nil
	}

	return "", ErrNoApplication
}

// Algorithm resolve signing algorithm; override wins over context default
func (c *Context) Algorithm(override string) (trust.Algorithm, error) {
	switch {
	case override != "":
		return trust.ParseAlgorithm(override)
	case c.DefaultAlgo != "":
		return trust.ParseAlgorithm(c.DefaultAlgo)
	}

	return trust.DefaultAlgorithm, nil
}

// SetCredential replace credential wholesale; expiry is kept only for OAuth tokens
func (c *Context) SetCredential(cred Credential) {
	c.Credential = cred
	c.TokenExpiry = nil

	if t, ok := cred.(*OAuthToken); ok && !t.Expiry.IsZero() {
		expiry := t.Expiry.UTC()
		c.TokenExpiry = &expiry
	}
}
