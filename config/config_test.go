package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func newTestContext(name string) *Context {
	return &Context{
		Name:        name,
		CloudURL:    "https://api.example.com",
		AuthURL:     "https://sso.example.com/auth",
		TokenURL:    "https://sso.example.com/token",
		RegistryURL: "https://api.example.com",
		Credential:  &AccessToken{ID: "user", Secret: "token"},
	}
}

func newTestConfig(names ...string) *Config {
	cfg := &Config{}
	for _, name := range names {
		cfg.AddOrReplace(newTestContext(name))
	}
	cfg.dirty = false
	return cfg
}

func TestAddOrReplace(t *testing.T) {
	cfg := &Config{}

	require.False(t, cfg.AddOrReplace(newTestContext("first")))
	require.Equal(t, "first", cfg.ActiveContext, "first context becomes active")
	require.True(t, cfg.Dirty())

	require.False(t, cfg.AddOrReplace(newTestContext("second")))
	require.Equal(t, "first", cfg.ActiveContext)

	replacement := newTestContext("second")
	replacement.DefaultApp = "app1"
	require.True(t, cfg.AddOrReplace(replacement))
	require.Len(t, cfg.Contexts, 2)

	got, err := cfg.Get("second")
	require.NoError(t, err)
	require.Same(t, replacement, got)
}

func TestDelete(t *testing.T) {
	type args struct {
		active string
		name   string
	}
	tests := [...]struct {
		name       string
		contexts   []string
		args       args
		wantErr    error
		wantActive string
		wantNames  []string
	}{
		{`not found`, []string{"a"}, args{"a", "b"}, ErrContextNotFound, "a", []string{"a"}},
		{`non active`, []string{"a", "b"}, args{"a", "b"}, nil, "a", []string{"a"}},
		{`active promotes first remaining`, []string{"a", "b", "c"}, args{"b", "b"}, nil, "a", []string{"a", "c"}},
		{`last active clears pointer`, []string{"a"}, args{"a", "a"}, nil, "", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := newTestConfig(tt.contexts...)
			require.NoError(t, cfg.SetActive(tt.args.active))

			err := cfg.Delete(tt.args.name)
			if tt.wantErr != nil {
				require.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			} else {
				require.NoError(t, err)
			}

			require.Equal(t, tt.wantActive, cfg.ActiveContext)
			require.ElementsMatch(t, tt.wantNames, cfg.Names())
			require.NoError(t, cfg.Validate(), "active pointer never dangles")
		})
	}
}

func TestRename(t *testing.T) {
	type args struct {
		oldName string
		newName string
	}
	tests := [...]struct {
		name       string
		args       args
		wantErr    error
		wantActive string
		wantNames  []string
	}{
		{`rename active`, args{"a", "c"}, nil, "c", []string{"c", "b"}},
		{`rename non active`, args{"b", "c"}, nil, "a", []string{"a", "c"}},
		{`conflict keeps store`, args{"a", "b"}, ErrContextExists, "a", []string{"a", "b"}},
		{`not found`, args{"x", "y"}, ErrContextNotFound, "a", []string{"a", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := newTestConfig("a", "b")

			err := cfg.Rename(tt.args.oldName, tt.args.newName)
			if tt.wantErr != nil {
				require.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				require.False(t, cfg.Dirty())
			} else {
				require.NoError(t, err)
				require.True(t, cfg.Dirty())
			}

			require.Equal(t, tt.wantActive, cfg.ActiveContext)
			require.Equal(t, tt.wantNames, cfg.Names())
		})
	}
}

func TestActive(t *testing.T) {
	cfg := &Config{}
	_, err := cfg.Active()
	require.True(t, errors.Is(err, ErrNoActiveContext))

	cfg = newTestConfig("a", "b")
	require.True(t, errors.Is(cfg.SetActive("c"), ErrContextNotFound))

	require.NoError(t, cfg.SetActive("b"))
	got, err := cfg.Resolve("")
	require.NoError(t, err)
	require.Equal(t, "b", got.Name)

	got, err = cfg.Resolve("a")
	require.NoError(t, err)
	require.Equal(t, "a", got.Name)
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "drg_config.yaml")
	expiry := time.Date(2026, 10, 14, 10, 0, 0, 0, time.UTC)

	cfg := newTestConfig("static")
	oauth := newTestContext("oauth")
	oauth.SetCredential(&OAuthToken{AccessToken: "access", RefreshToken: "refresh", Expiry: expiry})
	cfg.AddOrReplace(oauth)
	cfg.SetDefaultApp(oauth, "app1")
	require.NoError(t, cfg.SetDefaultAlgo(oauth, "ed25519"))

	require.NoError(t, cfg.Save(path))
	require.False(t, cfg.Dirty())

	got, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "static", got.ActiveContext)
	require.Equal(t, []string{"static", "oauth"}, got.Names())

	static, _ := got.Get("static")
	require.Equal(t, &AccessToken{ID: "user", Secret: "token"}, static.Credential)
	require.Nil(t, static.TokenExpiry)

	loaded, _ := got.Get("oauth")
	require.Equal(t, "app1", loaded.DefaultApp)
	require.Equal(t, "ED25519", loaded.DefaultAlgo)
	require.Equal(t, expiry, loaded.TokenExpiry.UTC())
	require.Equal(t, "Bearer access", loaded.Credential.Authorization())
}

func TestLoad(t *testing.T) {
	tests := [...]struct {
		name    string
		content string
		wantErr error
	}{
		{`malformed`, "active_context: [", ErrInvalidConfig},
		{`dangling active`, "active_context: x\ncontexts: []\n", ErrInvalidConfig},
		{`relative url`, `active_context: a
contexts:
  - name: a
    drogue_cloud_url: api.example.com
    auth_url: https://sso/auth
    token_url: https://sso/token
    registry_url: https://api
    token:
      access_token: {id: u, token: t}
`, ErrInvalidConfig},
		{`both credentials`, `contexts:
  - name: a
    drogue_cloud_url: https://api
    auth_url: https://sso/auth
    token_url: https://sso/token
    registry_url: https://api
    token:
      access_token: {id: u, token: t}
      oauth: {access_token: x}
`, ErrInvalidConfig},
		{`valid`, `active_context: a
contexts:
  - name: a
    drogue_cloud_url: https://api
    auth_url: https://sso/auth
    token_url: https://sso/token
    registry_url: https://api
    token:
      access_token: {id: u, token: t}
`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o600))

			_, err := Load(path)
			if tt.wantErr != nil {
				require.True(t, errors.Is(err, tt.wantErr), "got %+v", err)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestLoadMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.yaml")

	_, err := Load(path)
	require.True(t, errors.Is(err, ErrConfigNotFound))

	cfg, err := LoadOrNew(path)
	require.NoError(t, err)
	require.Empty(t, cfg.Contexts)
}

func TestCredentialAuthorization(t *testing.T) {
	tests := [...]struct {
		name      string
		cred      Credential
		wantAuth  string
		wantToken string
	}{
		{`access token`, &AccessToken{ID: "user", Secret: "token"}, "Basic dXNlcjp0b2tlbg==", "token"},
		{`oauth`, &OAuthToken{AccessToken: "abc"}, "Bearer abc", "abc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.wantAuth, tt.cred.Authorization())
			require.Equal(t, tt.wantToken, tt.cred.Token())
		})
	}
}

func TestContextApp(t *testing.T) {
	c := newTestContext("a")
	_, err := c.App("")
	require.True(t, errors.Is(err, ErrNoApplication))

	c.DefaultApp = "default"
	got, _ := c.App("")
	require.Equal(t, "default", got)

	got, _ = c.App("override")
	require.Equal(t, "override", got)
}
