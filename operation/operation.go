package operation

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"drg/client"
	"drg/client/registry"
	"drg/config"
	"drg/outcome"
)

type Kind int

const (
	KindNone Kind = iota
	KindApp
	KindDevice
	KindMember
	KindToken
	KindAppCert
	KindDeviceCert
)

var (
	ErrUnknownKind = errors.New("unknown resource type")

	kindToStr = map[Kind]string{
		KindApp:        "application",
		KindDevice:     "device",
		KindMember:     "member",
		KindToken:      "token",
		KindAppCert:    "app-cert",
		KindDeviceCert: "device-cert",
	}

	strToKind = map[string]Kind{}
)

func init() {
	for kind, aliases := range map[Kind][]string{
		KindApp:        {"app", "apps", "application", "applications"},
		KindDevice:     {"device", "devices", "dev", "devs"},
		KindMember:     {"member", "members"},
		KindToken:      {"token", "tokens"},
		KindAppCert:    {"app-cert", "app-certs", "trust-anchor", "trust-anchors"},
		KindDeviceCert: {"device-cert", "device-certs"},
	} {
		for _, alias := range aliases {
			strToKind[alias] = kind
		}
	}
}

func (k Kind) String() string { return kindToStr[k] }

// Title returns capitalized name for messages
func (k Kind) Title() string {
	s := k.String()
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func ParseKind(s string) (Kind, error) {
	if kind, ok := strToKind[strings.ToLower(s)]; ok {
		return kind, nil
	}

	return KindNone, outcome.NewError(outcome.KindInvalidInput, errors.Wrapf(ErrUnknownKind, "%q", s))
}

// Target resource addressed by an operation
type Target struct {
	Kind Kind
	App  string
	Name string
}

func App(name string) *Target              { return &Target{Kind: KindApp, Name: name} }
func Device(app, name string) *Target      { return &Target{Kind: KindDevice, App: app, Name: name} }
func (t *Target) String() string           { return t.Kind.String() + " " + t.Name }
func (t *Target) title() string            { return t.Kind.Title() + " " + t.Name }
func (t *Target) notFound() *outcome.Error { return outcome.NotFound("%s not found", t) }
func (t *Target) isResource() bool         { return t.Kind == KindApp || t.Kind == KindDevice }

// Operations remote operations on behalf of a context
type Operations struct {
	context *config.Context
	client  *client.Client
}

func New(c *client.Client) *Operations {
	return &Operations{context: c.Context(), client: c}
}

func (o *Operations) registry() *registry.Client { return o.client.Registry() }

func (o *Operations) resources(t *Target) (*registry.ResourceService, error) {
	switch t.Kind {
	case KindApp:
		return o.registry().Apps(), nil
	case KindDevice:
		if t.App == "" {
			return nil, errors.WithStack(config.ErrNoApplication)
		}
		return o.registry().Devices(t.App), nil
	}

	return nil, outcome.InvalidInput("%s is not a registry resource", t.Kind)
}

// readModifyWrite read the current state, modify it and write it back.
// It makes exactly one attempt; a conflicting write is reported as is.
func readModifyWrite[T any](ctx context.Context, notFound error,
	read func(context.Context) (T, error),
	modify func(T) (T, error),
	write func(context.Context, T) error) (T, error) {
	var zero T

	current, err := read(ctx)
	if err != nil {
		if outcome.IsNotFound(err) {
			return zero, notFound
		}
		return zero, err
	}

	updated, err := modify(current)
	if err != nil {
		return zero, err
	}

	if err := write(ctx, updated); err != nil {
		return zero, err
	}

	return updated, nil
}
