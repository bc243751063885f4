package registry

import (
	"context"
	"encoding/json"
	"net/url"

	"github.com/pkg/errors"

	"drg/client/common"
)

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleReader  Role = "reader"
)

var ErrUnknownRole = errors.New("unknown role")

func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleAdmin, RoleManager, RoleReader:
		return r, nil
	}

	return "", errors.Wrapf(ErrUnknownRole, "%q, supported: admin, manager, reader", s)
}

type MemberEntry struct {
	Role Role `json:"role"`
}

// Members members of an application
type Members struct {
	ResourceVersion string                  `json:"resourceVersion,omitempty"`
	Members         map[string]*MemberEntry `json:"members"`
}

type MemberService struct {
	client   *Client
	endpoint string
}

func (svc *MemberService) Get(ctx context.Context) (*Members, error) {
	var members Members
	if err := svc.client.decode(ctx, svc.client.client.Get("%s/members", svc.endpoint), &members); err != nil {
		return nil, err
	}

	if members.Members == nil {
		members.Members = map[string]*MemberEntry{}
	}

	return &members, nil
}

func (svc *MemberService) Update(ctx context.Context, members *Members) error {
	return svc.client.send(ctx, svc.client.client.Put("%s/members", svc.endpoint).JSON(members))
}

type TransferService struct {
	client   *Client
	endpoint string
}

type transferRequest struct {
	NewUser string `json:"newUser"`
}

// Init start ownership transfer to the user
func (svc *TransferService) Init(ctx context.Context, user string) error {
	return svc.client.send(ctx, svc.client.client.Put("%s/transfer-ownership", svc.endpoint).JSON(&transferRequest{NewUser: user}))
}

func (svc *TransferService) Cancel(ctx context.Context) error {
	return svc.client.send(ctx, svc.client.client.Delete("%s/transfer-ownership", svc.endpoint))
}

func (svc *TransferService) Accept(ctx context.Context) error {
	return svc.client.send(ctx, svc.client.client.Put("%s/accept-ownership", svc.endpoint))
}

// AccessToken access token; the secret is only returned on creation
type AccessToken struct {
	Prefix      string            `json:"prefix"`
	Created     *common.Timestamp `json:"created,omitempty"`
	Description string            `json:"description,omitempty"`
}

type CreatedAccessToken struct {
	Prefix string `json:"prefix"`
	Token  string `json:"token"`
}

type TokenService struct {
	client   *Client
	endpoint string
}

func (svc *TokenService) List(ctx context.Context) ([]*AccessToken, error) {
	var tokens []*AccessToken
	if err := svc.client.decode(ctx, svc.client.client.Get("%s", svc.endpoint), &tokens); err != nil {
		return nil, err
	}

	return tokens, nil
}

func (svc *TokenService) Create(ctx context.Context, description string) (*CreatedAccessToken, error) {
	query := url.Values{}
	if description != "" {
		query.Set("description", description)
	}

	var created CreatedAccessToken
	if err := svc.client.decode(ctx, svc.client.client.Post("%s", withQuery(svc.endpoint, query)), &created); err != nil {
		return nil, err
	}

	return &created, nil
}

func (svc *TokenService) Delete(ctx context.Context, prefix string) error {
	return svc.client.send(ctx, svc.client.client.Delete("%s/%s", svc.endpoint, url.PathEscape(prefix)))
}

type CommandService struct {
	client   *Client
	endpoint string
}

// Send send command to the device; payload must be json if not empty
func (svc *CommandService) Send(ctx context.Context, device, command string, payload []byte) error {
	if len(payload) > 0 && !json.Valid(payload) {
		return errors.New("payload is not valid json")
	}

	u := withQuery(svc.endpoint+"/"+url.PathEscape(device), url.Values{"command": []string{command}})
	req := svc.client.client.Post("%s", u)
	if len(payload) > 0 {
		req = req.JSON(json.RawMessage(payload))
	}

	return svc.client.send(ctx, req)
}
