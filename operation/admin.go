package operation

import (
	"context"
	"encoding/json"

	"drg/client/registry"
	"drg/outcome"
)

type MessageOutcome = outcome.Outcome[any]

func (o *Operations) ListMembers(ctx context.Context, app string) (*outcome.Outcome[*registry.Members], error) {
	members, err := o.registry().Members(app).Get(ctx)
	if err != nil {
		if outcome.IsNotFound(err) {
			return nil, App(app).notFound()
		}
		return nil, err
	}

	return outcome.WithData(members), nil
}

// AddMember add the user or change the role of the user
func (o *Operations) AddMember(ctx context.Context, app, user string, role registry.Role) (*MessageOutcome, error) {
	if _, err := registry.ParseRole(string(role)); err != nil {
		return nil, outcome.InvalidInput("%s", err)
	}

	svc := o.registry().Members(app)
	if _, err := readModifyWrite(ctx, App(app).notFound(), svc.Get,
		func(members *registry.Members) (*registry.Members, error) {
			members.Members[user] = &registry.MemberEntry{Role: role}
			return members, nil
		}, svc.Update); err != nil {
		return nil, err
	}

	return outcome.WithMessage[any]("Member %s added to application %s as %s", user, app, role), nil
}

func (o *Operations) DeleteMember(ctx context.Context, app, user string) (*MessageOutcome, error) {
	svc := o.registry().Members(app)
	if _, err := readModifyWrite(ctx, App(app).notFound(), svc.Get,
		func(members *registry.Members) (*registry.Members, error) {
			if _, ok := members.Members[user]; !ok {
				return nil, outcome.NotFound("member %s not found in application %s", user, app)
			}
			delete(members.Members, user)
			return members, nil
		}, svc.Update); err != nil {
		return nil, err
	}

	return outcome.WithMessage[any]("Member %s removed from application %s", user, app), nil
}

func (o *Operations) ListTokens(ctx context.Context) (*outcome.Outcome[[]*registry.AccessToken], error) {
	tokens, err := o.registry().Tokens().List(ctx)
	if err != nil {
		return nil, err
	}

	return outcome.WithData(tokens), nil
}

func (o *Operations) CreateToken(ctx context.Context, description string) (*outcome.Outcome[*registry.CreatedAccessToken], error) {
	token, err := o.registry().Tokens().Create(ctx, description)
	if err != nil {
		return nil, err
	}

	return outcome.WithData(token), nil
}

func (o *Operations) DeleteToken(ctx context.Context, prefix string) (*MessageOutcome, error) {
	if err := o.registry().Tokens().Delete(ctx, prefix); err != nil {
		if outcome.IsNotFound(err) {
			return nil, outcome.NotFound("token %s not found", prefix)
		}
		return nil, err
	}

	return outcome.WithMessage[any]("Token %s deleted", prefix), nil
}

func (o *Operations) TransferInit(ctx context.Context, app, user string) (*MessageOutcome, error) {
	if err := o.registry().Transfer(app).Init(ctx, user); err != nil {
		if outcome.IsNotFound(err) {
			return nil, App(app).notFound()
		}
		return nil, err
	}

	return outcome.WithMessage[any]("Application %s transfer to %s initiated; the new owner must accept it", app, user), nil
}

func (o *Operations) TransferAccept(ctx context.Context, app string) (*MessageOutcome, error) {
	if err := o.registry().Transfer(app).Accept(ctx); err != nil {
		if outcome.IsNotFound(err) {
			return nil, outcome.NotFound("no pending transfer of application %s", app)
		}
		return nil, err
	}

	return outcome.WithMessage[any]("Application %s transfer accepted, you are now the owner", app), nil
}

func (o *Operations) TransferCancel(ctx context.Context, app string) (*MessageOutcome, error) {
	if err := o.registry().Transfer(app).Cancel(ctx); err != nil {
		if outcome.IsNotFound(err) {
			return nil, outcome.NotFound("no pending transfer of application %s", app)
		}
		return nil, err
	}

	return outcome.WithMessage[any]("Application %s transfer cancelled", app), nil
}

// SendCommand send command with optional json payload to the device
func (o *Operations) SendCommand(ctx context.Context, app, device, command string, payload []byte) (*MessageOutcome, error) {
	if command == "" {
		return nil, outcome.InvalidInput("command is required")
	}

	if len(payload) > 0 && !json.Valid(payload) {
		return nil, outcome.InvalidInput("payload must be json")
	}

	if err := o.registry().Commands(app).Send(ctx, device, command, payload); err != nil {
		if outcome.IsNotFound(err) {
			return nil, Device(app, device).notFound()
		}
		return nil, err
	}

	return outcome.WithMessage[any]("Command %s sent to device %s", command, device), nil
}
