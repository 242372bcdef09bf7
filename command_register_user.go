package session

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
)

// RegisterUserMessage submits the signup form.
type RegisterUserMessage struct {
	RegistrationPayload
}

func (e RegisterUserMessage) Type() string { return "user.register" }

// RegisterUserHandler executes RegisterUserMessage through a Gateway.
type RegisterUserHandler struct {
	gateway *Gateway
}

// NewRegisterUserHandler returns a handler bound to gateway.
func NewRegisterUserHandler(gateway *Gateway) *RegisterUserHandler {
	return &RegisterUserHandler{gateway: gateway}
}

func (h *RegisterUserHandler) Execute(ctx context.Context, event RegisterUserMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user registration",
		)
	default:
		return h.gateway.Register(ctx, event.RegistrationPayload)
	}
}
