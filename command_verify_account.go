package session

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
)

// VerifyAccountMessage confirms an emailed verification code. OnResponse,
// when set, receives the API answer of a successful verification.
type VerifyAccountMessage struct {
	Code       string `json:"code"`
	OnResponse func(res *VerifyResult)
}

func (e VerifyAccountMessage) Type() string { return "user.verify" }

// VerifyAccountHandler executes VerifyAccountMessage through a Gateway.
type VerifyAccountHandler struct {
	gateway *Gateway
}

// NewVerifyAccountHandler returns a handler bound to gateway.
func NewVerifyAccountHandler(gateway *Gateway) *VerifyAccountHandler {
	return &VerifyAccountHandler{gateway: gateway}
}

func (h *VerifyAccountHandler) Execute(ctx context.Context, event VerifyAccountMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during account verification")
	default:
	}

	res, err := h.gateway.Verify(ctx, event.Code)
	if err != nil {
		return err
	}
	if event.OnResponse != nil {
		event.OnResponse(res)
	}
	return nil
}
