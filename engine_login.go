package sessiongate

import (
	"context"

	"github.com/MrEthical07/sessiongate/internal/flows"
)

// Register creates a user, assigns the default role and logs the user in
// with a new session.
//
// A password shorter than Password.MinLength returns ErrPasswordPolicy; an
// email that is already registered returns ErrAccountExists.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (*LoginResult, error) {
	res, err := e.flows.CreateAccount(ctx, flows.AccountCreateRequest{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
	})
	if err != nil {
		return nil, err
	}
	return fromFlowLogin(res), nil
}

// Login verifies email and password.
//
// On success the result carries a new session and access token. When the
// user must reset their password the result has ResetRequired set, holds a
// reset token, and no session is created.
//
// An unknown email and a wrong password both return ErrInvalidCredentials.
// A disabled account with a correct password returns ErrAccountDisabled.
func (e *Engine) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	res, err := e.flows.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return fromFlowLogin(res), nil
}
