package sessiongate

import "context"

// ValidateResetToken runs every reset check without consuming the token.
// Consumed, expired, unknown and tampered tokens all return
// ErrPasswordResetInvalid.
func (e *Engine) ValidateResetToken(ctx context.Context, token string) (*ResetTokenInfo, error) {
	res, err := e.flows.ValidateResetToken(ctx, token)
	if err != nil {
		return nil, err
	}
	return &ResetTokenInfo{
		UserID:    res.UserID,
		Email:     res.Email,
		ExpiresAt: res.ExpiresAt,
	}, nil
}

// ResetPassword consumes a reset token and sets newPassword.
//
// On success the forced-reset flag is cleared, every existing session of the
// user is revoked, and a new session is returned as for a normal login. A
// token succeeds at most once.
func (e *Engine) ResetPassword(ctx context.Context, token, newPassword string) (*LoginResult, error) {
	res, err := e.flows.ResetPassword(ctx, token, newPassword)
	if err != nil {
		return nil, err
	}
	return fromFlowLogin(res), nil
}
