package sessiongate

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/sessiongate/internal/flows"
)

// ChangePassword replaces the password of an authenticated user after
// verifying the current one. It clears a pending forced reset. With
// logoutAll set every session of the user is revoked afterwards.
//
// A wrong current password returns ErrInvalidCredentials; a new password
// outside the length policy returns ErrPasswordPolicy.
func (e *Engine) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string, logoutAll bool) error {
	if e.passwordHash == nil || e.userProvider == nil {
		return ErrEngineNotReady
	}
	fail := func(email, reason string, err error) error {
		e.emitAudit(ctx, auditEventPasswordChangeFailure, false, userID, email, "", err, func() map[string]string {
			return map[string]string{"reason": reason}
		})
		return err
	}

	if userID == "" || currentPassword == "" {
		return fail("", "invalid_input", ErrInvalidInput)
	}

	user, err := e.userProvider.FindUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return fail("", "user_not_found", ErrUnauthorized)
		}
		return fail("", "store_unavailable", fmt.Errorf("%w: %v", ErrStoreUnavailable, err))
	}
	if !user.Enabled {
		return fail(user.Email, "account_disabled", ErrAccountDisabled)
	}

	ok, err := e.passwordHash.Verify(currentPassword, user.PasswordHash)
	if err != nil || !ok {
		e.metricInc(MetricPasswordChangeInvalidOld)
		e.emitAudit(ctx, auditEventPasswordChangeInvalid, false, userID, user.Email, "", ErrInvalidCredentials, nil)
		return ErrInvalidCredentials
	}

	if err := flows.CheckPasswordPolicy(newPassword, e.config.Password.MinLength, e.config.Password.MaxLength, ErrPasswordPolicy); err != nil {
		return fail(user.Email, "password_policy", err)
	}

	newHash, err := e.passwordHash.Hash(newPassword)
	if err != nil {
		return fail(user.Email, "hash_failed", fmt.Errorf("%w: %v", ErrPasswordPolicy, err))
	}
	if err := e.userProvider.UpdateUserPasswordHash(ctx, userID, newHash); err != nil {
		return fail(user.Email, "update_hash_failed", fmt.Errorf("%w: %v", ErrStoreUnavailable, err))
	}
	if user.PasswordResetRequired {
		if err := e.userProvider.SetForcedResetFlag(ctx, userID, false); err != nil {
			e.logger.Warn("sessiongate: clearing forced reset after password change failed", "user_id", userID, "error", err)
		}
	}

	if logoutAll {
		if _, err := e.RevokeAllSessions(ctx, userID); err != nil {
			e.logger.Warn("sessiongate: session invalidation failed after password change", "user_id", userID, "error", err)
			return fail(user.Email, "session_invalidation_failed", err)
		}
	}

	currentPassword = ""
	newPassword = ""
	e.metricInc(MetricPasswordChangeSuccess)
	e.emitAudit(ctx, auditEventPasswordChangeSuccess, true, userID, user.Email, "", nil, func() map[string]string {
		if logoutAll {
			return map[string]string{"logout_all": "true"}
		}
		return nil
	})
	return nil
}
