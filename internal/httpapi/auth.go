package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/MrEthical07/sessiongate"
	"github.com/MrEthical07/sessiongate/middleware"
)

type registerRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Password  string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type resetPasswordRequest struct {
	NewPassword string `json:"new_password"`
}

func (a *api) register(w http.ResponseWriter, r *http.Request) error {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return err
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return fmt.Errorf("%w: email and password are required", sessiongate.ErrInvalidInput)
	}

	res, err := a.engine.Register(r.Context(), sessiongate.RegisterRequest{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		Phone:     strings.TrimSpace(req.Phone),
	})
	if err != nil {
		return err
	}
	return a.writeLogin(w, res, "User registered successfully")
}

func (a *api) login(w http.ResponseWriter, r *http.Request) error {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return err
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return fmt.Errorf("%w: email and password are required", sessiongate.ErrInvalidInput)
	}

	res, err := a.engine.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		return err
	}
	if res.ResetRequired {
		middleware.WriteJSON(w, http.StatusOK, "Password reset required", resetRequiredResponse{
			ResetToken: res.ResetToken,
			ExpiresAt:  res.ResetExpiresAt.UTC(),
		})
		return nil
	}
	return a.writeLogin(w, res, "User logged in successfully")
}

// writeLogin sets the session cookie and renders the access token with the
// user's public fields.
func (a *api) writeLogin(w http.ResponseWriter, res *sessiongate.LoginResult, message string) error {
	a.setSessionCookie(w, res.SessionID, res.SessionExpiresAt)
	middleware.WriteJSON(w, http.StatusOK, message, loginResponse{
		tokenResponse: a.newToken(res.AccessToken),
		User:          toUser(res.User),
	})
	return nil
}

func (a *api) token(w http.ResponseWriter, r *http.Request) error {
	sid, ok := a.sessionCookie(r)
	if !ok {
		return sessiongate.ErrUnauthorized
	}

	res, err := a.engine.Refresh(r.Context(), sid)
	if err != nil {
		return err
	}
	middleware.WriteJSON(w, http.StatusOK, "Token refreshed successfully", a.newToken(res.AccessToken))
	return nil
}

func (a *api) logout(w http.ResponseWriter, r *http.Request) error {
	caller, _ := middleware.AuthResultFromContext(r.Context())
	if err := a.engine.Logout(r.Context(), caller.UserID, caller.SessionID); err != nil {
		return err
	}
	a.clearSessionCookie(w)
	middleware.WriteJSON(w, http.StatusOK, "User logged out successfully", nil)
	return nil
}

func (a *api) logoutAll(w http.ResponseWriter, r *http.Request) error {
	caller, _ := middleware.AuthResultFromContext(r.Context())
	if err := a.engine.LogoutAll(r.Context(), caller.UserID); err != nil {
		return err
	}
	a.clearSessionCookie(w)
	middleware.WriteJSON(w, http.StatusOK, "All devices logged out successfully", nil)
	return nil
}

/*
====================================
PASSWORD RESET
====================================
*/

// validateReset checks the reset bearer token without consuming it.
func (a *api) validateReset(w http.ResponseWriter, r *http.Request) error {
	token, ok := middleware.BearerToken(r.Header.Get("Authorization"))
	if !ok {
		return sessiongate.ErrPasswordResetInvalid
	}

	info, err := a.engine.ValidateResetToken(r.Context(), token)
	if err != nil {
		return err
	}
	middleware.WriteJSON(w, http.StatusOK, "Token is valid", map[string]any{
		"is_valid":   true,
		"email":      info.Email,
		"expires_at": info.ExpiresAt.UTC(),
	})
	return nil
}

func (a *api) resetPassword(w http.ResponseWriter, r *http.Request) error {
	token, ok := middleware.BearerToken(r.Header.Get("Authorization"))
	if !ok {
		return sessiongate.ErrPasswordResetInvalid
	}
	var req resetPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return err
	}

	res, err := a.engine.ResetPassword(r.Context(), token, req.NewPassword)
	if err != nil {
		return err
	}
	return a.writeLogin(w, res, "Password reset successfully")
}
