package httpapi

import (
	"net/http"

	"github.com/MrEthical07/sessiongate"
	"github.com/MrEthical07/sessiongate/middleware"
)

type changePasswordRequest struct {
	CurrentPassword  string `json:"current_password"`
	NewPassword      string `json:"new_password"`
	LogoutAllDevices *bool  `json:"logout_all_devices"`
}

func (a *api) profile(w http.ResponseWriter, r *http.Request) error {
	caller, _ := middleware.AuthResultFromContext(r.Context())
	middleware.WriteJSON(w, http.StatusOK, "User profile retrieved successfully", toProfile(caller.User))
	return nil
}

// sessions lists the caller's active devices and marks the one the request
// came from.
func (a *api) sessions(w http.ResponseWriter, r *http.Request) error {
	caller, _ := middleware.AuthResultFromContext(r.Context())

	list, err := a.engine.ListSessions(r.Context(), caller.UserID)
	if err != nil {
		return err
	}
	out := make([]sessionResponse, 0, len(list))
	for _, s := range list {
		out = append(out, sessionResponse{
			ID:        s.SessionID,
			IPAddress: s.IPAddress,
			UserAgent: s.UserAgent,
			Current:   s.SessionID == caller.SessionID,
			CreatedAt: s.CreatedAt,
			LastSeen:  s.UpdatedAt,
			ExpiresAt: s.ExpiresAt,
		})
	}
	middleware.WriteJSON(w, http.StatusOK, "Active sessions retrieved successfully", out)
	return nil
}

// changePassword logs out every device unless logout_all_devices is false.
// When it does, the session cookie is cleared too.
func (a *api) changePassword(w http.ResponseWriter, r *http.Request) error {
	caller, _ := middleware.AuthResultFromContext(r.Context())

	var req changePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return err
	}
	if req.CurrentPassword == "" {
		return sessiongate.ErrInvalidInput
	}
	logoutAll := req.LogoutAllDevices == nil || *req.LogoutAllDevices

	if err := a.engine.ChangePassword(r.Context(), caller.UserID, req.CurrentPassword, req.NewPassword, logoutAll); err != nil {
		return err
	}
	if logoutAll {
		a.clearSessionCookie(w)
	}
	middleware.WriteJSON(w, http.StatusOK, "Password changed successfully", nil)
	return nil
}
