package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/MrEthical07/sessiongate"
	"github.com/MrEthical07/sessiongate/middleware"
)

const maxBodyBytes = 1 << 20

// statusError is an error rendered with its own status and message instead
// of the engine's table.
type statusError struct {
	status  int
	message string
}

func (e *statusError) Error() string { return e.message }

func writeError(w http.ResponseWriter, err error) {
	var se *statusError
	if errors.As(err, &se) {
		middleware.WriteJSON(w, se.status, se.message, nil)
		return
	}
	middleware.WriteError(w, err)
}

// decodeJSON reads one JSON document from the request body into dst.
// Anything unreadable is ErrInvalidInput.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer body.Close()

	dec := json.NewDecoder(body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body", sessiongate.ErrInvalidInput)
		}
		return fmt.Errorf("%w: %v", sessiongate.ErrInvalidInput, err)
	}
	return nil
}

/*
====================================
COOKIES
====================================
*/

func (a *api) setSessionCookie(w http.ResponseWriter, sessionID string, expiresAt time.Time) {
	cfg := a.engine.CookieConfig()
	http.SetCookie(w, &http.Cookie{
		Name:     cfg.Name,
		Value:    sessionID,
		Path:     cfg.Path,
		MaxAge:   int(a.engine.SessionTTL().Seconds()),
		Expires:  expiresAt.UTC(),
		Secure:   cfg.Secure,
		HttpOnly: cfg.HTTPOnly,
		SameSite: cfg.SameSite,
	})
}

func (a *api) clearSessionCookie(w http.ResponseWriter) {
	cfg := a.engine.CookieConfig()
	http.SetCookie(w, &http.Cookie{
		Name:     cfg.Name,
		Value:    "",
		Path:     cfg.Path,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		Secure:   cfg.Secure,
		HttpOnly: cfg.HTTPOnly,
		SameSite: cfg.SameSite,
	})
}

func (a *api) sessionCookie(r *http.Request) (string, bool) {
	c, err := r.Cookie(a.engine.CookieConfig().Name)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}

/*
====================================
RESPONSE BODIES
====================================
*/

type userResponse struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

type profileResponse struct {
	userResponse
	Status    bool      `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

type sessionResponse struct {
	ID        string    `json:"id"`
	IPAddress string    `json:"ip_address"`
	UserAgent string    `json:"user_agent"`
	Current   bool      `json:"current"`
	CreatedAt time.Time `json:"created_at"`
	LastSeen  time.Time `json:"last_seen"`
	ExpiresAt time.Time `json:"expires_at"`
}

type tokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type loginResponse struct {
	tokenResponse
	User userResponse `json:"user"`
}

type resetRequiredResponse struct {
	ResetToken string    `json:"reset_token"`
	ExpiresAt  time.Time `json:"expires_at"`
}

func toUser(u sessiongate.UserRecord) userResponse {
	return userResponse{
		ID:        u.UserID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.Email,
		Phone:     u.Phone,
	}
}

func toProfile(u sessiongate.UserRecord) profileResponse {
	return profileResponse{userResponse: toUser(u), Status: u.Enabled, CreatedAt: u.CreatedAt.UTC()}
}

func (a *api) newToken(accessToken string) tokenResponse {
	return tokenResponse{
		AccessToken: accessToken,
		TokenType:   "bearer",
		ExpiresAt:   time.Now().Add(a.engine.AccessTokenTTL()).UTC(),
	}
}
