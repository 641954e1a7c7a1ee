package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/MrEthical07/sessiongate"
)

// Envelope is the body of every JSON response.
type Envelope struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

// WriteJSON writes an envelope with the given status.
func WriteJSON(w http.ResponseWriter, status int, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Envelope{Code: status, Message: message, Data: data})
}

// WriteError writes err as an envelope using the engine's status table and
// its client-facing message.
func WriteError(w http.ResponseWriter, err error) {
	WriteJSON(w, sessiongate.StatusCode(err), sessiongate.PublicMessage(err), nil)
}
