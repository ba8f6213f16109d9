package common

import (
	"encoding/json"
	"net/http"
	"time"
)

// Envelope is the JSON body of every API response.
type Envelope struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message,omitempty"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Envelope{
		Success:   status < 400,
		Data:      data,
		Timestamp: time.Now().UTC(),
	})
}

func WriteError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Envelope{
		Success:   false,
		Message:   message,
		Timestamp: time.Now().UTC(),
	})
}

// WriteErr classifies err through the taxonomy. Unclassified errors are
// reported without leaking their text.
func WriteErr(w http.ResponseWriter, err error) {
	status := HTTPStatus(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal server error"
	}
	WriteError(w, status, msg)
}
