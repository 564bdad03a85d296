package response

import (
	"encoding/json"
	"net/http"
)

// Envelope is the stable JSON shape every endpoint returns. Clients key
// off Success to decide between rendering data and showing the inline
// error message.
type Envelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// SendSuccess writes a success envelope with a payload.
func SendSuccess(w http.ResponseWriter, statusCode int, message string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(Envelope{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// SendSuccessNoData writes a success envelope without a payload.
func SendSuccessNoData(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(Envelope{
		Success: true,
		Message: message,
	})
}

// SendError writes a failure envelope. Authorization denials use this
// with 403 so the client renders the reason inline.
func SendError(w http.ResponseWriter, statusCode int, errMsg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(Envelope{
		Success: false,
		Error:   errMsg,
	})
}
