package http

import (
	"encoding/json"
	"net/http"
)

// Envelope is the uniform JSON response shape
type Envelope struct {
	Status  bool        `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
	Code    string      `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, statusCode int, envelope Envelope) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(envelope)
}

func writeSuccess(w http.ResponseWriter, statusCode int, message string, data interface{}) {
	writeJSON(w, statusCode, Envelope{Status: true, Message: message, Data: data})
}

func writeError(w http.ResponseWriter, statusCode int, code, message string) {
	writeJSON(w, statusCode, Envelope{Status: false, Message: message, Data: nil, Code: code})
}
