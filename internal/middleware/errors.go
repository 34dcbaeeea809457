package middleware

import (
	"encoding/json"
	"net/http"
)

// errorBody mirrors the error envelope written by the handler package so
// requests rejected here look the same to clients.
type errorBody struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(errorBody{Status: "error", Message: msg})
}
