package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "github.com/zuclubit/certus/pkg/domain-errors"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps a coded error to its HTTP envelope. Uncoded errors leak
// no detail: the client sees a generic internal error.
func writeError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	message := "internal error"
	var derr *dErrors.Error
	if errors.As(err, &derr) {
		message = derr.Message
	}
	writeJSON(w, dErrors.ToHTTPStatus(code), errorEnvelope{Error: errorBody{
		Code:    string(code),
		Message: message,
	}})
}
