package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/pitchline/pitchline/pkg/engine"
)

type errorEnvelope struct {
	Error *engine.Error `json:"error"`
}

func writeJSONError(w http.ResponseWriter, status int, err *engine.Error) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorEnvelope{Error: err})
}
