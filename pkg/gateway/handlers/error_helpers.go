package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/vango-go/vai-interview/pkg/core"
	"github.com/vango-go/vai-interview/pkg/gateway/apierror"
)

// writeCoreErrorJSON writes coreErr with an explicit status. The request id
// is stamped on a copy so shared error values are never mutated.
func writeCoreErrorJSON(w http.ResponseWriter, reqID string, coreErr *core.Error, status int) {
	body := core.Error{Type: core.ErrAPI, Message: "internal error"}
	if coreErr != nil {
		body = *coreErr
	}
	if body.RequestID == "" {
		body.RequestID = reqID
	}
	h := w.Header()
	h.Set("Content-Type", "application/json; charset=utf-8")
	h.Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(apierror.Envelope{Error: &body})
}

func writeErrorJSON(w http.ResponseWriter, reqID string, err error) {
	coreErr, status := apierror.FromError(err, reqID)
	writeCoreErrorJSON(w, reqID, coreErr, status)
}
