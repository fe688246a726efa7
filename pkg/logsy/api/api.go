// Package api exposes the service over HTTP. Each entity gets its own
// handler with a Routes() method ready to mount on a chi router.
package api

import (
	"log/slog"
	"net/http"

	"github.com/fruit-freedom/logsy/pkg/logsy"
)

// writeError maps service errors onto HTTP statuses: missing entities are
// 404, request-shape problems are 422, tiling failures are 400, everything
// else is 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case logsy.IsNotFound(err):
		http.Error(w, err.Error(), http.StatusNotFound)
	case logsy.IsValidation(err):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case logsy.IsTiling(err):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		slog.Error("Request failed", "path", r.URL.Path, "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
