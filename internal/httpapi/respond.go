package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"ballotbox.org/internal/election"
	"ballotbox.org/internal/identity"
	"ballotbox.org/internal/issuer"
	"ballotbox.org/internal/obs"
	"ballotbox.org/internal/rbac"
	"ballotbox.org/internal/recorder/remote"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, msg string) {
	payload := map[string]any{
		"error": msg,
		"code":  code,
	}
	if cid := CorrelationIDFromRequest(r); cid != "" {
		payload["request_id"] = cid
	}
	writeJSON(w, status, payload)
}

// writeDomainError maps the error taxonomy onto HTTP statuses: 400
// validation, 401 authentication, 403 authorization, 404 not found, 409
// conflict or state. Anything outside the taxonomy is logged server-side and
// surfaced as a generic failure without internal detail.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	code := election.CodeOf(err)
	reason := election.ReasonOf(err)

	switch {
	case errors.Is(err, identity.ErrAuthentication):
		writeError(w, r, http.StatusUnauthorized, "authentication_failed", err.Error())
	case errors.Is(err, rbac.ErrAuthorization):
		writeError(w, r, http.StatusForbidden, "forbidden", "insufficient role for this operation")
	case errors.Is(err, election.ErrValidation):
		writeError(w, r, http.StatusBadRequest, code, reason)
	case errors.Is(err, election.ErrNotFound):
		writeError(w, r, http.StatusNotFound, code, reason)
	case errors.Is(err, election.ErrConflict), errors.Is(err, election.ErrState):
		writeError(w, r, http.StatusConflict, code, reason)
	case errors.Is(err, issuer.ErrRegistration), errors.Is(err, remote.ErrUnavailable):
		obs.LogRequest(map[string]any{
			"level": "error",
			"msg":   "upstream failure",
			"error": err.Error(),
			"path":  r.URL.Path,
		})
		writeError(w, r, http.StatusServiceUnavailable, "temporarily_unavailable", "please retry shortly")
	default:
		obs.LogRequest(map[string]any{
			"level": "error",
			"msg":   "internal error",
			"error": err.Error(),
			"path":  r.URL.Path,
		})
		writeError(w, r, http.StatusInternalServerError, "internal_error", "internal error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}
