package httpapi

import (
	"net/http"
)

func (a *IssuerAPI) issueCredential(w http.ResponseWriter, r *http.Request) {
	token, err := a.svc.IssueCredential(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"token":       token,
		"election_id": r.PathValue("id"),
	})
}

func (a *IssuerAPI) credentialIssued(w http.ResponseWriter, r *http.Request) {
	issued, err := a.svc.HasCredential(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"election_id": r.PathValue("id"),
		"issued":      issued,
	})
}
