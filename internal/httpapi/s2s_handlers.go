package httpapi

import (
	"net/http"
)

type registerCredentialRequest struct {
	Token      string `json:"token"`
	ElectionID string `json:"election_id"`
}

func (a *RecorderAPI) s2sRegisterCredential(w http.ResponseWriter, r *http.Request) {
	var req registerCredentialRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if err := a.svc.RegisterCredential(r.Context(), req.Token, req.ElectionID); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"status": "registered"})
}

func (a *RecorderAPI) s2sGetElection(w http.ResponseWriter, r *http.Request) {
	e, err := a.svc.S2SGetElection(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (a *RecorderAPI) s2sResults(w http.ResponseWriter, r *http.Request) {
	counts, err := a.svc.S2SResults(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": counts})
}
