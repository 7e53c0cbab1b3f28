package httpapi

import (
	"net/http"
)

type ballotRequest struct {
	Token             string   `json:"token"`
	ElectionID        string   `json:"election_id"`
	SelectedAnswerIDs []string `json:"selected_answer_ids"`
}

func (a *RecorderAPI) listElections(w http.ResponseWriter, r *http.Request) {
	elections, err := a.svc.VisibleElections(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"elections": elections})
}

func (a *RecorderAPI) getElection(w http.ResponseWriter, r *http.Request) {
	e, err := a.svc.VisibleElection(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (a *RecorderAPI) submitBallot(w http.ResponseWriter, r *http.Request) {
	var req ballotRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if req.Token == "" {
		writeError(w, r, http.StatusBadRequest, "token_required", "token must not be empty")
		return
	}
	if req.ElectionID == "" {
		writeError(w, r, http.StatusBadRequest, "election_id_required", "election_id must not be empty")
		return
	}
	b, err := a.svc.SubmitBallot(r.Context(), req.Token, req.ElectionID, req.SelectedAnswerIDs)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

func (a *RecorderAPI) credentialStatus(w http.ResponseWriter, r *http.Request) {
	c, err := a.svc.CredentialStatus(r.Context(), r.PathValue("token"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"election_id": c.ElectionID,
		"consumed":    c.Consumed(),
	})
}
