package httpapi

import (
	"context"
	"net/http"

	"ballotbox.org/internal/election"
	"ballotbox.org/internal/recorder"
)

func (a *RecorderAPI) adminListElections(w http.ResponseWriter, r *http.Request) {
	includeHidden := r.URL.Query().Get("include_hidden") == "true"
	elections, err := a.svc.AdminListElections(r.Context(), includeHidden)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"elections": elections})
}

func (a *RecorderAPI) adminGetElection(w http.ResponseWriter, r *http.Request) {
	e, err := a.svc.AdminGetElection(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (a *RecorderAPI) adminCreateElection(w http.ResponseWriter, r *http.Request) {
	var upd election.DraftUpdate
	if err := decodeJSON(w, r, &upd); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	e, err := a.svc.CreateElection(r.Context(), upd)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (a *RecorderAPI) adminUpdateElection(w http.ResponseWriter, r *http.Request) {
	var upd election.DraftUpdate
	if err := decodeJSON(w, r, &upd); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	e, err := a.svc.UpdateElection(r.Context(), r.PathValue("id"), upd)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (a *RecorderAPI) adminDeleteElection(w http.ResponseWriter, r *http.Request) {
	if err := a.svc.HardDelete(r.Context(), r.PathValue("id")); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// adminTransition adapts a lifecycle method of the service into a handler.
// Every transition route has the same shape: path id in, updated record out.
func (a *RecorderAPI) adminTransition(
	apply func(*recorder.Service, context.Context, string) (election.Election, error),
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e, err := apply(a.svc, r.Context(), r.PathValue("id"))
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, e)
	}
}

func (a *RecorderAPI) adminResults(w http.ResponseWriter, r *http.Request) {
	counts, err := a.svc.AdminResults(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": counts})
}
