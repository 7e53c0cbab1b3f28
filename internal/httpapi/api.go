package httpapi

import (
	"net/http"
	"time"

	"ballotbox.org/internal/identity"
	"ballotbox.org/internal/issuer"
	"ballotbox.org/internal/obs"
	"ballotbox.org/internal/recorder"
)

// Options configures the HTTP surface shared by both services.
type Options struct {
	Version        string
	S2SToken       string
	RateBurst      int
	RatePerSecond  int
	AllowedOrigins []string
}

func (o *Options) defaults() {
	if o.RateBurst <= 0 {
		o.RateBurst = 50
	}
	if o.RatePerSecond <= 0 {
		o.RatePerSecond = 25
	}
	if o.Version == "" {
		o.Version = "dev"
	}
}

// RecorderAPI is the ballot recorder's HTTP layer: member-facing reads and
// ballot submission, the administrative lifecycle surface, and the S2S
// surface used by the credential issuer.
type RecorderAPI struct {
	mux      *http.ServeMux
	svc      *recorder.Service
	verifier *identity.Verifier
	store    recorder.Store
	opts     Options
}

// NewRecorder wires the recorder routes.
func NewRecorder(svc *recorder.Service, verifier *identity.Verifier, store recorder.Store, opts Options) *RecorderAPI {
	opts.defaults()
	a := &RecorderAPI{
		mux:      http.NewServeMux(),
		svc:      svc,
		verifier: verifier,
		store:    store,
		opts:     opts,
	}

	a.mux.HandleFunc("GET /healthz", a.healthz("ballot-recorder"))
	a.mux.HandleFunc("GET /readyz", a.readyz)
	a.mux.HandleFunc("GET /v1/info", a.info("ballot-recorder"))
	a.mux.Handle("GET /metrics", obs.Handler())

	// Member surface.
	a.mux.HandleFunc("GET /v1/elections", a.listElections)
	a.mux.HandleFunc("GET /v1/elections/{id}", a.getElection)
	a.mux.HandleFunc("POST /v1/ballots", a.submitBallot)
	a.mux.HandleFunc("GET /v1/credentials/{token}", a.credentialStatus)

	// Administrative surface.
	a.mux.HandleFunc("GET /v1/admin/elections", a.adminListElections)
	a.mux.HandleFunc("POST /v1/admin/elections", a.adminCreateElection)
	a.mux.HandleFunc("GET /v1/admin/elections/{id}", a.adminGetElection)
	a.mux.HandleFunc("PUT /v1/admin/elections/{id}", a.adminUpdateElection)
	a.mux.HandleFunc("DELETE /v1/admin/elections/{id}", a.adminDeleteElection)
	a.mux.HandleFunc("POST /v1/admin/elections/{id}/publish", a.adminTransition((*recorder.Service).Publish))
	a.mux.HandleFunc("POST /v1/admin/elections/{id}/pause", a.adminTransition((*recorder.Service).Pause))
	a.mux.HandleFunc("POST /v1/admin/elections/{id}/resume", a.adminTransition((*recorder.Service).Resume))
	a.mux.HandleFunc("POST /v1/admin/elections/{id}/close", a.adminTransition((*recorder.Service).Close))
	a.mux.HandleFunc("POST /v1/admin/elections/{id}/archive", a.adminTransition((*recorder.Service).Archive))
	a.mux.HandleFunc("POST /v1/admin/elections/{id}/hide", a.adminTransition((*recorder.Service).Hide))
	a.mux.HandleFunc("POST /v1/admin/elections/{id}/unhide", a.adminTransition((*recorder.Service).Unhide))
	a.mux.HandleFunc("GET /v1/admin/elections/{id}/results", a.adminResults)

	// S2S surface, authenticated with the static service token.
	a.mux.HandleFunc("POST /s2s/v1/credentials", requireS2S(opts.S2SToken, a.s2sRegisterCredential))
	a.mux.HandleFunc("GET /s2s/v1/elections/{id}", requireS2S(opts.S2SToken, a.s2sGetElection))
	a.mux.HandleFunc("GET /s2s/v1/elections/{id}/results", requireS2S(opts.S2SToken, a.s2sResults))

	return a
}

// Handler returns the fully wrapped handler.
func (a *RecorderAPI) Handler() http.Handler {
	return chain(a.mux, a.verifier, a.opts)
}

// IssuerAPI is the credential issuer's HTTP layer.
type IssuerAPI struct {
	mux      *http.ServeMux
	svc      *issuer.Service
	verifier *identity.Verifier
	store    issuer.Store
	opts     Options
}

// NewIssuer wires the issuer routes.
func NewIssuer(svc *issuer.Service, verifier *identity.Verifier, store issuer.Store, opts Options) *IssuerAPI {
	opts.defaults()
	a := &IssuerAPI{
		mux:      http.NewServeMux(),
		svc:      svc,
		verifier: verifier,
		store:    store,
		opts:     opts,
	}

	a.mux.HandleFunc("GET /healthz", a.healthz)
	a.mux.HandleFunc("GET /readyz", a.readyz)
	a.mux.HandleFunc("GET /v1/info", a.info)
	a.mux.Handle("GET /metrics", obs.Handler())

	a.mux.HandleFunc("POST /v1/elections/{id}/credentials", a.issueCredential)
	a.mux.HandleFunc("GET /v1/elections/{id}/credentials", a.credentialIssued)

	return a
}

// Handler returns the fully wrapped handler.
func (a *IssuerAPI) Handler() http.Handler {
	return chain(a.mux, a.verifier, a.opts)
}

func chain(mux *http.ServeMux, verifier *identity.Verifier, opts Options) http.Handler {
	h := withAuth(verifier, mux)
	h = MaxBodyBytes(h, 1<<20)
	h = RateLimit(h, opts.RateBurst, opts.RatePerSecond)
	h = CORS(h, opts.AllowedOrigins)
	h = SecurityHeaders(h)
	h = obs.Instrument(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	return h
}

// --- health/info handlers ---

func (a *RecorderAPI) healthz(service string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":  "ok",
			"service": service,
			"version": a.opts.Version,
		})
	}
}

func (a *RecorderAPI) readyz(w http.ResponseWriter, r *http.Request) {
	if err := a.store.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

func (a *RecorderAPI) info(service string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"name":    service,
			"time":    time.Now().UTC().Format(time.RFC3339),
			"version": a.opts.Version,
		})
	}
}

func (a *IssuerAPI) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "credential-issuer",
		"version": a.opts.Version,
	})
}

func (a *IssuerAPI) readyz(w http.ResponseWriter, r *http.Request) {
	if err := a.store.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

func (a *IssuerAPI) info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "credential-issuer",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.opts.Version,
	})
}
