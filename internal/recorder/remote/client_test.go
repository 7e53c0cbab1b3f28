package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ballotbox.org/internal/audit"
	"ballotbox.org/internal/election"
)

func TestGetElection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/s2s/v1/elections/e1" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer s2s-token" {
			t.Errorf("unexpected auth header %q", got)
		}
		if got := r.Header.Get("X-Correlation-ID"); got != "corr-1" {
			t.Errorf("correlation id not forwarded, got %q", got)
		}
		_ = json.NewEncoder(w).Encode(election.Election{ID: "e1", Status: election.StatusPublished})
	}))
	defer srv.Close()

	c := New(srv.URL, "s2s-token", time.Second)
	ctx := audit.WithCorrelationID(context.Background(), "corr-1")
	e, err := c.GetElection(ctx, "e1")
	if err != nil {
		t.Fatal(err)
	}
	if e.ID != "e1" || e.Status != election.StatusPublished {
		t.Fatalf("unexpected election: %#v", e)
	}
}

func TestRegisterCredentialSendsBarePair(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := New(srv.URL, "s2s-token", time.Second)
	if err := c.RegisterCredential(context.Background(), "tok-1", "e1"); err != nil {
		t.Fatal(err)
	}
	if len(body) != 2 || body["token"] != "tok-1" || body["election_id"] != "e1" {
		t.Fatalf("payload must be exactly {token, election_id}, got %#v", body)
	}
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		status int
		code   string
		want   error
	}{
		{http.StatusBadRequest, "token_required", election.ErrValidation},
		{http.StatusNotFound, "election_not_found", election.ErrNotFound},
		{http.StatusConflict, "credential_mismatch", election.ErrConflict},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "boom", "code": tc.code})
		}))
		c := New(srv.URL, "s2s-token", time.Second)
		err := c.RegisterCredential(context.Background(), "tok", "e1")
		srv.Close()

		if !errors.Is(err, tc.want) {
			t.Fatalf("status %d: expected %v, got %v", tc.status, tc.want, err)
		}
		if election.CodeOf(err) != tc.code {
			t.Fatalf("status %d: expected code %s, got %s", tc.status, tc.code, election.CodeOf(err))
		}
	}
}

func TestServerErrorIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL, "s2s-token", time.Second)
	if err := c.RegisterCredential(context.Background(), "tok", "e1"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestTransportFailureIsUnavailable(t *testing.T) {
	c := New("http://127.0.0.1:1", "s2s-token", 200*time.Millisecond)
	if _, err := c.GetElection(context.Background(), "e1"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}
