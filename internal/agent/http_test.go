package agent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSPARQLClientExecute(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method: %s", r.Method)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if r.FormValue("query") == "" {
			t.Errorf("missing query parameter")
		}
		w.Header().Set("Content-Type", "application/sparql-results+json")
		json.NewEncoder(w).Encode(map[string]any{
			"head": map[string]any{"vars": []string{"g"}},
			"results": map[string]any{
				"bindings": []any{
					map[string]any{"g": map[string]any{"type": "uri", "value": "ex:TP53"}},
				},
			},
		})
	}))
	defer srv.Close()

	c := NewSPARQLClient(5 * time.Second)
	rows, err := c.Execute(context.Background(), srv.URL, "SELECT ?g WHERE { ?g ?p ?o }")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(rows) != 1 || rows[0]["g"] != "ex:TP53" {
		t.Fatalf("rows: %v", rows)
	}
}

func TestSPARQLClientAskResult(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"boolean": true})
	}))
	defer srv.Close()

	c := NewSPARQLClient(0)
	rows, err := c.Execute(context.Background(), srv.URL, "ASK { ex:P53 a ex:Protein }")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(rows) != 1 || rows[0]["boolean"] != true {
		t.Fatalf("rows: %v", rows)
	}
}

func TestSPARQLClientErrors(t *testing.T) {
	t.Parallel()

	c := NewSPARQLClient(time.Second)
	if _, err := c.Execute(context.Background(), "", "SELECT"); err == nil {
		t.Fatalf("expected error for empty endpoint")
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "malformed query", http.StatusBadRequest)
	}))
	defer srv.Close()
	if _, err := c.Execute(context.Background(), srv.URL, "SELECT"); err == nil {
		t.Fatalf("expected error for non-200 status")
	}
}

func TestHTTPBackendRoundTrip(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.TaskID != "t1" || req.MaxIterations != 7 {
			t.Errorf("request: %+v", req)
		}
		json.NewEncoder(w).Encode(RunOutput{
			Answer:    "ex:TP53",
			Converged: true,
			Trajectory: []any{
				map[string]any{"query": "SELECT ?g", "output": "ex:TP53"},
			},
			Artifacts: map[string]any{"query_emitted": "SELECT ?g"},
		})
	}))
	defer srv.Close()

	b, err := NewHTTPBackend(srv.URL, time.Second)
	if err != nil {
		t.Fatalf("NewHTTPBackend: %v", err)
	}
	out, err := b.Run(context.Background(), &Request{TaskID: "t1", Query: "q", MaxIterations: 7})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Answer != "ex:TP53" || !out.Converged || len(out.Trajectory) != 1 {
		t.Fatalf("output: %+v", out)
	}
}

func TestHTTPBackendServiceError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "agent exploded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	b, err := NewHTTPBackend(srv.URL, time.Second)
	if err != nil {
		t.Fatalf("NewHTTPBackend: %v", err)
	}
	if _, err := b.Run(context.Background(), &Request{TaskID: "t1"}); err == nil {
		t.Fatalf("expected error for 500 response")
	}

	if _, err := NewHTTPBackend("   ", time.Second); err == nil {
		t.Fatalf("expected error for empty endpoint")
	}
}
