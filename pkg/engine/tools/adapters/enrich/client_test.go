package enrich

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pitchline/pitchline/pkg/engine"
)

func TestClient_Company(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/companies" {
			t.Fatalf("path=%s", r.URL.Path)
		}
		if got := r.URL.Query().Get("domain"); got != "acme.test" {
			t.Fatalf("domain=%q", got)
		}
		_, _ = w.Write([]byte(`{"name":"Acme","domain":"acme.test","industry":"Manufacturing","size":"200-500","summary":"Anvils"}`))
	}))
	defer srv.Close()

	c := NewClient("key", srv.URL, srv.Client())
	company, err := c.Company(context.Background(), "Acme.Test ")
	if err != nil {
		t.Fatalf("company: %v", err)
	}
	if company.Name != "Acme" || company.Industry != "Manufacturing" {
		t.Fatalf("company=%+v", company)
	}
}

func TestClient_PersonNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient("key", srv.URL, srv.Client())
	_, err := c.Person(context.Background(), "ada@acme.test")
	var typed *engine.Error
	if !errors.As(err, &typed) || typed.Type != engine.ErrNotFound {
		t.Fatalf("err=%v, want not_found engine.Error", err)
	}
}

func TestClient_PersonValidatesEmail(t *testing.T) {
	c := NewClient("key", "", nil)
	if _, err := c.Person(context.Background(), "not-an-email"); err == nil {
		t.Fatalf("expected validation error")
	}
}
