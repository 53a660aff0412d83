package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestStatusError_Error(t *testing.T) {
	err := &StatusError{StatusCode: 404, Body: "no such bucket"}
	if got := err.Error(); got != "server returned 404: no such bucket" {
		t.Errorf("Error() = %v", got)
	}

	err = &StatusError{StatusCode: 304}
	if got := err.Error(); got != "server returned 304" {
		t.Errorf("Error() = %v", got)
	}
}

func TestIsStatus(t *testing.T) {
	base := &StatusError{StatusCode: 304}
	wrapped := fmt.Errorf("create bucket b1: %w", base)

	if !IsStatus(wrapped, 304) {
		t.Error("IsStatus(wrapped, 304) = false, want true")
	}
	if IsStatus(wrapped, 500) {
		t.Error("IsStatus(wrapped, 500) = true, want false")
	}
	if IsStatus(fmt.Errorf("plain"), 304) {
		t.Error("IsStatus(plain, 304) = true, want false")
	}
}

func TestTransport_GetDecodesJSON(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/info" {
			t.Errorf("Path = %v, want /info", r.URL.Path)
		}
		w.Write([]byte(`{"hostname": "srv"}`))
	}))
	defer ts.Close()

	tr := New(ts.URL+"/", nil, nil) // trailing slash must be stripped
	var out struct {
		Hostname string `json:"hostname"`
	}
	if err := tr.Get(context.Background(), "/info", &out); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if out.Hostname != "srv" {
		t.Errorf("hostname = %v, want srv", out.Hostname)
	}
}

func TestTransport_PostSendsJSONBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %v, want application/json", ct)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body["client"] != "test" {
			t.Errorf("client = %v, want test", body["client"])
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	tr := New(ts.URL, nil, nil)
	err := tr.Post(context.Background(), "/buckets/b1", map[string]string{"client": "test"}, nil)
	if err != nil {
		t.Fatalf("Post failed: %v", err)
	}
}

func TestTransport_NonSuccessStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer ts.Close()

	tr := New(ts.URL, nil, nil)
	err := tr.Get(context.Background(), "/info", nil)
	if err == nil {
		t.Fatal("Get succeeded, want error")
	}
	if !IsStatus(err, http.StatusInternalServerError) {
		t.Errorf("error = %v, want StatusError 500", err)
	}
}

func TestTransport_EmptyResponseBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	tr := New(ts.URL, nil, nil)
	var out map[string]string
	if err := tr.Post(context.Background(), "/x", nil, &out); err != nil {
		t.Fatalf("Post failed: %v", err)
	}
	if out != nil {
		t.Errorf("out = %v, want untouched nil", out)
	}
}
