// Copyright (c) 2024 Nate Bag

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/natebag/trenchtools/vault"
)

type echoRequest struct {
	Name string
}

type echoResponse struct {
	Greeting string
}

func TestPostJSONHandler(t *testing.T) {
	handler := httpPostJSONHandler(func(ctx context.Context, req *echoRequest) (*echoResponse, error) {
		if req.Name == "" {
			return nil, os.ErrInvalid
		}
		return &echoResponse{Greeting: "hello " + req.Name}, nil
	})

	data, _ := json.Marshal(&echoRequest{Name: "operator"})
	r := httptest.NewRequest(http.MethodPost, "/test", bytes.NewReader(data))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}
	resp := new(echoResponse)
	if err := json.NewDecoder(w.Body).Decode(resp); err != nil {
		t.Fatal(err)
	}
	if resp.Greeting != "hello operator" {
		t.Fatalf("greeting = %q", resp.Greeting)
	}
}

func TestPostJSONHandlerRejectsGet(t *testing.T) {
	handler := httpPostJSONHandler(func(ctx context.Context, req *echoRequest) (*echoResponse, error) {
		return &echoResponse{}, nil
	})
	r := httptest.NewRequest(http.MethodGet, "/test", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusMethodNotAllowed)
	}
}

func TestHTTPStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{os.ErrNotExist, http.StatusNotFound},
		{os.ErrExist, http.StatusConflict},
		{os.ErrInvalid, http.StatusBadRequest},
		{vault.ErrLocked, http.StatusPreconditionFailed},
		{fmt.Errorf("group %q: %w", "abc", os.ErrNotExist), http.StatusNotFound},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		if got := httpStatusFor(c.err); got != c.want {
			t.Errorf("httpStatusFor(%v) = %d, want %d", c.err, got, c.want)
		}
	}
}
