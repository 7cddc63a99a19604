package main

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
)

func respWith(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func TestDecodeJSONSuccess(t *testing.T) {
	var out struct {
		ID string `json:"id"`
	}
	if err := decodeJSON(respWith(200, `{"id":"t-1"}`), &out); err != nil {
		t.Fatalf("decodeJSON: %v", err)
	}
	if out.ID != "t-1" {
		t.Errorf("id = %q", out.ID)
	}
}

func TestDecodeJSONErrorEnvelope(t *testing.T) {
	err := decodeJSON(respWith(409,
		`{"error":{"type":"conflict","message":"a run is already active for this tender"}}`), nil)
	if err == nil {
		t.Fatal("error status decoded as success")
	}

	var apiErr *apiError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error type = %T: %v", err, err)
	}
	if apiErr.StatusCode != 409 || apiErr.Type != "conflict" {
		t.Errorf("apiError = %+v", apiErr)
	}
	if apiErr.Error() != "a run is already active for this tender" {
		t.Errorf("message = %q", apiErr.Error())
	}
}

func TestDecodeJSONNonEnvelopeError(t *testing.T) {
	err := decodeJSON(respWith(502, "bad gateway"), nil)
	if err == nil {
		t.Fatal("error status decoded as success")
	}
	if !strings.Contains(err.Error(), "502") || !strings.Contains(err.Error(), "bad gateway") {
		t.Errorf("error = %v", err)
	}
}
