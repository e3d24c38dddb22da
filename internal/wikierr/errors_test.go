package wikierr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindUnknown},
		{"plain", errors.New("boom"), KindUnknown},
		{"not found", fmt.Errorf("open: %w", ErrDocumentNotFound), KindDocumentNotFound},
		{"missing", Missing("property %s", "code"), KindMissingField},
		{"status", &StatusError{Method: "GET", URL: "http://x", StatusCode: 500}, KindUnexpectedStatus},
		{"wrapped status", Wrap("read", "/p", &StatusError{StatusCode: 404}), KindUnexpectedStatus},
		{"unresolved", Unresolved("/nope"), KindUnresolvedPath},
		{"conflict", ErrSourceConflict, KindSourceConflict},
		{"read only", Wrap("write", "/p", ErrReadOnly), KindReadOnly},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestStatusErrorMessage(t *testing.T) {
	err := &StatusError{Method: "PUT", URL: "http://wiki/rest", StatusCode: 401}
	if got, want := err.Error(), "PUT http://wiki/rest: unexpected status 401"; got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}

	err.Body = "denied"
	if got, want := err.Error(), "PUT http://wiki/rest: unexpected status 401: denied"; got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}

func TestWrap(t *testing.T) {
	if Wrap("read", "/x", nil) != nil {
		t.Error("Expected nil for nil error")
	}

	err := Wrap("read", "/x", ErrMissingField)
	var opErr *Error
	if !errors.As(err, &opErr) {
		t.Fatal("Expected *Error")
	}
	if opErr.Op != "read" || opErr.Path != "/x" {
		t.Errorf("Unexpected op/path: %q %q", opErr.Op, opErr.Path)
	}
	if got, want := err.Error(), "operation read on /x failed: missing field"; got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}
