package errs

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestStatusMapping(t *testing.T) {
	cases := []struct {
		err  *Error
		want int
	}{
		{Validation("bad"), http.StatusBadRequest},
		{Authentication("who"), http.StatusUnauthorized},
		{Authorization("no"), http.StatusForbidden},
		{NotFound("missing"), http.StatusNotFound},
		{Conflict("dup"), http.StatusConflict},
		{Internal(errors.New("boom")), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := tc.err.Status(); got != tc.want {
			t.Errorf("%s: status = %d, want %d", tc.err.Kind, got, tc.want)
		}
	}
}

func TestFromPreservesAppErrors(t *testing.T) {
	orig := Conflict("slug taken")
	wrapped := fmt.Errorf("creating post: %w", orig)

	got := From(wrapped)
	if got.Kind != KindConflict || got.Message != "slug taken" {
		t.Fatalf("From(wrapped) = %+v, want the original conflict", got)
	}
}

func TestFromWrapsUnknownAsInternal(t *testing.T) {
	got := From(errors.New("disk on fire"))
	if got.Kind != KindInternal {
		t.Fatalf("kind = %s, want internal", got.Kind)
	}
	if got.Message == "disk on fire" {
		t.Fatal("internal cause must not leak into the message")
	}
	if got.Unwrap() == nil {
		t.Fatal("cause should be preserved for logging")
	}
}

func TestIsKind(t *testing.T) {
	err := fmt.Errorf("outer: %w", NotFound("gone"))
	if !IsKind(err, KindNotFound) {
		t.Fatal("expected not_found kind through wrapping")
	}
	if IsKind(err, KindConflict) {
		t.Fatal("unexpected conflict kind")
	}
	if IsKind(errors.New("plain"), KindInternal) {
		t.Fatal("plain errors carry no kind")
	}
}
