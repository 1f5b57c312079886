package faults

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestDataSourceError(t *testing.T) {
	err := &DataSourceError{Source: "adresser.csv", Missing: []string{"Vejnavn"}, Found: []string{"A", "B"}}
	msg := err.Error()
	if !strings.Contains(msg, "adresser.csv") || !strings.Contains(msg, "Vejnavn") {
		t.Fatalf("msg = %q", msg)
	}

	inner := errors.New("boom")
	wrapped := &DataSourceError{Source: "x.csv", Err: inner}
	if !errors.Is(wrapped, inner) {
		t.Fatalf("Unwrap lost the cause")
	}
}

func TestHelpers(t *testing.T) {
	err := NotFound("no incident %q", "NOPE")
	var nf *NotFoundError
	if !errors.As(err, &nf) || !strings.Contains(err.Error(), "NOPE") {
		t.Fatalf("err = %v", err)
	}

	verr := Invalid("bad input")
	var ve *ValidationError
	if !errors.As(verr, &ve) {
		t.Fatalf("err = %v", verr)
	}

	wrapped := fmt.Errorf("outer: %w", err)
	if !errors.As(wrapped, &nf) {
		t.Fatalf("wrapped err lost its type")
	}
}
