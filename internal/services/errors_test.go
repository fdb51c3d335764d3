package services_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"contentflow/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalService, "vectorizer", "embed", "request failed", base)
	if !errors.Is(err, services.ErrExternalService) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"vectorizer", "embed", "request failed", "boom"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected placeholder detail, got %q", err.Error())
	}
}

func TestDetailsSurviveFurtherWrapping(t *testing.T) {
	inner := services.Wrap(services.ErrUnusableContent, "cluster", "clean", "content empty after cleaning", nil)
	outer := fmt.Errorf("item 7: %w", inner)

	details := services.Details(outer)
	if details.Kind != services.KindUnusableContent {
		t.Fatalf("unexpected kind: %s", details.Kind)
	}
	if details.Component != "cluster" || details.Operation != "clean" {
		t.Fatalf("unexpected context: %+v", details)
	}
	if details.Message != "content empty after cleaning" {
		t.Fatalf("unexpected message: %q", details.Message)
	}
}

func TestKindForPlainErrors(t *testing.T) {
	cases := []struct {
		err  error
		want services.ErrorKind
	}{
		{nil, services.KindUnknown},
		{errors.New("plain"), services.KindUnknown},
		{fmt.Errorf("x: %w", services.ErrTimeout), services.KindTimeout},
		{fmt.Errorf("x: %w", services.ErrValidation), services.KindValidation},
		{fmt.Errorf("x: %w", services.ErrNotFound), services.KindNotFound},
	}
	for _, tc := range cases {
		if got := services.Kind(tc.err); got != tc.want {
			t.Fatalf("Kind(%v) = %s, want %s", tc.err, got, tc.want)
		}
	}
}
