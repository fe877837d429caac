package services_test

import (
	"errors"
	"testing"

	"github.com/scrolland/cuestionario-videos/internal/services"
)

func TestWrapPreservesMarker(t *testing.T) {
	base := errors.New("socket closed")
	err := services.Wrap(services.ErrRemoteSubmission, "generation", "submit", "high tier", base)
	if !errors.Is(err, services.ErrRemoteSubmission) {
		t.Fatalf("marker lost: %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("cause lost: %v", err)
	}
	want := "remote submission error: generation: submit: high tier: socket closed"
	if err.Error() != want {
		t.Fatalf("message = %q, want %q", err.Error(), want)
	}
}

func TestWrapNilMarkerDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "", "", "poll hiccup", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
}

func TestIsClientError(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{services.Wrap(services.ErrValidation, "server", "save-response", "missing slider", nil), true},
		{services.Wrap(services.ErrImageTooLarge, "imageprep", "normalize", "", nil), true},
		{services.Wrap(services.ErrRemoteJobFailed, "generation", "poll", "low tier", nil), false},
		{errors.New("plain"), false},
	}
	for _, tc := range cases {
		if got := services.IsClientError(tc.err); got != tc.want {
			t.Fatalf("IsClientError(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}
