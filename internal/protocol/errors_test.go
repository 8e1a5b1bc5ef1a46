package protocol

import "testing"

func TestIsKnownCode(t *testing.T) {
	cases := []string{
		"",
		ErrProtoBadRequest,
		ErrBadRequest,
		ErrNoPermission,
		ErrNoResource,
		ErrInvalidTarget,
		ErrRateLimit,
		ErrConflict,
		ErrBlocked,
		ErrStale,
		ErrInternal,
	}
	for _, c := range cases {
		if !IsKnownCode(c) {
			t.Fatalf("expected known code: %q", c)
		}
	}
	if IsKnownCode("E_NOT_DEFINED") {
		t.Fatalf("expected unknown code rejected")
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(ErrBlocked) {
		t.Fatalf("expected E_BLOCKED retryable")
	}
	if IsRetryable(ErrNoResource) {
		t.Fatalf("expected E_NO_RESOURCE not retryable")
	}
}

func TestIsSupportedVersion(t *testing.T) {
	for _, v := range []string{"", "1.0", "0.9"} {
		if !IsSupportedVersion(v) {
			t.Fatalf("expected %q supported", v)
		}
	}
	if IsSupportedVersion("0.1") {
		t.Fatalf("expected 0.1 unsupported")
	}
}
