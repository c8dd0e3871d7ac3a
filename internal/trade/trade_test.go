package trade

import (
	"testing"

	"github.com/fd1az/venue-gateway/internal/apperror"
)

func TestNewErrorMapsApperrorCodeToWireCode(t *testing.T) {
	err := NewError(apperror.CodeNotLogin, "not logged in")
	if err.Code == 0 {
		t.Fatal("expected a non-zero wire error code")
	}
	if err.Msg != "not logged in" {
		t.Fatalf("msg = %q, want %q", err.Msg, "not logged in")
	}
}

func TestNewErrorIsStableForSameCode(t *testing.T) {
	a := NewError(apperror.CodeDisconnected, "down")
	b := NewError(apperror.CodeDisconnected, "down again")
	if a.Code != b.Code {
		t.Fatalf("codes differ for the same apperror.Code: %d != %d", a.Code, b.Code)
	}
}
