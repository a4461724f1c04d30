package errors

import (
	"errors"
	"fmt"
	"testing"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestCodeKindsMapToGRPC(t *testing.T) {
	tests := []struct {
		code Code
		kind Kind
		grpc codes.Code
	}{
		{CodeMemberNotFound, KindNotFound, codes.NotFound},
		{CodeVoteAlreadyCast, KindAlreadyExists, codes.AlreadyExists},
		{CodeCapabilityRequired, KindUnauthorized, codes.PermissionDenied},
		{CodeProposalNotActive, KindInvalidState, codes.FailedPrecondition},
		{CodeStakeAmountInvalid, KindInvalidAmount, codes.InvalidArgument},
		{CodeMemberLimitReached, KindLimitExceeded, codes.ResourceExhausted},
		{CodeReputationOutOfRange, KindOutOfRange, codes.OutOfRange},
		{CodeInsufficientRewards, KindInvalidAmount, codes.InvalidArgument},
		{Code("SOMETHING_ELSE"), KindInternal, codes.Internal},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			if got := tt.code.Kind(); got != tt.kind {
				t.Fatalf("Kind() = %q, want %q", got, tt.kind)
			}
			if got := tt.code.GRPCCode(); got != tt.grpc {
				t.Fatalf("GRPCCode() = %v, want %v", got, tt.grpc)
			}
		})
	}
}

func TestErrorIsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", New(CodeMemberNotFound, "member missing"))
	if !errors.Is(err, New(CodeMemberNotFound, "")) {
		t.Fatal("expected errors.Is to match by code")
	}
	if errors.Is(err, New(CodeProposalNotFound, "")) {
		t.Fatal("expected different codes not to match")
	}
	if got := CodeOf(err); got != CodeMemberNotFound {
		t.Fatalf("CodeOf = %q", got)
	}
	if got := KindOf(errors.New("plain")); got != KindInternal {
		t.Fatalf("KindOf(plain) = %q", got)
	}
}

func TestWrapUnwraps(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(CodeUnknown, "append failed", cause)
	if !errors.Is(err, cause) {
		t.Fatal("expected cause in chain")
	}
}

func TestToGRPCStatusAttachesDetails(t *testing.T) {
	domainErr := WithMetadata(CodeReputationOutOfRange, "score above max", map[string]string{"Max": "10000"})
	st, ok := status.FromError(domainErr.ToGRPCStatus("en-US"))
	if !ok {
		t.Fatal("expected grpc status")
	}
	if st.Code() != codes.OutOfRange {
		t.Fatalf("code = %v, want OutOfRange", st.Code())
	}
	var info *errdetails.ErrorInfo
	var localized *errdetails.LocalizedMessage
	for _, detail := range st.Details() {
		switch d := detail.(type) {
		case *errdetails.ErrorInfo:
			info = d
		case *errdetails.LocalizedMessage:
			localized = d
		}
	}
	if info == nil || info.Reason != string(CodeReputationOutOfRange) || info.Domain != Domain {
		t.Fatalf("error info = %+v", info)
	}
	if localized == nil || localized.Message != "Reputation must stay between 0 and 10000." {
		t.Fatalf("localized = %+v", localized)
	}
}
