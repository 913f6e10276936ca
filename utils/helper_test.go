package utils

import (
	"errors"
	"testing"
)

func TestUniqueSlice(t *testing.T) {
	got := UniqueSlice([]string{"a", "b", "a", "c", "b"})
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("UniqueSlice = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("UniqueSlice = %v, want %v", got, want)
		}
	}
}

func TestGetTypeName(t *testing.T) {
	type sampleUser struct{}
	if name := GetTypeName[sampleUser](); name != "sampleUser" {
		t.Fatalf("GetTypeName = %q, want sampleUser", name)
	}
}

func TestProcessValidationErrorsNonValidatorError(t *testing.T) {
	// gin binding can surface plain errors (malformed JSON), not only
	// validator.ValidationErrors.
	got := ProcessValidationErrors(errors.New("unexpected EOF"))
	if len(got) == 0 {
		t.Fatal("expected a non-empty error map")
	}
}

func TestErrorCode(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{NewValidationError("field", "bad"), ErrCodeValidation},
		{NewBlockedError("frozen"), ErrCodeBlocked},
		{NewConflictError("numbers exhausted"), ErrCodeConflict},
		{NewIntegrityError("broken link"), ErrCodeIntegrity},
		{ErrorRecordNotFound, ErrCodeNotFound},
		{errors.New("plain"), ErrCodeIntegrity},
	}
	for _, tc := range cases {
		if got := ErrorCode(tc.err); got != tc.want {
			t.Errorf("ErrorCode(%v) = %s, want %s", tc.err, got, tc.want)
		}
	}
}
