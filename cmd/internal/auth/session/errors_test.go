package session

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCodeAndPublicMessage(t *testing.T) {
	cases := []struct {
		err  error
		code string
		msg  string
	}{
		{nil, "ok", ""},
		{invalidInput("op", "email", "email is required"), "invalid_input", "email is required"},
		{&Error{Op: "op", Kind: ErrAccountExists}, "account_exists", "an account with this email already exists"},
		{ErrInvalidCredentials, "invalid_credentials", "invalid email or password"},
		{ErrUnauthenticated, "unauthenticated", "not authenticated"},
		{&Error{Op: "op", Kind: ErrStoreUnavailable, Err: context.DeadlineExceeded}, "store_unavailable", "service temporarily unavailable"},
		{&Error{Op: "op", Kind: ErrInternal, Err: errors.New("secret detail")}, "internal_error", "internal error"},
		{errors.New("unclassified"), "internal_error", "internal error"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.code, Code(tc.err), "err=%v", tc.err)
		if tc.err != nil {
			require.Equal(t, tc.msg, PublicMessage(tc.err), "err=%v", tc.err)
		}
	}
}

func TestErrorUnwrapsKindAndCause(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := fmt.Errorf("outer: %w", &Error{Op: "session.Signin", Kind: ErrStoreUnavailable, Err: cause})

	require.ErrorIs(t, err, ErrStoreUnavailable)
	require.ErrorIs(t, err, cause)
	require.Equal(t, ErrStoreUnavailable, KindOf(err))
	require.Contains(t, err.Error(), "session.Signin")
}

func TestInvalidInputWithoutMessage(t *testing.T) {
	err := &Error{Op: "op", Kind: ErrInvalidInput}
	require.Equal(t, "invalid input", PublicMessage(err))
}
