package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	require.Equal(t, KindNotFound, KindOf(ErrNotFound("gone")))
	require.Equal(t, KindUnknown, KindOf(errors.New("plain")))
	require.Equal(t, KindUnknown, KindOf(nil))
}

func TestKindOfUnwrapsChains(t *testing.T) {
	inner := ErrConflict("duplicate")
	wrapped := fmt.Errorf("saving record: %w", inner)
	require.Equal(t, KindConflict, KindOf(wrapped))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Wrap(KindDependency, "gateway unreachable", cause)
	require.Equal(t, KindDependency, KindOf(err))
	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), "gateway unreachable")
}
