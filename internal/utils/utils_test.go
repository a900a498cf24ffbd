package utils_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/blood-bank-console/internal/utils"
)

func TestToStringSlice(t *testing.T) {
	got := utils.ToStringSlice([]any{"a", 1, "b", nil, true})
	require.Equal(t, []string{"a", "b"}, got)
	require.Empty(t, utils.ToStringSlice(nil))
}

func TestPointerHelpers(t *testing.T) {
	p := utils.Ptr("x")
	require.Equal(t, "x", utils.Value(p))

	var nilInt *int
	require.Equal(t, 0, utils.Value(nilInt))
}
