package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashDeterministic(t *testing.T) {
	t.Parallel()

	h := New()
	a := h.Hash([]byte("<html>same</html>"))
	b := h.Hash([]byte("<html>same</html>"))
	require.Equal(t, a, b)
	require.Len(t, a, 64)
}

func TestHashDiffersForDifferentContent(t *testing.T) {
	t.Parallel()

	h := New()
	require.NotEqual(t, h.Hash([]byte("one")), h.Hash([]byte("two")))
}

func TestHashEmptyInput(t *testing.T) {
	t.Parallel()

	h := New()
	require.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", h.Hash(nil))
}
