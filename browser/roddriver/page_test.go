package roddriver

import (
	"testing"

	"github.com/go-rod/rod/lib/input"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupKey(t *testing.T) {
	for key, expect := range map[string]input.Key{
		"Enter": input.Enter,
		"Shift": input.ShiftLeft,
		" ":     input.Space,
		"a":     input.Key('a'),
	} {
		k, err := lookupKey(key)
		require.NoError(t, err, key)
		assert.Equal(t, expect, k, key)
	}

	_, err := lookupKey("NotAKey")
	assert.EqualError(t, err, `Unsupported key: "NotAKey"`)
}
