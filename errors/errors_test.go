package errors

import (
	"encoding/json"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrOrNil(t *testing.T) {
	var errs Errors
	assert.NoError(t, errs.ErrOrNil())

	first := errors.New("first")
	assert.True(t, errs.Add(nil))
	assert.False(t, errs.Add(first))
	assert.Equal(t, first, errs.ErrOrNil(), "A single error should be returned as-is")

	errs.Addf("second %d", 2)
	assert.Equal(t, errs, errs.ErrOrNil())
	assert.EqualError(t, errs, "first; second 2")
}

func TestAddFlattens(t *testing.T) {
	var inner Errors
	inner.Addf("a")
	inner.Addf("b")

	var outer Errors
	outer.Add(inner)
	outer.Addf("c")
	assert.Equal(t, []string{"a", "b", "c"}, outer.Strings())
}

func TestMarshalJSON(t *testing.T) {
	errs := Errors{errors.New("some error")}
	b, err := json.Marshal(errs)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"Description": "some error"}]`, string(b))
}
