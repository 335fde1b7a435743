package errs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToDetailKnownKind(t *testing.T) {
	err := New(KindThrottle, "session abc over window")
	d := ToDetail(err)
	assert.Equal(t, CategoryThrottle, d.Category)
	assert.Equal(t, string(KindThrottle), d.Code)
	assert.NotContains(t, d.Message, "abc")
}

func TestToDetailForeignError(t *testing.T) {
	d := ToDetail(assertError{})
	assert.Equal(t, CategoryUnknown, d.Category)
}

func TestWithField(t *testing.T) {
	err := WithField(New(KindValidation, "bad column"), "columns")
	d := ToDetail(err)
	assert.Equal(t, "columns", d.Field)
	assert.Equal(t, CategoryValidation, d.Category)
}

func TestKindOf(t *testing.T) {
	err := Wrap(KindConnection, assertError{}, "dial failed")
	assert.Equal(t, KindConnection, KindOf(err))
	assert.Equal(t, KindUnknown, KindOf(assertError{}))
}

type assertError struct{}

func (assertError) Error() string { return "boom" }
