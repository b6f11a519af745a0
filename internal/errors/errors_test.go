package errors

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrap_NilPassesThrough(t *testing.T) {
	assert.NoError(t, Wrap(nil, "context"))
	assert.NoError(t, Wrapf(nil, "context %d", 1))
}

func TestWrap_PreservesSentinel(t *testing.T) {
	err := Wrap(ErrAuthentication, "bootstrap")
	assert.True(t, Is(err, ErrAuthentication))
	assert.Equal(t, "bootstrap: authentication failed", err.Error())

	err = Wrapf(ErrRouting, "pattern %s", "rapid_fire")
	assert.True(t, Is(err, ErrRouting))
	assert.Equal(t, "pattern rapid_fire: ui server routing failed", err.Error())
}

func TestMark(t *testing.T) {
	cause := stderrors.New("status 401")
	err := Mark(ErrAuthentication, cause)

	assert.True(t, Is(err, ErrAuthentication))
	assert.True(t, Is(err, cause))
	assert.Equal(t, "authentication failed: status 401", err.Error())

	assert.Equal(t, ErrRouting, Mark(ErrRouting, nil))
}
