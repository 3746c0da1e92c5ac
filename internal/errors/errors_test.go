// Package errors tests for error code definitions and error handling.
package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorCodeValues(t *testing.T) {
	codes := []ErrorCode{
		ErrInternal, ErrInvalid, ErrNotFound, ErrValidation,
		ErrDatabase, ErrMigration,
		ErrUnsupportedEnvironment, ErrSerialization, ErrNetworkFailure,
		ErrAssetCacheFailed, ErrSyncItemFailed, ErrUnknownEvent,
	}

	seen := make(map[ErrorCode]bool)
	for _, code := range codes {
		assert.NotEmpty(t, code)
		assert.False(t, seen[code], "duplicate code %s", code)
		seen[code] = true
	}
}

func TestAppError_Error(t *testing.T) {
	err := New(ErrNotFound, "plan missing")
	assert.Equal(t, "[NOT_FOUND] plan missing", err.Error())

	wrapped := Wrap(ErrNetworkFailure, "fetch failed", errors.New("connection refused"))
	assert.Equal(t, "[NETWORK_FAILURE] fetch failed: connection refused", wrapped.Error())
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(ErrDatabase, "write failed", cause)

	assert.True(t, errors.Is(err, cause))
}

func TestIs(t *testing.T) {
	err := Wrap(ErrAssetCacheFailed, "image", errors.New("boom"))

	assert.True(t, Is(err, ErrAssetCacheFailed))
	assert.False(t, Is(err, ErrNetworkFailure))
	assert.False(t, Is(errors.New("plain"), ErrInternal))
	assert.False(t, Is(nil, ErrInternal))
}

func TestIs_FindsWrappedAppError(t *testing.T) {
	inner := New(ErrUnsupportedEnvironment, "no storage")
	outer := fmt.Errorf("cache plan: %w", inner)

	assert.True(t, Is(outer, ErrUnsupportedEnvironment))

	nested := Wrap(ErrSyncItemFailed, "item 3", New(ErrNetworkFailure, "offline"))
	assert.True(t, Is(nested, ErrSyncItemFailed))
	assert.True(t, Is(nested, ErrNetworkFailure))
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, ErrSerialization, CodeOf(New(ErrSerialization, "bad json")))
	assert.Equal(t, ErrInternal, CodeOf(errors.New("plain")))
}
