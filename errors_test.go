package trawl_test

import (
	"fmt"
	"testing"

	"github.com/fwojciec/trawl"
	"github.com/stretchr/testify/assert"
)

func TestErrorf(t *testing.T) {
	t.Parallel()

	err := trawl.Errorf(trawl.ENOTFOUND, "url %q not found", "https://example.com/")

	assert.Equal(t, trawl.ENOTFOUND, trawl.ErrorCode(err))
	assert.Equal(t, "url \"https://example.com/\" not found", trawl.ErrorMessage(err))
}

func TestErrorCode_NilError(t *testing.T) {
	t.Parallel()

	assert.Empty(t, trawl.ErrorCode(nil))
}

func TestErrorCode_WrappedError(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("fetch: %w", trawl.Errorf(trawl.ERATELIMIT, "domain busy"))

	assert.Equal(t, trawl.ERATELIMIT, trawl.ErrorCode(err))
}

func TestErrorCode_NonApplicationError(t *testing.T) {
	t.Parallel()

	assert.Equal(t, trawl.EINTERNAL, trawl.ErrorCode(fmt.Errorf("disk full")))
}

func TestErrorMessage_NilError(t *testing.T) {
	t.Parallel()

	assert.Empty(t, trawl.ErrorMessage(nil))
}
