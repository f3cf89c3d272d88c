package derrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestWireCodes_Frozen pins the 1001–1007 range. These numbers are part of
// the external compatibility surface and must never change.
func TestWireCodes_Frozen(t *testing.T) {
	frozen := map[Code]int{
		CodeCycleNotComplete:      1001,
		CodeInsufficientAllowance: 1002,
		CodeAlreadyJoined:         1003,
		CodeCircleNotFound:        1004,
		CodeUnauthorized:          1005,
		CodeInvalidFeeConfig:      1006,
		CodeCircleNotFinalized:    1007,
	}
	for code, want := range frozen {
		assert.Equal(t, want, WireCode(code), "wire code for %s", code)
	}
}

func TestWireCodes_Unique(t *testing.T) {
	seen := make(map[int]Code)
	for code, n := range wireCodes {
		prev, dup := seen[n]
		require.False(t, dup, "wire code %d assigned to both %s and %s", n, prev, code)
		seen[n] = code
	}
}

func TestHasCode(t *testing.T) {
	t.Run("direct domain error", func(t *testing.T) {
		err := New(CodeCircleNotFound, "no such circle")
		assert.True(t, HasCode(err, CodeCircleNotFound))
		assert.False(t, HasCode(err, CodeUnauthorized))
	})

	t.Run("wrapped through fmt", func(t *testing.T) {
		err := fmt.Errorf("handling request: %w", New(CodeUnauthorized, "caller is not admin"))
		assert.True(t, HasCode(err, CodeUnauthorized))
	})

	t.Run("plain error has no code", func(t *testing.T) {
		assert.False(t, HasCode(errors.New("boom"), CodeInternal))
		assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
	})
}

func TestWrap(t *testing.T) {
	base := errors.New("connection refused")
	err := Wrap(base, CodeInternal, "failed to load circle")
	require.Error(t, err)
	assert.True(t, errors.Is(err, base))
	assert.True(t, HasCode(err, CodeInternal))

	assert.Nil(t, Wrap(nil, CodeInternal, "ignored"))
}

func TestToHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, ToHTTPStatus(CodeCircleNotFound))
	assert.Equal(t, http.StatusUnauthorized, ToHTTPStatus(CodeUnauthorized))
	assert.Equal(t, http.StatusInternalServerError, ToHTTPStatus(Code("unknown")))
}
