package optiply

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optisync/optiply-target/pkg/errors"
)

func TestClassifyStatus(t *testing.T) {
	assert.NoError(t, classifyStatus(200, nil))
	assert.NoError(t, classifyStatus(201, nil))

	err := classifyStatus(404, nil)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
	assert.False(t, errors.IsRetryable(err))

	err = classifyStatus(422, []byte(`{"errors":[{"detail":"bad attribute"}]}`))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeRejected))
	assert.False(t, errors.IsRetryable(err))
	assert.Contains(t, err.Error(), "bad attribute")

	err = classifyStatus(500, []byte("upstream exploded"))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConnection))
	assert.True(t, errors.IsRetryable(err))

	err = classifyStatus(503, nil)
	require.Error(t, err)
	assert.True(t, errors.IsRetryable(err))
}

func TestTruncateBody(t *testing.T) {
	long := make([]byte, maxErrorBodyLen+100)
	for i := range long {
		long[i] = 'x'
	}
	got := truncateBody(long)
	assert.Len(t, got, maxErrorBodyLen+3)
	assert.Contains(t, got, "...")
}
