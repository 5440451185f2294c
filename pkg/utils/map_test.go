package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetString(t *testing.T) {
	out := map[string]any{"errorMessage": "NotFound: user 7", "errorType": 3}
	assert.Equal(t, "NotFound: user 7", GetString(out, "errorMessage", ""))
	assert.Equal(t, "Error", GetString(out, "errorType", "Error"))
	assert.Equal(t, "d", GetString(out, "missing", "d"))
	assert.Equal(t, "d", GetString(nil, "x", "d"))
}
