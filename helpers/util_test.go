package helpers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetSplitPart(t *testing.T) {
	part, err := GetSplitPart("a:b:c", ":", 0)
	assert.NoError(t, err)
	assert.Equal(t, "a", part)

	part, err = GetSplitPart("a:b:c", ":", -1)
	assert.NoError(t, err)
	assert.Equal(t, "c", part)

	part, err = GetSplitPart("Municipality:17744", ":", -1)
	assert.NoError(t, err)
	assert.Equal(t, "17744", part)

	part, err = GetSplitPart("no-separator", ":", -1)
	assert.NoError(t, err)
	assert.Equal(t, "no-separator", part)

	_, err = GetSplitPart("a:b", ":", 5)
	assert.Error(t, err)

	_, err = GetSplitPart("a:b", ":", -3)
	assert.Error(t, err)
}
