package scraper

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTelemetry(t *testing.T) {
	tel := NewTelemetry()
	assert.Equal(t, 0, tel.ErrorCount())
	assert.Empty(t, tel.NullFields())

	tel.RecordError(errors.New("boom"))
	tel.RecordError(nil)
	assert.Equal(t, 1, tel.ErrorCount())

	tel.RecordNull("fee")
	tel.RecordNull("description")
	tel.RecordNull("fee")
	assert.Equal(t, []string{"description", "fee"}, tel.NullFields())
}
