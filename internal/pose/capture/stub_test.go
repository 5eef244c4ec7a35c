//go:build !opencv

package capture

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/banshee-data/pose.report/internal/monitoring"
)

func TestOpenWithoutOpenCV(t *testing.T) {
	monitoring.SetLogger(nil)
	src, err := Open(Config{Source: "0"})
	assert.Nil(t, src)
	assert.ErrorIs(t, err, ErrUnavailable)
}
