package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	t.Parallel()

	s := String()
	assert.Contains(t, s, "orchestra dev")
	assert.Contains(t, s, "commit unknown")
	assert.True(t, IsDevBuild())
}
