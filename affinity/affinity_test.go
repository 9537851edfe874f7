package affinity_test

import (
	"testing"

	"github.com/momentics/sockethub/affinity"
	"github.com/stretchr/testify/assert"
)

func TestPinCurrentGoroutineWithoutCPU(t *testing.T) {
	release, err := affinity.PinCurrentGoroutine(-1)
	assert.NoError(t, err)
	release()
}
