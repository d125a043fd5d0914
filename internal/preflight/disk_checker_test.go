package preflight

import (
	"math"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestCheckFreeSpace_SmallRequirementPasses(t *testing.T) {
	dc := NewDiskChecker(0, zerolog.Nop())
	assert.NoError(t, dc.CheckFreeSpace(t.TempDir(), 1024))
}

func TestCheckFreeSpace_AbsurdRequirementFails(t *testing.T) {
	dc := NewDiskChecker(0, zerolog.Nop())
	assert.Error(t, dc.CheckFreeSpace(t.TempDir(), math.MaxInt64/2))
}

func TestCheckFreeSpace_UnknownPathIsNotFatal(t *testing.T) {
	dc := NewDiskChecker(100, zerolog.Nop())
	assert.NoError(t, dc.CheckFreeSpace("/definitely/not/a/mountpoint", 1024))
}
