package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPeephole_RemovesNoOpMove(t *testing.T) {
	in := []string{"    mv t0, t0", "    add a0, t0, t1"}
	out := Peephole(in)
	assert.Equal(t, []string{"    add a0, t0, t1"}, out)
}

func TestPeephole_KeepsMoveBetweenDifferentRegisters(t *testing.T) {
	in := []string{"    mv t0, t1"}
	out := Peephole(in)
	assert.Equal(t, in, out)
}

func TestPeephole_RemovesJumpToImmediatelyFollowingLabel(t *testing.T) {
	in := []string{"    j endif0", "endif0:", "    ret"}
	out := Peephole(in)
	assert.Equal(t, []string{"endif0:", "    ret"}, out)
}

func TestPeephole_KeepsJumpToDistantLabel(t *testing.T) {
	in := []string{"    j while_end0", "    li a0, 1", "while_end0:"}
	out := Peephole(in)
	assert.Equal(t, in, out)
}

func TestPeephole_RemovesRedundantReloadAfterStore(t *testing.T) {
	in := []string{"    sw a0, -12(fp)", "    lw a0, -12(fp)", "    ret"}
	out := Peephole(in)
	assert.Equal(t, []string{"    sw a0, -12(fp)", "    ret"}, out)
}

func TestPeephole_KeepsReloadOfDifferentRegister(t *testing.T) {
	in := []string{"    sw a0, -12(fp)", "    lw t0, -12(fp)"}
	out := Peephole(in)
	assert.Equal(t, in, out)
}

func TestPeephole_IsIdempotent(t *testing.T) {
	in := []string{
		"    mv t0, t0",
		"    j endif0",
		"endif0:",
		"    sw a0, -12(fp)",
		"    lw a0, -12(fp)",
		"    ret",
	}
	once := Peephole(in)
	twice := Peephole(once)
	assert.Equal(t, once, twice)
}
