package compiler

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generate(t *testing.T, src string) string {
	t.Helper()
	tokens, err := Lex(src)
	require.NoError(t, err)
	prog, syntaxErrs := ParseProgram(tokens)
	require.Empty(t, syntaxErrs)
	require.Empty(t, Analyze(prog))
	structs := collectStructs(prog)
	return Generate(prog, structs)
}

func TestGenerate_FrameSizeFollowsTheStackFrameLaw(t *testing.T) {
	// F = 4*(params+locals) + 8: one param, two locals -> 4*3+8 = 20.
	asm := generate(t, "fun f(int p) int { int a, b; return p; } fun main() int { return f(1); }")
	assert.Contains(t, asm, "addi sp, sp, -20")
	assert.Contains(t, asm, "addi sp, sp, 20")
}

func TestGenerate_StructFieldsAreFourByteAligned(t *testing.T) {
	asm := generate(t, `struct Point { int x; int y; int z; }
fun main() int {
  struct Point p;
  p = new Point;
  p.z = 1;
  return 0;
}`)
	// z is the third field -> offset 8.
	assert.Contains(t, asm, "addi a0, a0, 8")
	// new Point allocates 3*4 = 12 bytes.
	assert.Contains(t, asm, "li a0, 12")
}

func TestGenerate_LabelsAreUniqueAcrossMultipleConditionals(t *testing.T) {
	asm := generate(t, `fun main() int {
  if (true) { } else { }
  if (true) { } else { }
  return 0;
}`)
	// One counter numbers every label: else0, endif1, else2, endif3.
	assert.Equal(t, 1, strings.Count(asm, "else0:"))
	assert.Equal(t, 1, strings.Count(asm, "else2:"))
	assert.Equal(t, 1, strings.Count(asm, "endif1:"))
	assert.Equal(t, 1, strings.Count(asm, "endif3:"))
}

func TestGenerate_ShortCircuitAndSkipsRightOperand(t *testing.T) {
	asm := generate(t, "fun main() int { bool b; b = false && true; return 0; }")
	assert.Contains(t, asm, "and_false0:")
	assert.Contains(t, asm, "and_end1:")
	assert.Contains(t, asm, "beqz a0, and_false0")
}

func TestGenerate_ShortCircuitOrSkipsRightOperand(t *testing.T) {
	asm := generate(t, "fun main() int { bool b; b = true || false; return 0; }")
	assert.Contains(t, asm, "or_true0:")
	assert.Contains(t, asm, "bnez a0, or_true0")
}

func TestGenerate_CallWithUpToEightArgsUsesOnlyRegisters(t *testing.T) {
	asm := generate(t, `fun sum8(int a, int b, int c, int d, int e, int f, int g, int h) int { return a; }
fun main() int { return sum8(1,2,3,4,5,6,7,8); }`)
	assert.Contains(t, asm, "lw a7,")
	assert.Contains(t, asm, "addi sp, sp, -32")
	assert.Contains(t, asm, "addi sp, sp, 32")
}

func TestGenerate_CallWithMoreThanEightArgsSpillsToStack(t *testing.T) {
	asm := generate(t, `fun sum9(int a, int b, int c, int d, int e, int f, int g, int h, int i) int { return a; }
fun main() int { return sum9(1,2,3,4,5,6,7,8,9); }`)
	// 9 args * 4 bytes = 36 bytes reserved before the call.
	assert.Contains(t, asm, "addi sp, sp, -36")
	assert.Contains(t, asm, "lw a7,")
}

func TestGenerate_MainEpilogExitsTheProcess(t *testing.T) {
	asm := generate(t, "fun main() int { return 0; }")
	assert.Contains(t, asm, "jal zero, exit")
}

func TestGenerate_NonMainEpilogReturns(t *testing.T) {
	asm := generate(t, "fun f() int { return 1; } fun main() int { return f(); }")
	lines := strings.Split(asm, "\n")
	found := false
	for i, l := range lines {
		if strings.TrimSpace(l) == "f_epilog:" {
			for _, follow := range lines[i+1 : i+5] {
				if strings.Contains(follow, "ret") {
					found = true
				}
			}
		}
	}
	assert.True(t, found, "expected a ret in f's epilog")
}
