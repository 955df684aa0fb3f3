package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileSource_SyntaxErrorShortCircuitsBeforeAnalysis(t *testing.T) {
	result, err := CompileSource("fun main() int { return }")
	require.NoError(t, err)
	assert.Greater(t, result.ErrorCount, 0)
	assert.Equal(t, "Syntax errors.", result.Diagnostics[0])
	assert.Empty(t, result.Assembly)
}

func TestCompileSource_SemanticErrorsPreventCodegen(t *testing.T) {
	result, err := CompileSource("fun main() int { return true; }")
	require.NoError(t, err)
	assert.Equal(t, 1, result.ErrorCount)
	assert.Contains(t, result.Diagnostics, "ERRORS FOUND 1")
	assert.Empty(t, result.Assembly)
}

func TestCompileSource_CleanProgramProducesAssembly(t *testing.T) {
	result, err := CompileSource("fun main() int { return 0; }")
	require.NoError(t, err)
	assert.Equal(t, 0, result.ErrorCount)
	assert.Contains(t, result.Diagnostics, "Parse successful.")
	assert.Contains(t, result.Diagnostics, "ERRORS FOUND 0")
	assert.Contains(t, result.Assembly, ".globl main")
}

func TestOutputPath_RewritesMiniExtension(t *testing.T) {
	assert.Equal(t, "/tmp/prog.s", outputPath("/tmp/prog.mini"))
	assert.Equal(t, "/tmp/prog.s", outputPath("/tmp/prog"))
}
