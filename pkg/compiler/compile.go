package compiler

import (
	"fmt"
	"os"
	"strings"
)

// Result is everything a single compilation produces: the error count
// (syntax errors if parsing failed, otherwise semantic errors), the
// generated assembly (empty when ErrorCount is non-zero), and the
// diagnostic lines in the order the driver prints them: either
// "Syntax errors." followed by the parser's messages, or "Parse
// successful.", the semantic errors, and the trailing "ERRORS FOUND N"
// line.
type Result struct {
	ErrorCount int
	Assembly   string
	Diagnostics []string
}

// CompileSource runs the full lex -> parse -> analyze -> generate
// pipeline over src, mirroring original_source/mini_compiler.py's control
// flow: a syntax error short-circuits before semantic analysis ever runs,
// and codegen only runs once the analyzer reports zero errors.
func CompileSource(src string) (Result, error) {
	tokens, err := Lex(src)
	if err != nil {
		return Result{}, fmt.Errorf("lex: %w", err)
	}

	prog, syntaxErrors := ParseProgram(tokens)
	if len(syntaxErrors) > 0 {
		return Result{
			ErrorCount:  len(syntaxErrors),
			Diagnostics: append([]string{"Syntax errors."}, syntaxErrors...),
		}, nil
	}

	diagnostics := []string{"Parse successful."}

	semanticErrors := Analyze(prog)
	diagnostics = append(diagnostics, semanticErrors...)
	diagnostics = append(diagnostics, fmt.Sprintf("ERRORS FOUND %d", len(semanticErrors)))

	if len(semanticErrors) > 0 {
		return Result{ErrorCount: len(semanticErrors), Diagnostics: diagnostics}, nil
	}

	structs := collectStructs(prog)
	assembly := Generate(prog, structs)

	return Result{Assembly: assembly, Diagnostics: diagnostics}, nil
}

// collectStructs replays the analyzer's struct-registration passes so
// Generate gets a populated StructRegistry without re-running the full
// semantic pass (codegen intentionally keeps its own copy; see spec.md
// §4.3.1).
func collectStructs(prog *Program) *StructRegistry {
	reg := NewStructRegistry()
	for _, td := range prog.Types {
		reg.Declare(td.Name, td.Line)
	}
	for _, td := range prog.Types {
		reg.Layout(td.Name, td.Fields)
	}
	return reg
}

// CompileFile reads path, compiles it, and - if codegen succeeded -
// writes the assembly to path with its extension rewritten to ".s". It
// returns the Result so callers can print diagnostics and inspect the
// error count themselves.
func CompileFile(path string) (Result, error) {
	return CompileFileTo(path, "")
}

// CompileFileTo is CompileFile with an explicit output path. An empty
// outPath falls back to path with its extension rewritten to ".s", so a
// manifest entry that omits its output override still gets the usual
// sibling ".s" file.
func CompileFileTo(path, outPath string) (Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("reading %s: %w", path, err)
	}

	result, err := CompileSource(string(data))
	if err != nil {
		return Result{}, err
	}

	for _, line := range result.Diagnostics {
		fmt.Println(line)
	}

	if result.ErrorCount > 0 {
		return result, nil
	}

	if outPath == "" {
		outPath = outputPath(path)
	}
	if err := os.WriteFile(outPath, []byte(result.Assembly), 0o644); err != nil {
		return result, fmt.Errorf("writing %s: %w", outPath, err)
	}
	fmt.Printf("Assembly code generated in %s\n", outPath)

	return result, nil
}

// outputPath rewrites a .mini source path to its .s assembly path,
// following original_source/mini_compiler.py's args.input_file.replace.
func outputPath(path string) string {
	if strings.HasSuffix(path, ".mini") {
		return strings.TrimSuffix(path, ".mini") + ".s"
	}
	return path + ".s"
}
