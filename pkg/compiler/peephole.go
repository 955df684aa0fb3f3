package compiler

import "regexp"

// Peephole applies the three local rules of spec.md §4.3.7 in a single
// forward scan with a two-line lookahead, exactly as
// original_source/codegen_visitor.py's peephole_optimize does:
//
//  1. drop a no-op "mv X, X"
//  2. drop "j L" immediately followed by "L:"
//  3. drop a "lw" that reloads what the immediately preceding "sw" just
//     stored to the same register/address
//
// Rule 1 deletes the "mv" line, rule 2 the earlier line of its pair (the
// "j"), rule 3 the later one (the "lw"). Each rule compares a line only with
// the line after it in the input, so a pass does not recheck lines that a
// deletion has made adjacent: the pass is not idempotent in general. A
// second pass still drops, for example, a "lw" that followed its "sw" with
// only a no-op "mv" between them.
var (
	mvSameRe  = regexp.MustCompile(`^mv\s+(\w+),\s*(\w+)$`)
	jumpRe    = regexp.MustCompile(`^j\s+(\w+)$`)
	labelRe   = regexp.MustCompile(`^(\w+):$`)
	storeRe   = regexp.MustCompile(`^sw\s+(\w+),\s*(-?\d+\(\w+\))$`)
	loadRe    = regexp.MustCompile(`^lw\s+(\w+),\s*(-?\d+\(\w+\))$`)
)

func trimInstr(s string) string {
	start, end := 0, len(s)
	for start < end && (s[start] == ' ' || s[start] == '\t') {
		start++
	}
	for end > start && (s[end-1] == ' ' || s[end-1] == '\t') {
		end--
	}
	return s[start:end]
}

// Peephole returns a new instruction list with the three rules applied.
func Peephole(instructions []string) []string {
	var out []string
	i := 0
	for i < len(instructions) {
		curr := trimInstr(instructions[i])
		next := ""
		if i+1 < len(instructions) {
			next = trimInstr(instructions[i+1])
		}

		if m := mvSameRe.FindStringSubmatch(curr); m != nil && m[1] == m[2] {
			i++
			continue
		}

		if jm := jumpRe.FindStringSubmatch(curr); jm != nil {
			if lm := labelRe.FindStringSubmatch(next); lm != nil && jm[1] == lm[1] {
				i++
				continue
			}
		}

		if sm := storeRe.FindStringSubmatch(curr); sm != nil {
			if lm := loadRe.FindStringSubmatch(next); lm != nil && sm[1] == lm[1] && sm[2] == lm[2] {
				out = append(out, instructions[i])
				i += 2
				continue
			}
		}

		out = append(out, instructions[i])
		i++
	}
	return out
}
