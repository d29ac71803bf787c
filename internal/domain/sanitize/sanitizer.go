// Package sanitize rewrites model-supplied snippets so they run against the
// sandbox's pre-bound capability environment. The execution environment has
// already bound every permitted name, so import-style statements are stripped
// before execution; everything else passes through untouched.
package sanitize

import (
	"regexp"
	"strings"
)

// Result is the outcome of a sanitization pass. Sanitization never fails:
// a snippet with no import statements comes back unchanged.
type Result struct {
	// Cleaned is the snippet with import-style statements removed.
	Cleaned string
	// Removed lists the removed statements, in source order, for audit.
	Removed []string
}

var (
	importRe = regexp.MustCompile(`^\s*import\s+[A-Za-z_][\w.]*(\s+as\s+[A-Za-z_]\w*)?(\s*,\s*[A-Za-z_][\w.]*(\s+as\s+[A-Za-z_]\w*)?)*\s*(#.*)?\\?\s*$`)
	fromRe   = regexp.MustCompile(`^\s*from\s+\.*[\w.]*\s+import\s+`)
	loadRe   = regexp.MustCompile(`^\s*load\s*\(`)
)

// Sanitize scans the snippet line by line, tracking string-literal and
// bracket state, and removes statements whose sole effect is to bind an
// external module name: "import x", "from x import y" (including
// parenthesized and backslash continuations), and load(...) declarations.
//
// The scan is structure-aware: an "import" inside a string literal, a
// triple-quoted block, or a comment is never touched. Sanitize is idempotent.
func Sanitize(code string) Result {
	lines := strings.Split(code, "\n")
	kept := make([]string, 0, len(lines))
	var removed []string

	st := scanState{}
	for idx := 0; idx < len(lines); idx++ {
		line := lines[idx]

		// Lines inside an open triple-quoted string or an open bracket are
		// never statement starts; emit and keep scanning.
		if st.inString() || st.depth > 0 {
			st = scanLine(line, st)
			kept = append(kept, line)
			continue
		}

		if isImportStart(line) {
			stmt := []string{line}
			lineSt := scanLine(line, st)

			// A from-import or load may continue across lines via an open
			// bracket or a trailing backslash.
			for (lineSt.depth > 0 || lineSt.continued) && idx+1 < len(lines) {
				idx++
				stmt = append(stmt, lines[idx])
				lineSt = scanLine(lines[idx], lineSt)
			}

			removed = append(removed, strings.TrimSpace(strings.Join(stmt, "\n")))
			// State after a removed statement is back at statement level.
			st = scanState{inTriple: lineSt.inTriple, tripleQuote: lineSt.tripleQuote}
			continue
		}

		st = scanLine(line, st)
		kept = append(kept, line)
	}

	return Result{
		Cleaned: strings.Join(kept, "\n"),
		Removed: removed,
	}
}

// isImportStart reports whether a statement-level line begins an import-style
// statement.
func isImportStart(line string) bool {
	return importRe.MatchString(line) || fromRe.MatchString(line) || loadRe.MatchString(line)
}

// scanState tracks lexical position across lines: open triple-quoted string,
// open bracket depth, and backslash continuation.
type scanState struct {
	inTriple    bool
	tripleQuote byte // '"' or '\''
	depth       int
	continued   bool
}

func (s scanState) inString() bool { return s.inTriple }

// scanLine advances the lexical state across one line. It recognizes single
// and triple quoted strings, escapes, comments, and bracket nesting; brackets
// and quotes inside strings or comments do not affect state.
func scanLine(line string, st scanState) scanState {
	st.continued = false
	inSingle := false // inside a one-line string literal
	var singleQuote byte

	i := 0
	for i < len(line) {
		c := line[i]

		switch {
		case st.inTriple:
			if c == '\\' {
				i += 2
				continue
			}
			if c == st.tripleQuote && strings.HasPrefix(line[i:], strings.Repeat(string(st.tripleQuote), 3)) {
				st.inTriple = false
				i += 3
				continue
			}
			i++

		case inSingle:
			if c == '\\' {
				i += 2
				continue
			}
			if c == singleQuote {
				inSingle = false
			}
			i++

		case c == '#':
			// Comment runs to end of line.
			return st

		case c == '"' || c == '\'':
			if strings.HasPrefix(line[i:], strings.Repeat(string(c), 3)) {
				st.inTriple = true
				st.tripleQuote = c
				i += 3
			} else {
				inSingle = true
				singleQuote = c
				i++
			}

		case c == '(' || c == '[' || c == '{':
			st.depth++
			i++

		case c == ')' || c == ']' || c == '}':
			if st.depth > 0 {
				st.depth--
			}
			i++

		case c == '\\' && i == len(line)-1:
			st.continued = true
			i++

		default:
			i++
		}
	}

	// An unterminated one-line string leaves the state unchanged at line end;
	// the snippet is malformed and the sandbox will report the real error.
	return st
}
