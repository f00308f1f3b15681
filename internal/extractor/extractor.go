// Package extractor recovers the JSON payload the classification program
// prints somewhere in its stdout, among unrelated diagnostic lines.
//
// This is a line heuristic, not a JSON tokenizer. A nested object whose
// closing brace starts a line ends the capture early, and a stream carrying
// more than one object is not disambiguated; both are left as-is.
package extractor

import (
	"bufio"
	"strings"
)

const emptyObject = "{}"

// ExtractJSON returns the JSON-bearing text found in stdout, or "{}" when
// stdout contains no '{' at all. It has no state and is deterministic.
func ExtractJSON(stdout string) string {
	if block, ok := scanLines(stdout); ok {
		return trimToBraces(block)
	}
	start := strings.Index(stdout, "{")
	if start < 0 {
		return emptyObject
	}
	end := strings.LastIndex(stdout, "}")
	if end < start {
		return stdout[start:]
	}
	return stdout[start : end+1]
}

// scanLines captures from the first line starting with '{' up to and
// including the first later line starting with '}', or to end of input.
func scanLines(stdout string) (string, bool) {
	sc := bufio.NewScanner(strings.NewReader(stdout))
	sc.Buffer(make([]byte, 0, 64*1024), len(stdout)+1)

	var b strings.Builder
	capturing := false
	for sc.Scan() {
		line := sc.Text()
		trimmed := strings.TrimSpace(line)
		if !capturing {
			if !strings.HasPrefix(trimmed, "{") {
				continue
			}
			capturing = true
			b.WriteString(line)
			b.WriteByte('\n')
			continue
		}
		b.WriteString(line)
		b.WriteByte('\n')
		if strings.HasPrefix(trimmed, "}") {
			break
		}
	}
	if !capturing {
		return "", false
	}
	return b.String(), true
}

// trimToBraces narrows a captured block to its outermost braces so text
// trailing a single-line payload does not break parsing.
func trimToBraces(block string) string {
	start := strings.Index(block, "{")
	end := strings.LastIndex(block, "}")
	if start < 0 || end < start {
		return strings.TrimSpace(block)
	}
	return block[start : end+1]
}
