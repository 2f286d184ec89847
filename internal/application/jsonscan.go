package application

import "encoding/json"

const (
	// maxScanBytes and maxCandidates bound the scan to linear work in the
	// reply length.
	maxScanBytes  = 32 << 10
	maxCandidates = 16
)

// ExtractJSONObject returns the first balanced {...} substring of text that
// is valid JSON. Braces inside JSON strings are ignored while scanning.
// Candidates that balance but fail to parse are skipped and the scan moves
// on to the next opening brace. Only the first maxScanBytes of text and the
// first maxCandidates opening braces are considered.
func ExtractJSONObject(text string) (string, bool) {
	if len(text) > maxScanBytes {
		text = text[:maxScanBytes]
	}

	tried := 0
	for start := 0; start < len(text) && tried < maxCandidates; start++ {
		if text[start] != '{' {
			continue
		}
		tried++
		end, ok := matchBrace(text, start)
		if !ok {
			continue
		}
		candidate := text[start : end+1]
		if json.Valid([]byte(candidate)) {
			return candidate, true
		}
	}
	return "", false
}

// matchBrace returns the index of the brace closing the one at start.
func matchBrace(text string, start int) (int, bool) {
	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(text); i++ {
		c := text[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}
