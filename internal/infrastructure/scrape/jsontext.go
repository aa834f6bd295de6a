package scrape

import (
	"encoding/json"
	"strings"

	"github.com/titanous/json5"
)

// maxObjectAttempts bounds how many opening braces FirstJSONObject will try
const maxObjectAttempts = 64

// FirstJSONObject finds the first balanced {...} region in text that decodes as an
// object. Strict JSON is tried first, then JSON5 for script payloads with
// unquoted keys or trailing commas.
func FirstJSONObject(text string) (Node, bool) {
	attempts := 0
	for start := strings.IndexByte(text, '{'); start >= 0 && attempts < maxObjectAttempts; {
		attempts++
		end := balancedEnd(text, start)
		if end > start {
			if n, ok := DecodeObject(text[start : end+1]); ok {
				return n, true
			}
		}
		next := strings.IndexByte(text[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return nil, false
}

// DecodeObject decodes raw as a JSON object, falling back to JSON5
func DecodeObject(raw string) (Node, bool) {
	var n Node
	if err := json.Unmarshal([]byte(raw), &n); err == nil && n != nil {
		return n, true
	}
	n = nil
	if err := json5.Unmarshal([]byte(raw), &n); err == nil && n != nil {
		return n, true
	}
	return nil, false
}

// Decode decodes raw as any JSON value
func Decode(raw []byte) (any, bool) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, false
	}
	return v, true
}

// balancedEnd returns the index of the brace closing the one at start, or -1.
// Braces inside string literals are ignored.
func balancedEnd(text string, start int) int {
	depth := 0
	inString := false
	var quote byte
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch c {
			case '\\':
				i++
			case quote:
				inString = false
			}
			continue
		}
		switch c {
		case '"', '\'':
			inString = true
			quote = c
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
