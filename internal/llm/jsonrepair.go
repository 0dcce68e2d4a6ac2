package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseError is a structured JSON extraction failure. Snippet carries the
// first 500 characters of the offending input for diagnostics.
type ParseError struct {
	Reason  string
	Snippet string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("json repair: %s (input: %q)", e.Reason, e.Snippet)
}

func newParseError(reason, input string) *ParseError {
	snippet := input
	if len(snippet) > 500 {
		snippet = snippet[:500]
	}
	return &ParseError{Reason: reason, Snippet: snippet}
}

// RepairJSON extracts and tolerantly parses a JSON value from free-form
// model output. Repair never guesses missing fields; it only fixes
// mechanical damage (fences, trailing commas, unbalanced brackets,
// single-quoted keys, stray escapes).
func RepairJSON(text string) (any, error) {
	candidate := extractCandidate(text)
	if candidate == "" {
		return nil, newParseError("no JSON object or array found", text)
	}

	var v any
	if err := json.Unmarshal([]byte(candidate), &v); err == nil {
		return v, nil
	}

	fixed := applyFixes(candidate)
	var repaired any
	if err := json.Unmarshal([]byte(fixed), &repaired); err != nil {
		return nil, newParseError(err.Error(), text)
	}
	return repaired, nil
}

// RepairInto parses like RepairJSON but decodes into a typed destination.
func RepairInto(text string, dst any) error {
	candidate := extractCandidate(text)
	if candidate == "" {
		return newParseError("no JSON object or array found", text)
	}
	if err := json.Unmarshal([]byte(candidate), dst); err == nil {
		return nil
	}
	fixed := applyFixes(candidate)
	if err := json.Unmarshal([]byte(fixed), dst); err != nil {
		return newParseError(err.Error(), text)
	}
	return nil
}

// extractCandidate strips code fences and slices out the first balanced
// JSON object or array by bracket counting, tolerating brackets inside
// string literals.
func extractCandidate(text string) string {
	text = stripFences(text)

	start := -1
	for i, ch := range text {
		if ch == '{' || ch == '[' {
			start = i
			break
		}
	}
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		ch := text[i]
		if escaped {
			escaped = false
			continue
		}
		switch {
		case ch == '\\' && inString:
			escaped = true
		case ch == '"':
			inString = !inString
		case inString:
		case ch == '{' || ch == '[':
			depth++
		case ch == '}' || ch == ']':
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	// Unterminated: return the tail and let applyFixes close brackets.
	return text[start:]
}

// stripFences removes markdown code fences and their language tags.
func stripFences(text string) string {
	if !strings.Contains(text, "```") {
		return text
	}
	var b strings.Builder
	rest := text
	for {
		open := strings.Index(rest, "```")
		if open < 0 {
			b.WriteString(rest)
			break
		}
		// Text before the fence stays, in case the JSON is unfenced.
		b.WriteString(rest[:open])
		rest = rest[open+3:]
		// Drop a language tag like "json" up to the first newline.
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 && nl <= 16 {
			tag := strings.TrimSpace(rest[:nl])
			if tag == "" || isLanguageTag(tag) {
				rest = rest[nl+1:]
			}
		}
	}
	return b.String()
}

func isLanguageTag(s string) bool {
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return false
		}
	}
	return len(s) <= 16
}

// applyFixes runs the targeted repair passes in order.
func applyFixes(s string) string {
	s = normalizeQuotes(s)
	s = collapseStrayBackslashes(s)
	s = removeTrailingCommas(s)
	s = closeUnbalanced(s)
	return s
}

// removeTrailingCommas deletes commas directly before a closing bracket,
// outside string contents.
func removeTrailingCommas(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if escaped {
			b.WriteByte(ch)
			escaped = false
			continue
		}
		if ch == '\\' && inString {
			b.WriteByte(ch)
			escaped = true
			continue
		}
		if ch == '"' {
			inString = !inString
			b.WriteByte(ch)
			continue
		}
		if !inString && ch == ',' {
			j := i + 1
			for j < len(s) && (s[j] == ' ' || s[j] == '\n' || s[j] == '\t' || s[j] == '\r') {
				j++
			}
			if j < len(s) && (s[j] == '}' || s[j] == ']') {
				continue // drop the comma
			}
		}
		b.WriteByte(ch)
	}
	return b.String()
}

// closeUnbalanced appends the closing brackets a truncated response lost.
func closeUnbalanced(s string) string {
	var stack []byte
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch {
		case ch == '\\' && inString:
			escaped = true
		case ch == '"':
			inString = !inString
		case inString:
		case ch == '{':
			stack = append(stack, '}')
		case ch == '[':
			stack = append(stack, ']')
		case ch == '}' || ch == ']':
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}
	if inString {
		s += `"`
	}
	for i := len(stack) - 1; i >= 0; i-- {
		s += string(stack[i])
	}
	return s
}

// normalizeQuotes converts single-quoted keys and values to double quotes
// when the text contains no double-quoted strings at all (a common model
// failure mode). Mixed input is left alone: rewriting quotes inside valid
// string contents corrupts them.
func normalizeQuotes(s string) string {
	if strings.Contains(s, `"`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if escaped {
			b.WriteByte(ch)
			escaped = false
			continue
		}
		if ch == '\\' && inString {
			b.WriteByte(ch)
			escaped = true
			continue
		}
		if ch == '\'' {
			b.WriteByte('"')
			inString = !inString
			continue
		}
		b.WriteByte(ch)
	}
	return b.String()
}

// collapseStrayBackslashes drops backslashes that escape nothing JSON
// recognizes, e.g. \_ or \* emitted by models trained on markdown.
func collapseStrayBackslashes(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if ch == '\\' && i+1 < len(s) {
			next := s[i+1]
			switch next {
			case '"', '\\', '/', 'b', 'f', 'n', 'r', 't', 'u':
				b.WriteByte(ch)
			default:
				continue // drop the stray backslash, keep next
			}
		} else {
			b.WriteByte(ch)
		}
	}
	return b.String()
}
