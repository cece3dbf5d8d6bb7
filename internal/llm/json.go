package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrNoJSON is returned when a response holds no JSON value.
var ErrNoJSON = errors.New("no JSON found in response")

var fencePattern = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*\\n?(.*?)```")

// ExtractJSON pulls the first JSON object or array out of free text. A
// fenced block wins over bare text.
func ExtractJSON(text string) (string, error) {
	if m := fencePattern.FindStringSubmatch(text); m != nil {
		if v, ok := balanced(strings.TrimSpace(m[1])); ok {
			return v, nil
		}
	}
	if v, ok := balanced(text); ok {
		return v, nil
	}
	return "", ErrNoJSON
}

// DecodeJSON extracts and unmarshals the JSON value in text into v.
func DecodeJSON(text string, v any) error {
	raw, err := ExtractJSON(text)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("failed to decode response JSON: %w", err)
	}
	return nil
}

// balanced returns the first bracket-balanced {...} or [...] span,
// ignoring brackets inside string literals.
func balanced(text string) (string, bool) {
	start := strings.IndexAny(text, "{[")
	for start >= 0 {
		if end, ok := matchClose(text, start); ok {
			return text[start : end+1], true
		}
		next := strings.IndexAny(text[start+1:], "{[")
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", false
}

func matchClose(text string, start int) (int, bool) {
	stack := make([]byte, 0, 8)
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
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) == 0 || stack[len(stack)-1] != c {
				return 0, false
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return i, true
			}
		}
	}
	return 0, false
}
