// Package llmjson decodes JSON emitted by chat models, which is frequently
// wrapped in markdown fences or surrounded by prose.
package llmjson

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

// Status tags the outcome of a decode.
type Status int

const (
	// Parsed means Value holds the decoded payload.
	Parsed Status = iota
	// ParseFailed means no usable JSON could be recovered; Value is the zero value.
	ParseFailed
)

func (s Status) String() string {
	if s == Parsed {
		return "parsed"
	}
	return "parse_failed"
}

// Result is the tagged outcome of Decode. Callers pick their fallback on ParseFailed.
type Result[T any] struct {
	Status Status
	Value  T
	Raw    string
	Err    error
}

// OK reports whether the payload was parsed.
func (r Result[T]) OK() bool { return r.Status == Parsed }

// Or returns Value when parsed, otherwise fallback.
func (r Result[T]) Or(fallback T) T {
	if r.OK() {
		return r.Value
	}
	return fallback
}

var (
	errNoJSON      = errors.New("no json value found")
	trailingCommas = regexp.MustCompile(`,(\s*[}\]])`)
)

// Decode extracts the first JSON object or array from raw and unmarshals it into T.
func Decode[T any](raw string) Result[T] {
	res := Result[T]{Raw: raw, Status: ParseFailed}
	cleaned := Clean(raw)
	if cleaned == "" {
		res.Err = errNoJSON
		return res
	}
	var v T
	err := json.Unmarshal([]byte(cleaned), &v)
	if err != nil {
		// second chance: trailing commas are the most common model slip
		fixed := trailingCommas.ReplaceAllString(cleaned, "$1")
		if fixed == cleaned {
			res.Err = err
			return res
		}
		var retry T
		if err2 := json.Unmarshal([]byte(fixed), &retry); err2 != nil {
			res.Err = err
			return res
		}
		v = retry
	}
	res.Status = Parsed
	res.Value = v
	return res
}

// Clean strips markdown fences and returns the first balanced JSON object or
// array in s, or "" when none exists.
func Clean(s string) string {
	s = removeMarkdownBlocks(s)
	return extractJSON(s)
}

func removeMarkdownBlocks(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		if i := strings.Index(s, "```"); i >= 0 {
			s = s[i:]
		} else {
			return s
		}
	}
	s = strings.TrimPrefix(s, "```")
	// drop the language tag line (```json)
	if nl := strings.IndexByte(s, '\n'); nl >= 0 && !strings.ContainsAny(s[:nl], "{[") {
		s = s[nl+1:]
	}
	if end := strings.LastIndex(s, "```"); end >= 0 {
		s = s[:end]
	}
	return strings.TrimSpace(s)
}

func extractJSON(s string) string {
	start := strings.IndexAny(s, "{[")
	if start == -1 {
		return ""
	}
	open := s[start]
	closer := byte('}')
	if open == '[' {
		closer = ']'
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
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
		case open:
			depth++
		case closer:
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
