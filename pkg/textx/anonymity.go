package textx

import (
	"fmt"
	"regexp"
	"strings"
)

var leakPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i:\b(?:authors?|by))\s+[A-Z][a-z]+\s+[A-Z][a-z]+`),
	regexp.MustCompile(`\b[A-Z][a-z]+\s+(?i:et\s+al\.)`),
	regexp.MustCompile(`(?i:\b(?:professor|prof\.|dr\.|doctor))\s+[A-Z][a-z]+`),
}

var affiliationKeywords = []string{
	"university", "institution", "department", "laboratory", "lab",
	"affiliation", "organization", "company", "corporation",
}

var affiliationLeaks = func() []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(affiliationKeywords))
	for i, k := range affiliationKeywords {
		out[i] = regexp.MustCompile(`(?i:\b` + k + `\s+of)\s+[A-Z][a-z]+`)
	}
	return out
}()

var commonWords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "from": true, "this": true, "that": true,
}

// AnonymityReport is the result of a double-blind check.
type AnonymityReport struct {
	Valid    bool
	Issues   []string
	Redacted string
}

// CheckAnonymity looks for author or affiliation leaks in generated text. When
// any are found, Redacted holds a scrubbed copy; otherwise it equals s.
func CheckAnonymity(s string, authorNames []string) AnonymityReport {
	var issues []string
	for _, re := range leakPatterns {
		if m := re.FindString(s); m != "" {
			issues = append(issues, fmt.Sprintf("possible author reference: %s", m))
		}
	}

	lower := strings.ToLower(s)
	leaked := append([]string(nil), authorNames...)
	for _, name := range authorNames {
		for _, part := range strings.Fields(strings.ToLower(name)) {
			if len(part) > 3 && !commonWords[part] && strings.Contains(lower, part) {
				issues = append(issues, fmt.Sprintf("possible author name: %s", part))
				leaked = append(leaked, part)
			}
		}
	}

	for i, re := range affiliationLeaks {
		if re.MatchString(s) {
			issues = append(issues, fmt.Sprintf("possible affiliation: %s", affiliationKeywords[i]))
		}
	}

	rep := AnonymityReport{Valid: len(issues) == 0, Issues: issues, Redacted: s}
	if !rep.Valid {
		red := RedactPII(s, RedactOptions{AuthorNames: leaked, Emails: true, Phones: true})
		text := red.Text
		for _, re := range leakPatterns {
			text = re.ReplaceAllString(text, "[REDACTED]")
		}
		for _, re := range affiliationLeaks {
			text = re.ReplaceAllString(text, "[AFFILIATION]")
		}
		rep.Redacted = text
	}
	return rep
}
