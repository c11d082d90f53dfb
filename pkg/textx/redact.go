package textx

import (
	"regexp"
	"sort"
	"strings"
)

// Redaction item types.
const (
	PIIEmail       = "email"
	PIIPhone       = "phone"
	PIIURL         = "url"
	PIIAuthor      = "author"
	PIIAffiliation = "affiliation"
	PIIORCID       = "orcid"
)

var (
	emailPattern       = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	phonePattern       = regexp.MustCompile(`(?:\+\d{1,3}[-.\s]?)?\(?\d{2,4}\)?[-.\s]\d{3,4}[-.\s]\d{3,4}\b`)
	urlPattern         = regexp.MustCompile(`https?://[^\s<>"{}|\\^` + "`" + `\[\]]+`)
	authorPattern      = regexp.MustCompile(`(?i:\b(?:corresponding\s+author|first\s+author|senior\s+author|authors?))\s*[:\-]?\s*[A-Z][a-z]+(?:\s+[A-Z][a-z]+)*`)
	affiliationPattern = regexp.MustCompile(`(?i:\b(?:affiliation|institution|university|department|school|college))\s*[:\-]\s*[A-Z][^.\n]+`)
	orcidPattern       = regexp.MustCompile(`(?i)\b(?:orcid|orcid\.org)[:\s/]?\s*[0-9]{4}-[0-9]{4}-[0-9]{4}-[0-9]{3}[0-9X]`)
)

// RedactOptions selects what RedactPII removes. Author, affiliation and ORCID
// markers are always removed.
type RedactOptions struct {
	AuthorNames []string
	Emails      bool
	URLs        bool
	Phones      bool
}

// DefaultRedactOptions removes every PII class.
func DefaultRedactOptions() RedactOptions {
	return RedactOptions{Emails: true, URLs: true, Phones: true}
}

// RedactedItem records one replacement.
type RedactedItem struct {
	Type     string
	Original string
}

// Redaction is the outcome of RedactPII.
type Redaction struct {
	Text   string
	Items  []RedactedItem
	HasPII bool
}

// RedactPII replaces personal identifiers in s with bracketed placeholders.
func RedactPII(s string, opts RedactOptions) Redaction {
	out := Redaction{Text: s}
	replace := func(re *regexp.Regexp, kind, placeholder string) {
		out.Text = re.ReplaceAllStringFunc(out.Text, func(m string) string {
			out.Items = append(out.Items, RedactedItem{Type: kind, Original: m})
			return placeholder
		})
	}

	// longest names first so "Jane Doe" wins over "Jane"
	names := make([]string, 0, len(opts.AuthorNames))
	for _, n := range opts.AuthorNames {
		if n = strings.TrimSpace(n); n != "" {
			names = append(names, n)
		}
	}
	sort.SliceStable(names, func(i, j int) bool { return len(names[i]) > len(names[j]) })
	for _, n := range names {
		replace(regexp.MustCompile(`(?i)\b`+regexp.QuoteMeta(n)+`\b`), PIIAuthor, "[AUTHOR]")
	}

	replace(orcidPattern, PIIORCID, "[ORCID]")
	replace(authorPattern, PIIAuthor, "[AUTHOR]")
	replace(affiliationPattern, PIIAffiliation, "[AFFILIATION]")
	if opts.Emails {
		replace(emailPattern, PIIEmail, "[EMAIL]")
	}
	if opts.URLs {
		replace(urlPattern, PIIURL, "[URL]")
	}
	if opts.Phones {
		replace(phonePattern, PIIPhone, "[PHONE]")
	}
	out.HasPII = len(out.Items) > 0
	return out
}

// PIIPresence reports which classes of identifiers appear in s.
func PIIPresence(s string) map[string]bool {
	return map[string]bool{
		PIIEmail:       emailPattern.MatchString(s),
		PIIPhone:       phonePattern.MatchString(s),
		PIIURL:         urlPattern.MatchString(s),
		PIIAuthor:      authorPattern.MatchString(s),
		PIIAffiliation: affiliationPattern.MatchString(s),
		PIIORCID:       orcidPattern.MatchString(s),
	}
}
