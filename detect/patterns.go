package detect

import "regexp"

// Pattern is one compiled attack signature.
type Pattern struct {
	Name        string
	Type        FindingType
	Regex       *regexp.Regexp
	Severity    Severity
	Confidence  int
	Description string
	Mitigation  string
}

// Finding converts a matched pattern into a Finding.
func (p *Pattern) Finding() Finding {
	return Finding{
		Type:        p.Type,
		Severity:    p.Severity,
		Confidence:  p.Confidence,
		Pattern:     p.Name,
		Description: p.Description,
		Mitigation:  p.Mitigation,
	}
}

// PatternSet is an ordered list of patterns. Order is priority: Match
// returns the first pattern whose regex matches.
type PatternSet struct {
	patterns []*Pattern
}

// NewPatternSet builds a set preserving the given priority order.
func NewPatternSet(patterns []*Pattern) *PatternSet {
	return &PatternSet{patterns: patterns}
}

// Match returns the first matching pattern, or nil.
func (ps *PatternSet) Match(input string) *Pattern {
	for _, p := range ps.patterns {
		if p.Regex.MatchString(input) {
			return p
		}
	}
	return nil
}

// MatchAll returns every matching pattern in priority order.
func (ps *PatternSet) MatchAll(input string) []*Pattern {
	var out []*Pattern
	for _, p := range ps.patterns {
		if p.Regex.MatchString(input) {
			out = append(out, p)
		}
	}
	return out
}

// Len returns the number of patterns in the set.
func (ps *PatternSet) Len() int {
	return len(ps.patterns)
}

// SQLInjectionPatterns covers the common injection shapes seen in URLs,
// bodies, and query strings. Structural checks only, no payload decoding.
func SQLInjectionPatterns() *PatternSet {
	return NewPatternSet([]*Pattern{
		{
			Name:        "union_select",
			Type:        TypeSQLInjection,
			Regex:       regexp.MustCompile(`(?i)\bunion\b[\s/*]+(all[\s/*]+)?\bselect\b`),
			Severity:    SeverityHigh,
			Confidence:  95,
			Description: "UNION SELECT statement in input",
			Mitigation:  "Use parameterized queries",
		},
		{
			Name:        "stacked_statement",
			Type:        TypeSQLInjection,
			Regex:       regexp.MustCompile(`(?i);\s*(drop|delete|insert|update|create|alter|truncate|exec)\b`),
			Severity:    SeverityCritical,
			Confidence:  95,
			Description: "stacked SQL statement after terminator",
			Mitigation:  "Use parameterized queries",
		},
		{
			Name:        "boolean_tautology",
			Type:        TypeSQLInjection,
			Regex:       regexp.MustCompile(`(?i)\b(or|and)\b\s+['"]?(\d+)['"]?\s*=\s*['"]?(\d+)['"]?`),
			Severity:    SeverityHigh,
			Confidence:  85,
			Description: "boolean tautology expression",
			Mitigation:  "Use parameterized queries",
		},
		{
			Name:        "comment_terminator",
			Type:        TypeSQLInjection,
			Regex:       regexp.MustCompile(`(?i)['"]\s*(--|#|/\*)`),
			Severity:    SeverityHigh,
			Confidence:  80,
			Description: "quote followed by SQL comment sequence",
			Mitigation:  "Use parameterized queries",
		},
		{
			Name:        "time_based_probe",
			Type:        TypeSQLInjection,
			Regex:       regexp.MustCompile(`(?i)\b(sleep|benchmark|waitfor\s+delay|pg_sleep)\s*\(`),
			Severity:    SeverityHigh,
			Confidence:  90,
			Description: "time-based blind injection probe",
			Mitigation:  "Use parameterized queries",
		},
		{
			Name:        "keyword_adjacency",
			Type:        TypeSQLInjection,
			Regex:       regexp.MustCompile(`(?i)\b(select|insert|update|delete)\b.{0,40}\b(from|into|set|where)\b`),
			Severity:    SeverityMedium,
			Confidence:  60,
			Description: "adjacent SQL keywords in input",
			Mitigation:  "Use parameterized queries",
		},
	})
}

// XSSPatterns covers reflected and stored cross-site scripting vectors.
func XSSPatterns() *PatternSet {
	return NewPatternSet([]*Pattern{
		{
			Name:        "script_tag",
			Type:        TypeXSS,
			Regex:       regexp.MustCompile(`(?i)<\s*script[\s>]`),
			Severity:    SeverityHigh,
			Confidence:  95,
			Description: "script tag in input",
			Mitigation:  "HTML-encode output",
		},
		{
			Name:        "javascript_scheme",
			Type:        TypeXSS,
			Regex:       regexp.MustCompile(`(?i)javascript\s*:`),
			Severity:    SeverityHigh,
			Confidence:  90,
			Description: "javascript: URI scheme in input",
			Mitigation:  "Validate URI schemes against an allowlist",
		},
		{
			Name:        "event_handler",
			Type:        TypeXSS,
			Regex:       regexp.MustCompile(`(?i)\bon(load|error|click|mouseover|focus|submit)\s*=`),
			Severity:    SeverityHigh,
			Confidence:  85,
			Description: "inline event handler attribute in input",
			Mitigation:  "HTML-encode output",
		},
		{
			Name:        "embed_tag",
			Type:        TypeXSS,
			Regex:       regexp.MustCompile(`(?i)<\s*(iframe|object|embed)[\s>]`),
			Severity:    SeverityMedium,
			Confidence:  75,
			Description: "embeddable content tag in input",
			Mitigation:  "Strip embeddable tags from user content",
		},
	})
}

// PathTraversalPatterns covers raw and percent-encoded directory
// traversal in request URLs.
func PathTraversalPatterns() *PatternSet {
	return NewPatternSet([]*Pattern{
		{
			Name:        "dot_dot_slash",
			Type:        TypePathTraversal,
			Regex:       regexp.MustCompile(`\.\./|\.\.\\`),
			Severity:    SeverityHigh,
			Confidence:  90,
			Description: "directory traversal sequence in URL",
			Mitigation:  "Canonicalize paths before use",
		},
		{
			Name:        "encoded_traversal",
			Type:        TypePathTraversal,
			Regex:       regexp.MustCompile(`(?i)(%2e%2e(%2f|%5c|/|\\))|(\.\.(%2f|%5c))`),
			Severity:    SeverityHigh,
			Confidence:  90,
			Description: "percent-encoded directory traversal sequence in URL",
			Mitigation:  "Decode and canonicalize paths before use",
		},
	})
}
