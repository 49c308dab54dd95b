package detect

import "context"

// maxScanLength bounds the input size fed to the regex engine. Longer
// inputs are truncated; the size itself is enforced by the gatekeeper.
const maxScanLength = 1 << 20

// BasicDetector is the regex-based detector. It is stateless and safe
// for concurrent use.
type BasicDetector struct {
	sqli       *PatternSet
	xss        *PatternSet
	traversal  *PatternSet
	prompt     *PatternSet
	extraction *PatternSet

	maxImageBytes int64
	allowedMIME   []string
}

// BasicOption customizes a BasicDetector.
type BasicOption func(*BasicDetector)

// WithMaxImageBytes overrides the image payload size limit.
func WithMaxImageBytes(n int64) BasicOption {
	return func(d *BasicDetector) { d.maxImageBytes = n }
}

// WithAllowedImageMIME overrides the accepted image MIME types.
func WithAllowedImageMIME(types []string) BasicOption {
	return func(d *BasicDetector) { d.allowedMIME = types }
}

// NewBasicDetector builds a detector with the default pattern sets.
func NewBasicDetector(opts ...BasicOption) *BasicDetector {
	d := &BasicDetector{
		sqli:          SQLInjectionPatterns(),
		xss:           XSSPatterns(),
		traversal:     PathTraversalPatterns(),
		prompt:        PromptInjectionPatterns(),
		extraction:    DataExtractionPatterns(),
		maxImageBytes: DefaultMaxImageBytes,
		allowedMIME:   DefaultAllowedImageMIME,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *BasicDetector) Mode() Mode { return ModeBasic }

// Detect runs every applicable pattern family over the input. Each
// family reports at most one finding per request, keyed by its highest
// priority match across all inspected surfaces.
func (d *BasicDetector) Detect(ctx context.Context, in Input) []Finding {
	var findings []Finding
	seen := map[string]bool{}

	report := func(p *Pattern) {
		if p == nil || seen[p.Name] {
			return
		}
		seen[p.Name] = true
		findings = append(findings, p.Finding())
	}

	if in.URL != "" {
		url := truncate(in.URL)
		report(d.traversal.Match(url))
		report(d.sqli.Match(url))
	}
	for _, surface := range []string{in.Body, in.Query} {
		if surface == "" {
			continue
		}
		surface = truncate(surface)
		report(d.sqli.Match(surface))
		report(d.xss.Match(surface))
	}
	if in.Text != "" {
		// The text surface yields at most one finding. Injection
		// phrasing outranks extraction phrasing when both appear.
		text := truncate(in.Text)
		if p := d.prompt.Match(text); p != nil {
			report(p)
		} else {
			report(d.extraction.Match(text))
		}
	}
	if in.Image != nil {
		findings = append(findings, InspectImage(*in.Image, d.maxImageBytes, d.allowedMIME)...)
	}

	return findings
}

func truncate(s string) string {
	if len(s) > maxScanLength {
		return s[:maxScanLength]
	}
	return s
}
