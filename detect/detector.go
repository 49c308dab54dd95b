package detect

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Severity ranks how dangerous a finding is.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// severityRank orders severities for comparison. Unknown severities
// rank below low so they never cause a block on their own.
var severityRank = map[Severity]int{
	SeverityLow:      1,
	SeverityMedium:   2,
	SeverityHigh:     3,
	SeverityCritical: 4,
}

// Rank returns the numeric order of the severity, 0 if unknown.
func (s Severity) Rank() int {
	return severityRank[s]
}

// Blocking reports whether a finding of this severity denies a request.
func (s Severity) Blocking() bool {
	return s.Rank() >= severityRank[SeverityHigh]
}

// FindingType identifies the attack family a finding belongs to.
type FindingType string

const (
	TypeAdversarialInput FindingType = "adversarial_input"
	TypePromptInjection  FindingType = "prompt_injection"
	TypeDataExtraction   FindingType = "data_extraction"
	TypeModelAbuse       FindingType = "model_abuse"
	TypeCostAbuse        FindingType = "cost_abuse"
	TypeSQLInjection     FindingType = "sql_injection"
	TypeXSS              FindingType = "xss"
	TypePathTraversal    FindingType = "path_traversal"
)

// Finding is a single detection result. Confidence is 0-100.
type Finding struct {
	Type        FindingType `json:"type"`
	Severity    Severity    `json:"severity"`
	Confidence  int         `json:"confidence"`
	Pattern     string      `json:"pattern,omitempty"`
	Description string      `json:"description"`
	Mitigation  string      `json:"mitigation,omitempty"`
}

// Input carries the request surfaces a detector inspects. Empty fields
// are skipped. Text and Image are only populated for AI-bound requests.
type Input struct {
	URL   string
	Body  string
	Query string
	Text  string
	Image *ImageInput
}

// Detector classifies an input against known attack signatures.
type Detector interface {
	// Detect returns all findings for the input. An empty slice means
	// the input is clean. Detect never mutates shared state.
	Detect(ctx context.Context, in Input) []Finding

	// Mode returns the detection mode this detector implements.
	Mode() Mode
}

// Mode selects the detection strategy.
type Mode string

const (
	ModeOff   Mode = "off"
	ModeBasic Mode = "basic"
)

// DetectorFactory creates a Detector for a registered mode.
type DetectorFactory func() (Detector, error)

var (
	factoryMu sync.RWMutex
	factories = map[Mode]DetectorFactory{}
)

// RegisterDetector installs a factory for a mode. Later registrations
// for the same mode replace earlier ones.
func RegisterDetector(mode Mode, factory DetectorFactory) {
	factoryMu.Lock()
	defer factoryMu.Unlock()
	factories[mode] = factory
}

// NewDetector returns a detector for the given mode.
func NewDetector(mode Mode) (Detector, error) {
	if mode == ModeOff {
		return &NoopDetector{}, nil
	}
	factoryMu.RLock()
	factory, ok := factories[mode]
	factoryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no detector registered for mode %q", mode)
	}
	return factory()
}

// RegisteredModes lists all modes with a registered factory, sorted.
func RegisteredModes() []Mode {
	factoryMu.RLock()
	defer factoryMu.RUnlock()
	modes := make([]Mode, 0, len(factories)+1)
	modes = append(modes, ModeOff)
	for m := range factories {
		modes = append(modes, m)
	}
	sort.Slice(modes, func(i, j int) bool { return modes[i] < modes[j] })
	return modes
}

// NoopDetector reports every input as clean.
type NoopDetector struct{}

func (d *NoopDetector) Detect(ctx context.Context, in Input) []Finding { return nil }
func (d *NoopDetector) Mode() Mode                                     { return ModeOff }

// Highest returns the highest severity among the findings, or the empty
// string for no findings.
func Highest(findings []Finding) Severity {
	var top Severity
	for _, f := range findings {
		if f.Severity.Rank() > top.Rank() {
			top = f.Severity
		}
	}
	return top
}

// Blocking filters the findings down to those that deny a request.
func Blocking(findings []Finding) []Finding {
	var out []Finding
	for _, f := range findings {
		if f.Severity.Blocking() {
			out = append(out, f)
		}
	}
	return out
}

func init() {
	RegisterDetector(ModeBasic, func() (Detector, error) {
		return NewBasicDetector(), nil
	})
}
