package detect

import "regexp"

// PromptInjectionPatterns covers attempts to override model behavior
// through crafted text. Order is priority: an input matching several
// families yields only the first, most specific classification.
func PromptInjectionPatterns() *PatternSet {
	return NewPatternSet([]*Pattern{
		{
			Name:        "instruction_override",
			Type:        TypePromptInjection,
			Regex:       regexp.MustCompile(`(?i)\b(ignore|disregard|forget|override)\b.{0,30}\b(previous|prior|earlier|above|all)\b.{0,30}\b(instructions?|prompts?|rules?|directives?)\b`),
			Severity:    SeverityHigh,
			Confidence:  90,
			Description: "instruction override attempt",
			Mitigation:  "Reject the prompt",
		},
		{
			Name:        "role_escalation",
			Type:        TypePromptInjection,
			Regex:       regexp.MustCompile(`(?i)\b(act|behave|pretend|roleplay)\b.{0,30}\bas\b.{0,40}\b(admin|administrator|root|system|developer|sudo)\b`),
			Severity:    SeverityHigh,
			Confidence:  85,
			Description: "role escalation attempt",
			Mitigation:  "Reject the prompt",
		},
		{
			Name:        "jailbreak",
			Type:        TypePromptInjection,
			Regex:       regexp.MustCompile(`(?i)\b(developer\s+mode|jailbreak|jailbroken|\bDAN\b|do\s+anything\s+now|no\s+(restrictions|filters|limitations)\s+mode)\b`),
			Severity:    SeverityMedium,
			Confidence:  75,
			Description: "jailbreak phrasing",
			Mitigation:  "Reject the prompt",
		},
	})
}

// DataExtractionPatterns covers text soliciting material the model must
// not reveal: system prompts, training data, credentials, internal
// configuration.
func DataExtractionPatterns() *PatternSet {
	return NewPatternSet([]*Pattern{
		{
			Name:        "system_prompt_request",
			Type:        TypeDataExtraction,
			Regex:       regexp.MustCompile(`(?i)\b(reveal|show|print|repeat|output|display)\b.{0,40}\b(system\s+prompt|initial\s+(prompt|instructions)|hidden\s+(prompt|instructions))\b`),
			Severity:    SeverityHigh,
			Confidence:  85,
			Description: "system prompt disclosure request",
			Mitigation:  "Reject the prompt",
		},
		{
			Name:        "training_data_request",
			Type:        TypeDataExtraction,
			Regex:       regexp.MustCompile(`(?i)\b(dump|extract|reproduce|recite|leak)\b.{0,40}\b(training\s+data|dataset|memoriz)`),
			Severity:    SeverityHigh,
			Confidence:  80,
			Description: "training data extraction request",
			Mitigation:  "Reject the prompt",
		},
		{
			Name:        "secret_request",
			Type:        TypeDataExtraction,
			Regex:       regexp.MustCompile(`(?i)\b(api\s+keys?|credentials?|passwords?|secrets?|tokens?)\b.{0,40}\b(list|reveal|show|print|belonging|stored|configured)\b`),
			Severity:    SeverityHigh,
			Confidence:  80,
			Description: "credential disclosure request",
			Mitigation:  "Reject the prompt",
		},
		{
			Name:        "internal_config_request",
			Type:        TypeDataExtraction,
			Regex:       regexp.MustCompile(`(?i)\b(reveal|show|print|describe)\b.{0,40}\b(internal\s+(config|configuration|settings)|environment\s+variables?)\b`),
			Severity:    SeverityHigh,
			Confidence:  80,
			Description: "internal configuration disclosure request",
			Mitigation:  "Reject the prompt",
		},
	})
}
