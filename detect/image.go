package detect

import (
	"fmt"
	"regexp"
)

// ImageInput describes an image attached to an AI request. Only the
// envelope is inspected here; pixel content is out of scope.
type ImageInput struct {
	MIMEType  string
	SizeBytes int64
	Metadata  map[string]string
}

// DefaultMaxImageBytes caps accepted image payloads at 10 MiB.
const DefaultMaxImageBytes = 10 << 20

// DefaultAllowedImageMIME lists the image formats accepted by default.
var DefaultAllowedImageMIME = []string{
	"image/jpeg",
	"image/png",
	"image/gif",
	"image/webp",
}

// executableMetadata matches script content smuggled into image metadata
// fields such as EXIF comments.
var executableMetadata = regexp.MustCompile(`(?i)<\s*script|javascript\s*:|vbscript\s*:|\bon(load|error)\s*=|<\?php|\beval\s*\(`)

// InspectImage validates an image envelope against size and format
// limits and scans metadata for executable content. Every violation is
// critical: a rejected image must never reach a model.
func InspectImage(img ImageInput, maxBytes int64, allowedMIME []string) []Finding {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxImageBytes
	}
	if len(allowedMIME) == 0 {
		allowedMIME = DefaultAllowedImageMIME
	}

	var findings []Finding

	if img.SizeBytes > maxBytes {
		findings = append(findings, Finding{
			Type:        TypeAdversarialInput,
			Severity:    SeverityCritical,
			Confidence:  100,
			Pattern:     "oversized_image",
			Description: fmt.Sprintf("image payload %d bytes exceeds limit %d", img.SizeBytes, maxBytes),
			Mitigation:  "Reject the image",
		})
	}

	if !mimeAllowed(img.MIMEType, allowedMIME) {
		findings = append(findings, Finding{
			Type:        TypeAdversarialInput,
			Severity:    SeverityCritical,
			Confidence:  100,
			Pattern:     "disallowed_image_mime",
			Description: fmt.Sprintf("image MIME type %q is not accepted", img.MIMEType),
			Mitigation:  "Reject the image",
		})
	}

	for key, value := range img.Metadata {
		if executableMetadata.MatchString(value) {
			findings = append(findings, Finding{
				Type:        TypeAdversarialInput,
				Severity:    SeverityCritical,
				Confidence:  95,
				Pattern:     "executable_image_metadata",
				Description: fmt.Sprintf("executable content in image metadata field %q", key),
				Mitigation:  "Strip metadata and reject the image",
			})
			break
		}
	}

	return findings
}

func mimeAllowed(mime string, allowed []string) bool {
	for _, a := range allowed {
		if mime == a {
			return true
		}
	}
	return false
}
