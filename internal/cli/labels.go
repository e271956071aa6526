package cli

import (
	"fmt"
	"strings"

	"varman/internal/metadata"
)

// parseLabelFlag parses the label flag syntax "lang:text" or
// "lang:purpose:text", e.g. "en:Age" or "fi:long:Ikä vuosina".
func parseLabelFlag(s string) (metadata.Label, error) {
	parts := strings.SplitN(s, ":", 3)
	switch len(parts) {
	case 2:
		return metadata.Label{LanguageCode: parts[0], Text: parts[1]}, nil
	case 3:
		purpose, err := metadata.ParsePurpose(parts[1])
		if err != nil {
			return metadata.Label{}, fmt.Errorf("invalid label %q: %w", s, err)
		}
		return metadata.Label{LanguageCode: parts[0], Purpose: purpose, Text: parts[2]}, nil
	default:
		return metadata.Label{}, fmt.Errorf("invalid label %q: expected lang:text or lang:purpose:text", s)
	}
}

// formatLabel renders a label for plain-text display.
func formatLabel(l metadata.Label) string {
	if l.Purpose != metadata.PurposeNone {
		return fmt.Sprintf("%s (%s): %s", l.LanguageCode, l.Purpose, l.Text)
	}
	return fmt.Sprintf("%s: %s", l.LanguageCode, l.Text)
}
