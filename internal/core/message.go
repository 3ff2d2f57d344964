package core

import (
	"fmt"
	"strings"

	"detection-bot/internal/core/types"
)

const (
	NoObjectsMessage      = "No objects were detected in the photo."
	GenericFailureMessage = "Error processing the photo"
)

func FormatMessage(counts []types.ObjectCount) string {
	if len(counts) == 0 {
		return NoObjectsMessage
	}

	lines := make([]string, 0, len(counts))
	for _, c := range counts {
		lines = append(lines, fmt.Sprintf("Object: %s Count: %d", c.Class, c.Count))
	}

	return "Prediction results:\n" + strings.Join(lines, "\n")
}
