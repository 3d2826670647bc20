// Package label builds deliverable file names from run provenance. Names
// combine the subject codes the analysis belongs to with an optional custom
// token, so a directory of results from many runs stays navigable.
package label

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/cerebralab/siena-gear/core/metadata"
	"github.com/cerebralab/siena-gear/internal/logging"
	"github.com/cerebralab/siena-gear/internal/validation"
)

var timeNow = time.Now

// Generate builds a file name from the given tokens. Subject codes are
// deduplicated keeping first-seen order, custom is appended when non-empty,
// and a Unix timestamp is appended when requested or when no other token
// exists (a name must never come out empty). Tokens join with underscores
// and pass through the shared rune filter, then extension is appended with
// any leading dot normalized away.
func Generate(subjectCodes []string, custom string, includeTimestamp bool, extension string) string {
	tokens := make([]string, 0, len(subjectCodes)+2)
	seen := make(map[string]bool, len(subjectCodes))
	for _, code := range subjectCodes {
		if code == "" || seen[code] {
			continue
		}
		seen[code] = true
		tokens = append(tokens, code)
	}
	if custom != "" {
		tokens = append(tokens, custom)
	}
	if includeTimestamp || len(tokens) == 0 {
		tokens = append(tokens, strconv.FormatInt(timeNow().Unix(), 10))
	}

	name := validation.SanitizeLabel(strings.Join(tokens, "_"))
	if extension == "" {
		return name
	}
	return name + "." + strings.TrimPrefix(extension, ".")
}

// ResolveSubjects looks up the subject codes the analysis container belongs
// to. Labeling is cosmetic, so every failure degrades to nil with a warning
// rather than touching the run's outcome.
func ResolveSubjects(ctx context.Context, backend metadata.Backend, containerID string) []string {
	if backend == nil || containerID == "" {
		return nil
	}
	code, err := backend.ResolveSubjectCode(ctx, containerID)
	if err != nil {
		logging.Warn("could not resolve subject for labeling", "container_id", containerID, "error", err.Error())
		return nil
	}
	if code == "" {
		return nil
	}
	return []string{code}
}
