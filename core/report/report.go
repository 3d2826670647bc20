// Package report parses the analysis tools' plain-text reports into
// normalized metadata records.
//
// Classification is purely textual: a line either starts with a known
// vocabulary token or ends with a decimal number, depending on the format.
// Values are preserved as raw strings throughout; the metadata backend
// stores them as-is and no numeric interpretation happens here. Malformed
// lines are excluded from the result, never an error.
package report

import (
	"regexp"
	"strings"

	gearerrors "github.com/cerebralab/siena-gear/core/errors"
)

// Kind identifies one of the recognized report formats.
type Kind string

const (
	// KindUnknown is any basename no parser claims.
	KindUnknown Kind = ""
	// KindSiena is the longitudinal two-scan report.
	KindSiena Kind = "siena"
	// KindSienax is the cross-sectional single-scan report.
	KindSienax Kind = "sienax"
	// KindViena is the ventricular extension report.
	KindViena Kind = "viena"
)

// Record is one normalized report. Values are raw strings, nested tissue
// records, or string slices, depending on the format.
type Record map[string]any

// Empty reports whether parsing matched nothing. An existing but empty
// report is not written to the backend.
func (r Record) Empty() bool { return len(r) == 0 }

// KindFor maps a report file basename to its kind. ok is false for
// basenames no parser recognizes; callers treat that as recoverable.
func KindFor(basename string) (Kind, bool) {
	switch basename {
	case "report.siena":
		return KindSiena, true
	case "report.sienax":
		return KindSienax, true
	case "report.viena":
		return KindViena, true
	}
	return KindUnknown, false
}

// Parse converts report lines into a Record. An unknown kind returns
// ErrUnrecognizedReport, which callers handle as a warning, not a failure.
// Content never fails: lines that do not match the format are dropped.
func Parse(kind Kind, lines []string) (Record, error) {
	switch kind {
	case KindSiena:
		return parseSiena(lines), nil
	case KindSienax:
		return parseSienax(lines), nil
	case KindViena:
		return parseViena(lines), nil
	}
	return nil, gearerrors.ErrUnrecognizedReport
}

// sienaVocabulary are the line prefixes the longitudinal report contributes.
var sienaVocabulary = []string{"AREA", "VOLC", "RATIO", "PBVC", "finalPBVC"}

// parseSiena handles the longitudinal report. The tool prints each measure
// once per direction (A-to-B and B-to-A), so repeated keys are
// disambiguated: the first occurrence gets suffix 1 and the occurrence
// after that gets suffix 2. finalPBVC appears once and keeps its name.
func parseSiena(lines []string) Record {
	rec := make(Record)
	for _, line := range lines {
		if !hasVocabularyPrefix(line) {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		key, value := fields[0], fields[1]
		switch {
		case rec[key+"1"] != nil:
			key += "2"
		case key == "finalPBVC":
		default:
			key += "1"
		}
		rec[key] = value
	}
	return rec
}

func hasVocabularyPrefix(line string) bool {
	for _, prefix := range sienaVocabulary {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}

// Tissue-class tokens of the cross-sectional report. GREY, WHITE and BRAIN
// appear in every revision; pgrey and vcsf only in the extended one.
var (
	sienaxTissues   = []string{"GREY", "WHITE", "BRAIN"}
	sienaxExtended  = []string{"pgrey", "vcsf"}
	vscalingPrefix  = "VSCALING"
	sienaxAllTokens = append(append([]string{}, sienaxTissues...), sienaxExtended...)
)

// parseSienax handles the cross-sectional report. Each tissue line carries
// a normalised and an unnormalised volume. When any extended marker is
// present (a pgrey or vcsf line, or a VSCALING line) the tissue entries
// nest under volume_calculations and VSCALING stays top-level; otherwise
// the record is the flat basic shape.
func parseSienax(lines []string) Record {
	tissues := make(map[string]any)
	vscaling := ""
	extended := false

	for _, line := range lines {
		fields := strings.Fields(line)
		if strings.HasPrefix(line, vscalingPrefix) {
			if len(fields) >= 2 {
				vscaling = fields[1]
				extended = true
			}
			continue
		}
		if !hasTissuePrefix(line) || len(fields) < 3 {
			continue
		}
		tissues[fields[0]] = map[string]any{
			"volume":              fields[1],
			"unnormalised-volume": fields[2],
		}
		for _, ext := range sienaxExtended {
			if strings.HasPrefix(line, ext) {
				extended = true
			}
		}
	}

	if len(tissues) == 0 && vscaling == "" {
		return Record{}
	}
	if !extended {
		return Record(tissues)
	}
	rec := Record{"volume_calculations": tissues}
	if vscaling != "" {
		rec["VSCALING"] = vscaling
	}
	return rec
}

func hasTissuePrefix(line string) bool {
	for _, token := range sienaxAllTokens {
		if strings.HasPrefix(line, token) {
			return true
		}
	}
	return false
}

// trailingNumber matches the whole last token of a qualifying line in the
// ventricular report.
var trailingNumber = regexp.MustCompile(`^[-+]?[0-9]+(\.[0-9]+)?$`)

// collisionSuffix disambiguates a repeated key in the ventricular report.
// The spelling is part of the metadata contract; downstream consumers key
// on it, misspelling included.
const collisionSuffix = "_real_anaysis"

// parseViena handles the free-form ventricular report. Any line whose last
// whitespace token is a decimal number contributes an entry keyed by its
// first token: the second token alone when the line has exactly two, the
// remaining tokens as a slice otherwise. The second occurrence of a key is
// stored under the collision suffix; a third overwrites the suffixed entry.
func parseViena(lines []string) Record {
	rec := make(Record)
	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) == 0 || !trailingNumber.MatchString(fields[len(fields)-1]) {
			continue
		}
		key := fields[0]
		var value any
		if len(fields) == 2 {
			value = fields[1]
		} else {
			value = fields[1:]
		}
		if _, exists := rec[key]; exists {
			key += collisionSuffix
		}
		rec[key] = value
	}
	return rec
}
