package report

import (
	"reflect"
	"strings"
	"testing"

	gearerrors "github.com/cerebralab/siena-gear/core/errors"
)

func TestKindFor(t *testing.T) {
	tests := []struct {
		basename string
		want     Kind
		ok       bool
	}{
		{"report.siena", KindSiena, true},
		{"report.sienax", KindSienax, true},
		{"report.viena", KindViena, true},
		{"report.html", KindUnknown, false},
		{"report.siena.log", KindUnknown, false},
		{"", KindUnknown, false},
	}
	for _, tt := range tests {
		got, ok := KindFor(tt.basename)
		if got != tt.want || ok != tt.ok {
			t.Errorf("KindFor(%q) = (%q, %v), want (%q, %v)", tt.basename, got, ok, tt.want, tt.ok)
		}
	}
}

func TestParse_UnknownKind(t *testing.T) {
	_, err := Parse(KindUnknown, []string{"AREA 123"})
	if !gearerrors.Is(err, gearerrors.ErrUnrecognizedReport) {
		t.Errorf("expected ErrUnrecognizedReport, got %v", err)
	}
}

func TestParseSiena_SuffixDisambiguation(t *testing.T) {
	lines := strings.Split("AREA 123\nVOLC 456\nAREA 789\nfinalPBVC 1.2", "\n")
	rec, err := Parse(KindSiena, lines)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	want := Record{
		"AREA1":     "123",
		"VOLC1":     "456",
		"AREA2":     "789",
		"finalPBVC": "1.2",
	}
	if !reflect.DeepEqual(rec, want) {
		t.Errorf("Parse = %v, want %v", rec, want)
	}
}

func TestParseSiena_FullReport(t *testing.T) {
	lines := []string{
		"SIENA - Structural Image Evaluation of Normalised Atrophy",
		"AREA  13067.5 mm^2",
		"VOLC  -1845.2",
		"RATIO 1.0031",
		"PBVC  -0.8123",
		"AREA  13002.1 mm^2",
		"VOLC  -1790.4",
		"RATIO 0.9970",
		"PBVC  -0.7984",
		"finalPBVC -0.8054",
	}
	rec, err := Parse(KindSiena, lines)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(rec) != 9 {
		t.Fatalf("expected 9 keys, got %d: %v", len(rec), rec)
	}
	checks := map[string]string{
		"AREA1":     "13067.5",
		"AREA2":     "13002.1",
		"VOLC1":     "-1845.2",
		"VOLC2":     "-1790.4",
		"RATIO1":    "1.0031",
		"RATIO2":    "0.9970",
		"PBVC1":     "-0.8123",
		"PBVC2":     "-0.7984",
		"finalPBVC": "-0.8054",
	}
	for key, want := range checks {
		if rec[key] != want {
			t.Errorf("rec[%q] = %v, want %q", key, rec[key], want)
		}
	}
}

func TestParseSiena_MalformedLinesExcluded(t *testing.T) {
	lines := []string{
		"AREA",         // no value token
		"",             // blank
		"TOTAL 999",    // not in vocabulary
		"  AREA 1.0",   // leading whitespace defeats the prefix match
		"finalPBVC -1", // valid
	}
	rec, err := Parse(KindSiena, lines)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	want := Record{"finalPBVC": "-1"}
	if !reflect.DeepEqual(rec, want) {
		t.Errorf("Parse = %v, want %v", rec, want)
	}
}

func TestParseSienax_BasicShape(t *testing.T) {
	lines := strings.Split("GREY 100 90\nWHITE 200 180", "\n")
	rec, err := Parse(KindSienax, lines)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	want := Record{
		"GREY":  map[string]any{"volume": "100", "unnormalised-volume": "90"},
		"WHITE": map[string]any{"volume": "200", "unnormalised-volume": "180"},
	}
	if !reflect.DeepEqual(rec, want) {
		t.Errorf("Parse = %v, want %v", rec, want)
	}
}

func TestParseSienax_ExtendedShape(t *testing.T) {
	lines := []string{
		"VSCALING 1.2938",
		"",
		"tissue             volume    unnormalised-volume",
		"pgrey              509789.69 394022.42 (peripheral grey)",
		"vcsf               28239.94 21826.22 (ventricular CSF)",
		"GREY               636904.46 492264.93",
		"WHITE              471609.65 364516.51",
		"BRAIN              1108514.11 856781.44",
	}
	rec, err := Parse(KindSienax, lines)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if rec["VSCALING"] != "1.2938" {
		t.Errorf("VSCALING = %v, want 1.2938", rec["VSCALING"])
	}
	calcs, ok := rec["volume_calculations"].(map[string]any)
	if !ok {
		t.Fatalf("volume_calculations missing or wrong type: %v", rec)
	}
	if len(calcs) != 5 {
		t.Errorf("expected 5 tissue entries, got %d: %v", len(calcs), calcs)
	}
	grey, ok := calcs["pgrey"].(map[string]any)
	if !ok {
		t.Fatalf("pgrey entry missing: %v", calcs)
	}
	if grey["volume"] != "509789.69" || grey["unnormalised-volume"] != "394022.42" {
		t.Errorf("pgrey = %v", grey)
	}
	if _, topLevel := rec["GREY"]; topLevel {
		t.Error("extended shape must not keep tissues at top level")
	}
}

func TestParseSienax_ExtendedWithoutVScaling(t *testing.T) {
	lines := []string{
		"pgrey 100 90",
		"GREY 200 180",
	}
	rec, err := Parse(KindSienax, lines)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if _, present := rec["VSCALING"]; present {
		t.Error("VSCALING should be absent when the report lacks it")
	}
	calcs, ok := rec["volume_calculations"].(map[string]any)
	if !ok {
		t.Fatalf("pgrey line should force the nested shape: %v", rec)
	}
	if len(calcs) != 2 {
		t.Errorf("expected 2 tissue entries, got %v", calcs)
	}
}

func TestParseSienax_MalformedLinesExcluded(t *testing.T) {
	lines := []string{
		"GREY 100",    // missing unnormalised volume
		"BLUE 100 90", // unknown tissue
		"WHITE 200 180",
	}
	rec, err := Parse(KindSienax, lines)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	want := Record{
		"WHITE": map[string]any{"volume": "200", "unnormalised-volume": "180"},
	}
	if !reflect.DeepEqual(rec, want) {
		t.Errorf("Parse = %v, want %v", rec, want)
	}
}

func TestParseViena_ValueShapes(t *testing.T) {
	lines := []string{
		"foo 1.0 2.0 3.0",
		"bar 42",
		"corrected PBVC -0.25",
	}
	rec, err := Parse(KindViena, lines)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if got, want := rec["foo"], []string{"1.0", "2.0", "3.0"}; !reflect.DeepEqual(got, want) {
		t.Errorf("foo = %v, want %v", got, want)
	}
	if rec["bar"] != "42" {
		t.Errorf("bar = %v, want 42 as string", rec["bar"])
	}
	if got, want := rec["corrected"], []string{"PBVC", "-0.25"}; !reflect.DeepEqual(got, want) {
		t.Errorf("corrected = %v, want %v", got, want)
	}
}

func TestParseViena_SkipsNonNumericTrailers(t *testing.T) {
	lines := []string{
		"VIENA - ventricular enlargement analysis",
		"see the report for details",
		"ratio 1.5x",
		"vedge 12.5",
	}
	rec, err := Parse(KindViena, lines)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	want := Record{"vedge": "12.5"}
	if !reflect.DeepEqual(rec, want) {
		t.Errorf("Parse = %v, want %v", rec, want)
	}
}

func TestParseViena_CollisionSuffix(t *testing.T) {
	lines := []string{
		"foo 1.0",
		"foo 2.0",
	}
	rec, err := Parse(KindViena, lines)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	want := Record{
		"foo":              "1.0",
		"foo_real_anaysis": "2.0",
	}
	if !reflect.DeepEqual(rec, want) {
		t.Errorf("Parse = %v, want %v", rec, want)
	}

	// A third occurrence overwrites the suffixed entry.
	rec, err = Parse(KindViena, append(lines, "foo 3.0"))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	want = Record{
		"foo":              "1.0",
		"foo_real_anaysis": "3.0",
	}
	if !reflect.DeepEqual(rec, want) {
		t.Errorf("Parse = %v, want %v", rec, want)
	}
}

func TestRecordEmpty(t *testing.T) {
	rec, err := Parse(KindSiena, []string{"nothing matches here"})
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if !rec.Empty() {
		t.Errorf("expected empty record, got %v", rec)
	}
	if (Record{"k": "v"}).Empty() {
		t.Error("non-empty record reported empty")
	}
}
