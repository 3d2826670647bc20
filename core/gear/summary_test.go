package gear

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cerebralab/siena-gear/internal/digest"
)

func forceTerminal(t *testing.T, on bool) {
	t.Helper()
	old := isTerminal
	isTerminal = func(*os.File) bool { return on }
	t.Cleanup(func() { isTerminal = old })
}

func TestWriteSummary_NonFileWriterIsSilent(t *testing.T) {
	forceTerminal(t, true)
	var buf bytes.Buffer
	WriteSummary(&buf, []Deliverable{{Name: "report.html"}})
	if buf.Len() != 0 {
		t.Fatalf("expected no output, got %q", buf.String())
	}
}

func TestWriteSummary_NonTerminalIsSilent(t *testing.T) {
	forceTerminal(t, false)
	f, err := os.Create(filepath.Join(t.TempDir(), "out"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	WriteSummary(f, []Deliverable{{Name: "report.html"}})
	data, err := os.ReadFile(f.Name())
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != 0 {
		t.Fatalf("expected no output, got %q", data)
	}
}

func TestWriteSummary_RendersTable(t *testing.T) {
	forceTerminal(t, true)
	f, err := os.Create(filepath.Join(t.TempDir(), "out"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	res := digest.Bytes([]byte("archive content"))
	WriteSummary(f, []Deliverable{
		{Name: "patient_042_siena_outputs.zip", Digest: res},
		{Name: "report.html", Digest: digest.Bytes([]byte("<html></html>"))},
	})

	data, err := os.ReadFile(f.Name())
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)
	for _, want := range []string{
		"Deliverables",
		"patient_042_siena_outputs.zip",
		"report.html",
		digest.Short(res.SHA256),
		digest.Short(res.BLAKE3),
	} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestWriteSummary_EmptyIsSilent(t *testing.T) {
	forceTerminal(t, true)
	f, err := os.Create(filepath.Join(t.TempDir(), "out"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	WriteSummary(f, nil)
	data, err := os.ReadFile(f.Name())
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != 0 {
		t.Fatalf("expected no output, got %q", data)
	}
}

func TestFormatSize(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{0, "0 B"},
		{532, "532 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{1048576, "1.0 MiB"},
		{5 * 1024 * 1024 * 1024, "5.0 GiB"},
	}
	for _, tt := range tests {
		if got := formatSize(tt.n); got != tt.want {
			t.Errorf("formatSize(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}
