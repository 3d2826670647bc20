package archive

import (
	"archive/zip"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", rel, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", rel, err)
	}
}

func readZipEntries(t *testing.T, zipPath string) map[string][]byte {
	t.Helper()
	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		t.Fatalf("open zip: %v", err)
	}
	defer zr.Close()

	entries := make(map[string][]byte, len(zr.File))
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open entry %s: %v", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("read entry %s: %v", f.Name, err)
		}
		entries[f.Name] = data
	}
	return entries
}

func TestBuild(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "report.siena", "finalP 1.0687")
	writeFile(t, dir, "report.html", "<html></html>")
	writeFile(t, dir, ".metadata.json", `{"analysis":{}}`)
	writeFile(t, dir, "extra.txt", "scratch")
	writeFile(t, dir, "sub/inner.txt", "nested data")

	promote := []string{"report.siena", "report.html", ".metadata.json"}
	if err := Build(dir, "siena_outputs", promote); err != nil {
		t.Fatalf("Build: %v", err)
	}

	entries := readZipEntries(t, filepath.Join(dir, "siena_outputs.zip"))
	want := map[string]string{
		"report.siena":   "finalP 1.0687",
		"report.html":    "<html></html>",
		".metadata.json": `{"analysis":{}}`,
		"extra.txt":      "scratch",
		"sub/inner.txt":  "nested data",
	}
	if len(entries) != len(want) {
		t.Errorf("entry count = %d, want %d", len(entries), len(want))
	}
	for name, content := range want {
		got, ok := entries[name]
		if !ok {
			t.Errorf("entry %s missing from archive", name)
			continue
		}
		if string(got) != content {
			t.Errorf("entry %s = %q, want %q", name, got, content)
		}
	}

	for _, name := range promote {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("promoted file %s should remain on disk: %v", name, err)
		}
	}
	for _, name := range []string{"extra.txt", "sub/inner.txt"} {
		if _, err := os.Stat(filepath.Join(dir, filepath.FromSlash(name))); !os.IsNotExist(err) {
			t.Errorf("file %s should have been removed, stat err = %v", name, err)
		}
	}
}

func TestBuildUsesDeflate(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "report.sienax", "VSCALING 1.2882")

	if err := Build(dir, "sienax_outputs", []string{"report.sienax"}); err != nil {
		t.Fatalf("Build: %v", err)
	}

	zr, err := zip.OpenReader(filepath.Join(dir, "sienax_outputs.zip"))
	if err != nil {
		t.Fatalf("open zip: %v", err)
	}
	defer zr.Close()
	for _, f := range zr.File {
		if f.Method != zip.Deflate {
			t.Errorf("entry %s method = %d, want deflate (%d)", f.Name, f.Method, zip.Deflate)
		}
	}
}

func TestBuildExcludesItself(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "report.siena", "data")

	// Two consecutive runs: the second sees the first run's zip on disk and
	// must not nest it inside the new archive.
	for i := 0; i < 2; i++ {
		if err := Build(dir, "siena_outputs", []string{"report.siena"}); err != nil {
			t.Fatalf("Build run %d: %v", i+1, err)
		}
	}

	entries := readZipEntries(t, filepath.Join(dir, "siena_outputs.zip"))
	if _, ok := entries["siena_outputs.zip"]; ok {
		t.Error("archive must not contain itself")
	}
	if _, ok := entries["report.siena"]; !ok {
		t.Error("promoted file missing from second archive")
	}
}

func TestBuildVanishedFileSkipped(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "report.siena", "data")
	writeFile(t, dir, "ghost.txt", "gone before zipping")

	orig := osOpen
	osOpen = func(path string) (*os.File, error) {
		if filepath.Base(path) == "ghost.txt" {
			return nil, fs.ErrNotExist
		}
		return os.Open(path)
	}
	defer func() { osOpen = orig }()

	if err := Build(dir, "siena_outputs", []string{"report.siena"}); err != nil {
		t.Fatalf("Build: %v", err)
	}

	entries := readZipEntries(t, filepath.Join(dir, "siena_outputs.zip"))
	if _, ok := entries["ghost.txt"]; ok {
		t.Error("vanished file should not appear in the archive")
	}
	if _, ok := entries["report.siena"]; !ok {
		t.Error("surviving file missing from archive")
	}
}

func TestBuildEmptyDirectory(t *testing.T) {
	dir := t.TempDir()
	if err := Build(dir, "siena_outputs", nil); err != nil {
		t.Fatalf("Build: %v", err)
	}
	entries := readZipEntries(t, filepath.Join(dir, "siena_outputs.zip"))
	if len(entries) != 0 {
		t.Errorf("empty directory produced %d entries", len(entries))
	}
}

func TestBuildPromoteUnknownName(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "extra.txt", "scratch")

	if err := Build(dir, "siena_outputs", []string{"report.viena"}); err != nil {
		t.Fatalf("Build: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "extra.txt")); !os.IsNotExist(err) {
		t.Errorf("extra.txt should have been removed, stat err = %v", err)
	}
}

func TestBuildMissingDirectory(t *testing.T) {
	err := Build(filepath.Join(t.TempDir(), "nope"), "out", nil)
	if err == nil {
		t.Fatal("expected error for missing directory")
	}
}
