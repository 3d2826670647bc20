// Package archive packages gear outputs into deliverable zips and reads
// compressed tool bundles.
package archive

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"

	gearerrors "github.com/cerebralab/siena-gear/core/errors"
)

// Injectable for testing file races between enumeration and archiving.
var osOpen = os.Open

// Build walks directory recursively and writes every regular file into
// <directory>/<archiveName>.zip with paths relative to directory. The zip
// itself is never an entry. After a successful write, files whose basename is
// not in promote are removed; promoted files stay on disk next to the
// archive. Files that vanish between enumeration and archiving are skipped,
// so re-running against a partially cleaned directory is safe.
func Build(directory, archiveName string, promote []string) error {
	zipName := archiveName + ".zip"
	zipPath := filepath.Join(directory, zipName)

	entries, err := enumerate(directory, zipName)
	if err != nil {
		return err
	}

	if err := writeZip(directory, zipPath, entries); err != nil {
		return err
	}

	promoted := make(map[string]bool, len(promote))
	for _, name := range promote {
		promoted[name] = true
	}
	for _, rel := range entries {
		if promoted[filepath.Base(rel)] {
			continue
		}
		if err := os.Remove(filepath.Join(directory, rel)); err != nil && !os.IsNotExist(err) {
			return gearerrors.NewIO("remove", rel, err)
		}
	}
	return nil
}

// enumerate lists regular files under directory as slash-separated relative
// paths, excluding the archive that Build is about to write.
func enumerate(directory, zipName string) ([]string, error) {
	var entries []string
	err := filepath.Walk(directory, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(directory, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if rel == zipName {
			return nil
		}
		entries = append(entries, rel)
		return nil
	})
	if err != nil {
		return nil, gearerrors.NewIO("walk", directory, err)
	}
	return entries, nil
}

func writeZip(directory, zipPath string, entries []string) error {
	out, err := os.Create(zipPath)
	if err != nil {
		return gearerrors.NewIO("create", zipPath, err)
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	for _, rel := range entries {
		if err := addEntry(zw, directory, rel); err != nil {
			zw.Close()
			return err
		}
	}
	if err := zw.Close(); err != nil {
		return gearerrors.NewIO("finalize", zipPath, err)
	}
	return out.Close()
}

func addEntry(zw *zip.Writer, directory, rel string) error {
	src, err := osOpen(filepath.Join(directory, filepath.FromSlash(rel)))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return gearerrors.NewIO("open", rel, err)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return gearerrors.NewIO("stat", rel, err)
	}
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return gearerrors.NewIO("header", rel, err)
	}
	header.Name = rel
	header.Method = zip.Deflate

	w, err := zw.CreateHeader(header)
	if err != nil {
		return gearerrors.NewIO("entry", rel, err)
	}
	if _, err := io.Copy(w, src); err != nil {
		return gearerrors.NewIO("compress", rel, err)
	}
	return nil
}
