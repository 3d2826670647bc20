// Package validation provides input-image validation and filename
// normalization for analysis inputs. The image check is a load-success
// check only: header size and magic, nothing voxel-level.
package validation

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	gearerrors "github.com/cerebralab/siena-gear/core/errors"
	"github.com/cerebralab/siena-gear/internal/fileutil"
)

// ImageFormat represents a recognized volumetric image format.
type ImageFormat string

const (
	// ImageNIfTI1 is the NIfTI-1 format (348-byte header).
	ImageNIfTI1 ImageFormat = "nifti-1"
	// ImageNIfTI2 is the NIfTI-2 format (540-byte header).
	ImageNIfTI2 ImageFormat = "nifti-2"
	// ImageUnknown is anything else.
	ImageUnknown ImageFormat = "unknown"
)

const (
	nifti1HeaderSize = 348
	nifti2HeaderSize = 540
)

// niftiMagic defines magic byte signatures for image format detection.
var niftiMagic = []struct {
	format ImageFormat
	magic  []byte
	offset int
}{
	{ImageNIfTI1, []byte("n+1\x00"), 344}, // single-file .nii
	{ImageNIfTI1, []byte("ni1\x00"), 344}, // .hdr/.img pair
	{ImageNIfTI2, []byte("n+2\x00"), 4},
}

// gzipMagic is the two-byte gzip stream signature.
var gzipMagic = []byte{0x1f, 0x8b}

// ValidateNIfTI checks that path holds a loadable NIfTI image and normalizes
// whitespace in its basename. The analysis tools will not tolerate spaces in
// file names, so a spaced basename is copied to an underscore-normalized
// sibling path. Returns the path to use (the copy when one was made).
// name is the manifest input name, used only for error context.
func ValidateNIfTI(name, path string) (string, error) {
	format, err := DetectImageFile(path)
	if err != nil {
		return "", &gearerrors.InputError{Name: name, Path: path, Reason: "unreadable image", Err: err}
	}
	if format == ImageUnknown {
		return "", gearerrors.NewInput(name, path, "not a NIfTI image")
	}
	return NormalizeWhitespace(path)
}

// DetectImageFile opens path and detects its image format, transparently
// decompressing a gzip wrapper (.nii.gz) first.
func DetectImageFile(path string) (ImageFormat, error) {
	f, err := os.Open(path)
	if err != nil {
		return ImageUnknown, err
	}
	defer f.Close()

	br := bufio.NewReader(f)
	head, err := br.Peek(2)
	if err != nil {
		return ImageUnknown, fmt.Errorf("failed to read file header: %w", err)
	}

	var r io.Reader = br
	if bytes.Equal(head, gzipMagic) {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return ImageUnknown, fmt.Errorf("failed to open gzip stream: %w", err)
		}
		defer gz.Close()
		r = gz
	}

	return DetectImageFormat(r)
}

// DetectImageFormat detects the image format from a raw (decompressed) stream.
func DetectImageFormat(r io.Reader) (ImageFormat, error) {
	header := make([]byte, nifti1HeaderSize)
	n, err := io.ReadFull(r, header)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return ImageUnknown, fmt.Errorf("failed to read image header: %w", err)
	}
	header = header[:n]

	format := detectFormatFromMagic(header)
	if format == ImageUnknown {
		return ImageUnknown, nil
	}

	// The header size field must agree with the magic in either byte order.
	if len(header) < 4 {
		return ImageUnknown, nil
	}
	size := headerSizeField(header)
	switch format {
	case ImageNIfTI1:
		if size != nifti1HeaderSize {
			return ImageUnknown, nil
		}
	case ImageNIfTI2:
		if size != nifti2HeaderSize {
			return ImageUnknown, nil
		}
	}

	return format, nil
}

// detectFormatFromMagic detects the image format from magic bytes.
func detectFormatFromMagic(buf []byte) ImageFormat {
	for _, sig := range niftiMagic {
		if sig.offset+len(sig.magic) <= len(buf) {
			if bytes.Equal(buf[sig.offset:sig.offset+len(sig.magic)], sig.magic) {
				return sig.format
			}
		}
	}
	return ImageUnknown
}

// headerSizeField reads the leading sizeof_hdr int32 in whichever byte order
// yields a recognized value.
func headerSizeField(header []byte) uint32 {
	le := binary.LittleEndian.Uint32(header[0:4])
	if le == nifti1HeaderSize || le == nifti2HeaderSize {
		return le
	}
	be := binary.BigEndian.Uint32(header[0:4])
	if be == nifti1HeaderSize || be == nifti2HeaderSize {
		return be
	}
	return le
}

// NormalizeWhitespace copies path to a sibling whose basename has spaces
// replaced by underscores. The original file is retained. Returns the input
// path unchanged when its basename has no spaces.
func NormalizeWhitespace(path string) (string, error) {
	base := filepath.Base(path)
	fixed := strings.ReplaceAll(base, " ", "_")
	if fixed == base {
		return path, nil
	}

	fixedPath := filepath.Join(filepath.Dir(path), fixed)
	if err := fileutil.CopyFile(path, fixedPath); err != nil {
		return "", gearerrors.NewIO("copy", fixedPath, err)
	}
	return fixedPath, nil
}

// SanitizeLabel replaces every character outside [A-Za-z0-9_] with 'x'.
// Generated deliverable names pass through here so they are safe on any
// filesystem the archive lands on.
func SanitizeLabel(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('x')
		}
	}
	return b.String()
}
