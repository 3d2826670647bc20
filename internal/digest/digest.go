// Package digest computes content digests for run deliverables. Every
// promoted file and archive gets a dual SHA-256/BLAKE3 digest recorded in
// the run log so downstream consumers can verify what they downloaded.
package digest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/zeebo/blake3"
)

// Result contains both SHA-256 and BLAKE3 digests for one deliverable.
type Result struct {
	SHA256 string `json:"sha256"`
	BLAKE3 string `json:"blake3"`
	Size   int64  `json:"size"`
}

// Bytes digests an in-memory blob.
func Bytes(data []byte) Result {
	s := sha256.Sum256(data)
	b := blake3.Sum256(data)
	return Result{
		SHA256: hex.EncodeToString(s[:]),
		BLAKE3: hex.EncodeToString(b[:]),
		Size:   int64(len(data)),
	}
}

// File digests the file at path in one streaming pass.
func File(path string) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	sh := sha256.New()
	bh := blake3.New()
	n, err := io.Copy(io.MultiWriter(sh, bh), f)
	if err != nil {
		return Result{}, fmt.Errorf("failed to digest %s: %w", path, err)
	}

	return Result{
		SHA256: hex.EncodeToString(sh.Sum(nil)),
		BLAKE3: hex.EncodeToString(bh.Sum(nil)),
		Size:   n,
	}, nil
}

// Short returns the first 12 hex characters of a digest for log display.
func Short(digest string) string {
	if len(digest) <= 12 {
		return digest
	}
	return digest[:12]
}
