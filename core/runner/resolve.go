package runner

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	gearerrors "github.com/cerebralab/siena-gear/core/errors"
	"github.com/cerebralab/siena-gear/internal/archive"
	"github.com/cerebralab/siena-gear/internal/logging"
)

// registryFile lists the bundles a bundle directory carries, mapping tool
// names to archive file names. Tools without an entry default to
// <tool>.tar.xz.
const registryFile = "tools.json"

// Resolver locates the analysis binary. Resolution order: an FSL
// installation named by FSLDIR, then the PATH, then a packaged tool bundle
// unpacked into the cache directory.
type Resolver struct {
	// BundleDir holds packaged tool archives for container images that
	// ship the tools alongside the gear. Empty disables bundles.
	BundleDir string

	// CacheDir is where bundles unpack. Unpacked trees are reused across
	// runs. Empty picks a directory under the system temp dir.
	CacheDir string
}

// ResolveTool returns the path of the binary to execute for tool.
func (r *Resolver) ResolveTool(tool string) (string, error) {
	if fslDir := os.Getenv("FSLDIR"); fslDir != "" {
		path := filepath.Join(fslDir, "bin", tool)
		if isExecutableFile(path) {
			return path, nil
		}
		logging.Warn("FSLDIR set but tool not found there", "fsldir", fslDir, "tool", tool)
	}

	if path, err := exec.LookPath(tool); err == nil {
		return path, nil
	}

	if r.BundleDir != "" {
		return r.resolveBundle(tool)
	}
	return "", fmt.Errorf("%w: %s", gearerrors.ErrToolNotFound, tool)
}

// resolveBundle unpacks the tool's bundle into the cache and returns the
// unpacked binary. A tree left behind by an earlier run is reused as is.
func (r *Resolver) resolveBundle(tool string) (string, error) {
	destDir := filepath.Join(r.cacheDir(), tool)
	binPath := filepath.Join(destDir, "bin", tool)
	if isExecutableFile(binPath) {
		return binPath, nil
	}

	registry, err := r.loadRegistry()
	if err != nil {
		return "", err
	}
	archiveName, ok := registry[tool]
	if !ok {
		archiveName = tool + ".tar.xz"
	}
	archivePath := filepath.Join(r.BundleDir, archiveName)
	if _, err := os.Stat(archivePath); err != nil {
		return "", fmt.Errorf("%w: %s (no bundle at %s)", gearerrors.ErrToolNotFound, tool, archivePath)
	}

	logging.Info("unpacking tool bundle", "tool", tool, "archive", archivePath, "dest", destDir)
	if err := archive.Extract(archivePath, destDir); err != nil {
		return "", gearerrors.NewIO("unpack", archivePath, err)
	}
	if !isExecutableFile(binPath) {
		return "", fmt.Errorf("%w: bundle %s does not provide bin/%s", gearerrors.ErrToolNotFound, archiveName, tool)
	}
	return binPath, nil
}

// loadRegistry reads the bundle registry. A missing registry is not an
// error, default archive names apply.
func (r *Resolver) loadRegistry() (map[string]string, error) {
	path := filepath.Join(r.BundleDir, registryFile)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, gearerrors.NewIO("read", path, err)
	}

	registry := map[string]string{}
	if err := json.Unmarshal(data, &registry); err != nil {
		return nil, gearerrors.NewParse("tool registry", path, err.Error())
	}
	return registry, nil
}

func (r *Resolver) cacheDir() string {
	if r.CacheDir != "" {
		return r.CacheDir
	}
	return filepath.Join(os.TempDir(), "siena-gear-tools")
}

func isExecutableFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular() && info.Mode()&0111 != 0
}
