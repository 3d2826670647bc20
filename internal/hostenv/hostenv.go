// Package hostenv captures the platform a run executes on. Analyses run
// inside pipeline-managed containers; recording the environment in the run
// log keeps results traceable to where they were computed.
package hostenv

import (
	"os"
	"runtime"
	"strings"

	"github.com/shirou/gopsutil/v4/host"
)

// Info describes the run environment.
type Info struct {
	Hostname         string
	OS               string
	Arch             string
	Platform         string
	PlatformVersion  string
	KernelVersion    string
	Container        bool
	ContainerRuntime string
}

// Capture collects host information. Everything is best-effort: a field
// that cannot be read stays empty rather than failing the run.
func Capture() Info {
	info := Info{
		OS:   runtime.GOOS,
		Arch: runtime.GOARCH,
	}
	if h, err := os.Hostname(); err == nil {
		info.Hostname = h
	}
	if hi, err := host.Info(); err == nil {
		info.Platform = hi.Platform
		info.PlatformVersion = hi.PlatformVersion
		info.KernelVersion = hi.KernelVersion
	}
	info.Container, info.ContainerRuntime = detectContainer()
	return info
}

// detectContainer checks the usual container markers: virtualization role,
// the docker and podman marker files, then cgroup contents.
func detectContainer() (bool, string) {
	if system, role, err := host.Virtualization(); err == nil && role == "guest" {
		switch system {
		case "docker", "lxc", "podman", "systemd-nspawn":
			return true, system
		}
	}
	if _, err := os.Lstat("/.dockerenv"); err == nil {
		return true, "docker"
	}
	if _, err := os.Lstat("/run/.containerenv"); err == nil {
		return true, "podman"
	}
	if data, err := os.ReadFile("/proc/self/cgroup"); err == nil {
		s := string(data)
		switch {
		case strings.Contains(s, "docker"):
			return true, "docker"
		case strings.Contains(s, "kubepods"):
			return true, "kubernetes"
		case strings.Contains(s, "lxc"):
			return true, "lxc"
		}
	}
	return false, ""
}

// LogArgs renders the info as key-value pairs for structured logging.
func (i Info) LogArgs() []any {
	args := []any{
		"hostname", i.Hostname,
		"os", i.OS,
		"arch", i.Arch,
		"platform", i.Platform,
		"platform_version", i.PlatformVersion,
		"kernel_version", i.KernelVersion,
		"container", i.Container,
	}
	if i.ContainerRuntime != "" {
		args = append(args, "container_runtime", i.ContainerRuntime)
	}
	return args
}
