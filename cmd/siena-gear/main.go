// Command siena-gear wraps FSL's SIENA and SIENAX structural brain-change
// tools for pipeline execution. It compiles the staged configuration into a
// tool invocation, runs the tool, and turns the raw outputs into
// deliverables: parsed report metadata, sanitized HTML reports, and a zip
// of everything else.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"github.com/cerebralab/siena-gear/core/gear"
	"github.com/cerebralab/siena-gear/internal/hostenv"
	"github.com/cerebralab/siena-gear/internal/logging"
)

const version = "1.0.0"

// CLI defines the command-line interface for siena-gear.
var CLI struct {
	LogLevel  string `name:"log-level" default:"info" enum:"debug,info,warn,error" help:"Log level"`
	LogFormat string `name:"log-format" default:"json" enum:"json,text" help:"Log output format"`

	Run      RunCmd      `cmd:"" default:"1" help:"Execute the analysis run"`
	Validate ValidateCmd `cmd:"" help:"Validate manifest, config, and inputs without running"`
	Version  VersionCmd  `cmd:"" help:"Print version information"`
}

// RunCmd executes the analysis end to end.
type RunCmd struct {
	BaseDir   string `name:"base-dir" default:"/flywheel/v0" help:"Gear working tree" type:"path"`
	BundleDir string `name:"tool-bundle-dir" help:"Directory holding packaged tool archives" type:"path"`
}

func (c *RunCmd) Run() error {
	logStartup()
	g, err := gear.New(gear.Options{BaseDir: c.BaseDir, BundleDir: c.BundleDir})
	if err != nil {
		return err
	}
	res, err := g.Run(context.Background())
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		// The tool's exit status is the gear's exit status.
		os.Exit(res.ExitCode)
	}
	return nil
}

// ValidateCmd checks the run configuration and reports which tool would be
// invoked, without executing anything.
type ValidateCmd struct {
	BaseDir string `name:"base-dir" default:"/flywheel/v0" help:"Gear working tree" type:"path"`
}

func (c *ValidateCmd) Run() error {
	logStartup()
	g, err := gear.New(gear.Options{BaseDir: c.BaseDir})
	if err != nil {
		return err
	}
	tool, err := g.Preflight()
	if err != nil {
		return err
	}
	fmt.Printf("configuration valid, would run %s\n", tool)
	return nil
}

// VersionCmd prints version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Printf("siena-gear version %s\n", version)
	return nil
}

func logStartup() {
	args := append([]any{"version", version}, hostenv.Capture().LogArgs()...)
	logging.Info("starting", args...)
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("siena-gear"),
		kong.Description("FSL SIENA/SIENAX brain-change analysis gear"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)
	logging.InitLogger(logging.ParseLevel(CLI.LogLevel), logging.ParseFormat(CLI.LogFormat))
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
