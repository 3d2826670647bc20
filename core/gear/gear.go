// Package gear orchestrates one analysis run end to end: configuration,
// input validation, command compilation, the external tool invocation, and
// the fan-out that turns raw tool outputs into deliverables.
package gear

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	gearerrors "github.com/cerebralab/siena-gear/core/errors"
	"github.com/cerebralab/siena-gear/core/gearconfig"
	"github.com/cerebralab/siena-gear/core/htmlreport"
	"github.com/cerebralab/siena-gear/core/label"
	"github.com/cerebralab/siena-gear/core/manifest"
	"github.com/cerebralab/siena-gear/core/metadata"
	"github.com/cerebralab/siena-gear/core/options"
	"github.com/cerebralab/siena-gear/core/report"
	"github.com/cerebralab/siena-gear/core/runner"
	"github.com/cerebralab/siena-gear/internal/archive"
	"github.com/cerebralab/siena-gear/internal/digest"
	"github.com/cerebralab/siena-gear/internal/logging"
	"github.com/cerebralab/siena-gear/internal/validation"
)

// DefaultBaseDir is where the pipeline mounts the gear's working tree.
const DefaultBaseDir = "/flywheel/v0"

// Phase tracks run progress. Transitions are logged so a truncated run log
// still shows how far the run got.
type Phase int

const (
	PhaseConfigLoaded Phase = iota
	PhaseInputsValidated
	PhaseCommandCompiled
	PhaseExternalToolInvoked
	PhaseSuccess
	PhaseFailure
)

func (p Phase) String() string {
	switch p {
	case PhaseConfigLoaded:
		return "config_loaded"
	case PhaseInputsValidated:
		return "inputs_validated"
	case PhaseCommandCompiled:
		return "command_compiled"
	case PhaseExternalToolInvoked:
		return "external_tool_invoked"
	case PhaseSuccess:
		return "success"
	case PhaseFailure:
		return "failure"
	}
	return "unknown"
}

// Options configures a Gear.
type Options struct {
	// BaseDir is the gear working tree. Empty means DefaultBaseDir.
	BaseDir string

	// BundleDir holds packaged tool archives for images that ship the
	// analysis tools alongside the gear binary.
	BundleDir string
}

// Gear is one configured run.
type Gear struct {
	baseDir  string
	manifest *manifest.Manifest
	config   *gearconfig.Config
	backend  metadata.Backend
	executor *runner.Executor
	resolver *runner.Resolver
	phase    Phase
}

// Deliverable is one file the run leaves behind for the pipeline.
type Deliverable struct {
	Name   string
	Digest digest.Result
}

// Result is the outcome of a run. A non-zero ExitCode is the analysis
// tool's own exit status, passed through verbatim.
type Result struct {
	ExitCode     int
	Tool         string
	Deliverables []Deliverable
}

// plan is a compiled invocation: which tool, its positional image
// arguments, and the option flags in schema order.
type plan struct {
	tool        string
	positionals []string
	args        []string
}

// New loads and validates the manifest and run config under the base
// directory, prepares the output directory, and selects the metadata
// backend. Configuration problems are fatal.
func New(opts Options) (*Gear, error) {
	baseDir := opts.BaseDir
	if baseDir == "" {
		baseDir = DefaultBaseDir
	}

	manifestPath, err := manifest.Locate(baseDir)
	if err != nil {
		return nil, err
	}
	man, err := manifest.Load(manifestPath)
	if err != nil {
		return nil, err
	}
	if err := man.Validate(); err != nil {
		return nil, err
	}

	cfg, err := gearconfig.Load(filepath.Join(baseDir, "config.json"))
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	outputDir := filepath.Join(baseDir, "output")
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, gearerrors.NewIO("mkdir", outputDir, err)
	}

	g := &Gear{
		baseDir:  baseDir,
		manifest: man,
		config:   cfg,
		executor: runner.NewExecutor(),
		resolver: &runner.Resolver{BundleDir: opts.BundleDir},
	}
	if base, key, ok := cfg.APICredentials(); ok {
		g.backend = metadata.NewAPIBackend(base, key)
		logging.Info("metadata backend selected", "backend", "api")
	} else {
		g.backend = metadata.NewFileBackend(outputDir)
		logging.Info("metadata backend selected", "backend", "file")
	}
	g.setPhase(PhaseConfigLoaded)
	return g, nil
}

// Run executes the analysis end to end. Fatal configuration and input
// problems come back as errors; a tool that ran and failed comes back as a
// Result carrying its exit code, with all post-processing skipped.
func (g *Gear) Run(ctx context.Context) (*Result, error) {
	ctx = logging.WithRunID(ctx, g.config.RunID())

	p, err := g.compilePlan()
	if err != nil {
		return nil, err
	}
	g.setPhase(PhaseInputsValidated)

	toolPath, err := g.resolver.ResolveTool(p.tool)
	if err != nil {
		return nil, err
	}

	command := make([]string, 0, len(p.positionals)+len(p.args)+3)
	command = append(command, toolPath)
	command = append(command, p.positionals...)
	command = append(command, p.args...)
	command = append(command, "-o", g.outputDir())
	g.setPhase(PhaseCommandCompiled)

	g.setPhase(PhaseExternalToolInvoked)
	res, err := g.executor.Run(ctx, command)
	if err != nil {
		return nil, err
	}
	if res.ExitCode != 0 {
		g.setPhase(PhaseFailure)
		logging.Error("analysis did not complete", "tool", p.tool, "exit_code", res.ExitCode)
		return &Result{ExitCode: res.ExitCode, Tool: p.tool}, nil
	}

	deliverables := g.collectOutputs(ctx, p.tool)
	g.setPhase(PhaseSuccess)
	logging.Info("analysis completed", "tool", p.tool, "deliverables", len(deliverables))
	return &Result{ExitCode: 0, Tool: p.tool, Deliverables: deliverables}, nil
}

// Preflight validates the run without invoking the tool: mode selection,
// input images, and option compilation. It returns the tool that would run.
func (g *Gear) Preflight() (string, error) {
	p, err := g.compilePlan()
	if err != nil {
		return "", err
	}
	return p.tool, nil
}

func (g *Gear) outputDir() string {
	return filepath.Join(g.baseDir, "output")
}

func (g *Gear) inputDir() string {
	return filepath.Join(g.baseDir, "input")
}

func (g *Gear) setPhase(p Phase) {
	g.phase = p
	logging.Info("phase", "phase", p.String(), "run_id", g.config.RunID())
}

// compilePlan selects the analysis mode from the staged inputs and builds
// the invocation. Two time points run siena, a single image runs sienax,
// anything else is fatal.
func (g *Gear) compilePlan() (*plan, error) {
	_, hasFirst := g.config.Input("NIFTI_1")
	_, hasSecond := g.config.Input("NIFTI_2")
	_, hasSingle := g.config.Input("NIFTI")

	switch {
	case hasFirst && hasSecond:
		return g.sienaPlan()
	case hasSingle:
		return g.sienaxPlan()
	}
	return nil, gearerrors.NewInput("", "", "inputs match neither siena (NIFTI_1 and NIFTI_2) nor sienax (NIFTI)")
}

func (g *Gear) sienaPlan() (*plan, error) {
	logging.Info("configuring analysis", "tool", "siena")
	first, err := g.validateInput("NIFTI_1")
	if err != nil {
		return nil, err
	}
	second, err := g.validateInput("NIFTI_2")
	if err != nil {
		return nil, err
	}

	args, err := g.compiledOptions()
	if err != nil {
		return nil, err
	}

	if mask, ok := g.config.Input("ventricle_mask"); ok {
		if !containsArg(args, "-V") {
			return nil, gearerrors.NewInput("ventricle_mask", mask.Location.Path, "provided without selecting VENT")
		}
		maskPath, err := g.validateInput("ventricle_mask")
		if err != nil {
			return nil, err
		}
		args = append(args, "-v", maskPath)
	}

	return &plan{tool: "siena", positionals: []string{first, second}, args: args}, nil
}

func (g *Gear) sienaxPlan() (*plan, error) {
	logging.Info("configuring analysis", "tool", "sienax")
	image, err := g.validateInput("NIFTI")
	if err != nil {
		return nil, err
	}

	args, err := g.compiledOptions()
	if err != nil {
		return nil, err
	}

	if _, ok := g.config.Input("lesion_mask"); ok {
		maskPath, err := g.validateInput("lesion_mask")
		if err != nil {
			return nil, err
		}
		args = append(args, "-lm", maskPath)
	}

	return &plan{tool: "sienax", positionals: []string{image}, args: args}, nil
}

// validateInput checks the named staged input is a readable NIfTI image and
// returns the path to pass to the tool, normalized if the staged name
// carried whitespace.
func (g *Gear) validateInput(name string) (string, error) {
	in, ok := g.config.Input(name)
	if !ok {
		return "", gearerrors.NewInput(name, "", "required input missing")
	}
	path, err := validation.ValidateNIfTI(name, in.Location.Path)
	if err != nil {
		return "", err
	}
	logging.InputEvent("validated", name, path)
	return path, nil
}

func (g *Gear) compiledOptions() ([]string, error) {
	opts, err := options.Resolve(g.manifest.ConfigEntries())
	if err != nil {
		return nil, err
	}
	return options.Compile(opts, g.config.Values)
}

func containsArg(args []string, flag string) bool {
	for _, a := range args {
		if a == flag {
			return true
		}
	}
	return false
}

// reportCandidates lists the text reports each tool can leave behind.
func reportCandidates(tool string) []string {
	if tool == "siena" {
		return []string{"report.siena", "report.viena"}
	}
	return []string{"report.sienax"}
}

// htmlCandidates lists the HTML reports each tool can leave behind.
func htmlCandidates(tool string) []string {
	if tool == "siena" {
		return []string{"report.html", "reportvena.html"}
	}
	return []string{"report.html"}
}

// collectOutputs runs the post-tool fan-out: parse and persist report
// metadata, sanitize HTML reports, archive everything else, and digest the
// deliverables. Every step degrades with a warning; a successful analysis
// is never failed by output processing.
func (g *Gear) collectOutputs(ctx context.Context, tool string) []Deliverable {
	outDir := g.outputDir()
	subjects := label.ResolveSubjects(ctx, g.backend, g.config.Destination.ID)

	var promote []string
	promote = append(promote, g.processReports(ctx, tool)...)
	promote = append(promote, g.processHTML(tool, subjects)...)
	promote = append(promote, metadata.FileName)

	archiveName := label.Generate(subjects, tool+"_outputs", false, "")
	if err := archive.Build(outDir, archiveName, promote); err != nil {
		logging.Warn("could not archive outputs", "error", err.Error())
	}

	names := append([]string{}, promote...)
	names = append(names, archiveName+".zip")

	var deliverables []Deliverable
	for _, name := range names {
		res, err := digest.File(filepath.Join(outDir, name))
		if err != nil {
			// Degraded runs do not produce every deliverable.
			continue
		}
		deliverables = append(deliverables, Deliverable{Name: name, Digest: res})
		logging.Info("deliverable",
			"name", name,
			"size", res.Size,
			"sha256", digest.Short(res.SHA256),
			"blake3", digest.Short(res.BLAKE3),
		)
	}
	WriteSummary(os.Stdout, deliverables)
	return deliverables
}

// processReports parses each text report the tool produced, persists the
// parsed record to the metadata backend, and renames persisted reports
// with a .log suffix so the pipeline types them as logs. Reports that
// cannot be parsed or persisted are kept under their original name.
func (g *Gear) processReports(ctx context.Context, tool string) []string {
	outDir := g.outputDir()
	runID := g.config.RunID()

	var promote []string
	for _, name := range reportCandidates(tool) {
		path := filepath.Join(outDir, name)
		data, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			logging.Warn("could not read report", "name", name, "error", err.Error())
			continue
		}

		kind, ok := report.KindFor(name)
		if !ok {
			logging.Warn("unrecognized report", "name", name)
			promote = append(promote, name)
			continue
		}
		rec, err := report.Parse(kind, strings.Split(string(data), "\n"))
		if err != nil || rec.Empty() {
			logging.Warn("report produced no metadata", "name", name)
			promote = append(promote, name)
			continue
		}
		logging.ReportParsed(string(kind), len(rec))

		if err := g.backend.WriteMetadata(ctx, runID, map[string]any{string(kind): rec}); err != nil {
			logging.BackendWrite(runID, string(kind), err)
			promote = append(promote, name)
			continue
		}

		logName := name + ".log"
		if err := os.Rename(path, filepath.Join(outDir, logName)); err != nil {
			logging.Warn("could not rename report", "name", name, "error", err.Error())
			promote = append(promote, name)
			continue
		}
		promote = append(promote, logName)
		logging.Promoted(logName)
	}
	return promote
}

// processHTML sanitizes each HTML report in place and renames it with the
// run's subject codes when any resolved. Sanitizer failures degrade to
// promoting the report as the tool wrote it.
func (g *Gear) processHTML(tool string, subjects []string) []string {
	outDir := g.outputDir()
	inputDir := g.inputDir()

	var promote []string
	for _, name := range htmlCandidates(tool) {
		path := filepath.Join(outDir, name)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}
		if err := htmlreport.InlineImages(path, path); err != nil {
			logging.Warn("could not inline report images", "name", name, "error", err.Error())
		}
		if err := htmlreport.ScrubPaths(path, path, inputDir, tool); err != nil {
			logging.Warn("could not scrub report paths", "name", name, "error", err.Error())
		}

		final := name
		base := strings.TrimSuffix(name, filepath.Ext(name))
		if labeled := label.Generate(subjects, base, false, "html"); labeled != name {
			if err := os.Rename(path, filepath.Join(outDir, labeled)); err != nil {
				logging.Warn("could not rename html report", "name", name, "error", err.Error())
			} else {
				final = labeled
			}
		}
		promote = append(promote, final)
		logging.Promoted(final)
	}
	return promote
}
