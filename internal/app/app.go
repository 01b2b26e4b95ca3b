package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"austage/internal/config"
	"austage/internal/fs"
	"austage/internal/packaging"
	"austage/internal/report"
	"austage/internal/staging"
)

// Exit codes resolved from the error that ended a run.
const (
	ExitOK           = 0
	ExitFailure      = 1
	ExitPrecondition = 2
	ExitInterrupted  = 255
)

// Options carries the command-line switches for one staging run. Zero values
// mean "not given"; config supplies defaults underneath them.
type Options struct {
	URL              string
	LocalDir         string
	Subdirectory     string
	BackupRoot       string
	Identity         string
	Authentication   string
	Password         string
	KnownHosts       string
	Title            string
	Manifest         string
	Parameters       []string // name=value pairs
	Exclude          []string
	Skip             []string
	DryRun           bool
	SkipVerification bool
	Output           string
	Verbose          int
}

// StageApp is the application layer between the CLI and the staging engine.
// It assembles the endpoint from config and switches, wires the credential
// cascade and the reporter, and manages the log file lifecycle on Close.
type StageApp struct {
	cfg      *config.Config
	opts     Options
	endpoint *staging.Endpoint
	slog     *slogAdapter
	logFile  *os.File
	inv      *Invocation
}

// NewStageApp creates a fully wired StageApp. The caller must call Close
// when done.
func NewStageApp(cfg *config.Config, logDir string, opts Options) (*StageApp, error) {
	ep, err := buildEndpoint(cfg, opts)
	if err != nil {
		return nil, err
	}

	inv := NewInvocation("stage")
	logger, logFile, err := newLogger(logDir, inv.ID)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	return &StageApp{
		cfg:      cfg,
		opts:     opts,
		endpoint: ep,
		slog:     &slogAdapter{l: logger},
		logFile:  logFile,
		inv:      inv,
	}, nil
}

// buildEndpoint assembles the staging endpoint. The URL, whether from the
// command line or the config file, supplies the base values; config fields
// override those; explicit switches override everything.
func buildEndpoint(cfg *config.Config, opts Options) (*staging.Endpoint, error) {
	raw := opts.URL
	if raw == "" {
		raw = cfg.Stage.URL
	}

	var ep *staging.Endpoint
	if raw != "" {
		parsed, err := staging.ParseURL(raw)
		if err != nil {
			return nil, err
		}
		ep = parsed
	} else {
		ep = &staging.Endpoint{}
	}

	ep.Overlay(staging.Endpoint{
		Protocol:       staging.Protocol(cfg.Stage.Protocol),
		Host:           cfg.Stage.Host,
		Port:           cfg.Stage.Port,
		User:           cfg.Stage.User,
		BaseDir:        cfg.Stage.BaseDir,
		Subdirectory:   cfg.Stage.Subdirectory,
		IdentityFile:   cfg.Stage.Identity,
		AuthMode:       staging.AuthMode(cfg.Stage.Authentication),
		KnownHostsFile: cfg.Stage.KnownHosts,
	})
	ep.Overlay(staging.Endpoint{
		Subdirectory:   opts.Subdirectory,
		Password:       opts.Password,
		IdentityFile:   opts.Identity,
		AuthMode:       staging.AuthMode(opts.Authentication),
		KnownHostsFile: opts.KnownHosts,
	})

	if ep.Host == "" {
		return nil, fmt.Errorf("no staging host: give a URL argument or set stage.url in the config")
	}
	if ep.Protocol == "" {
		ep.Protocol = staging.ProtocolSFTP
	}
	if ep.Subdirectory == "" {
		return nil, fmt.Errorf("no subdirectory: give --directory or set stage.subdirectory in the config")
	}
	switch ep.AuthMode {
	case "", staging.AuthModeAgent, staging.AuthModeKeyfile, staging.AuthModePassword:
	default:
		return nil, fmt.Errorf("unknown authentication mode %q (want agent, keyfile or password)", ep.AuthMode)
	}
	return ep, nil
}

// Stage runs the staging pipeline and renders its events through the
// reporter. The returned error has already been logged.
func (a *StageApp) Stage(ctx context.Context) error {
	localDir, err := filepath.Abs(a.opts.LocalDir)
	if err != nil {
		return fmt.Errorf("resolving local directory: %w", err)
	}

	reporter := &report.Reporter{
		Verbose: a.opts.Verbose,
		Output:  a.opts.Output,
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
	}

	matcher := fs.NewExcludeMatcher(append(append([]string{}, a.cfg.Exclude...), a.opts.Exclude...))

	skip := make(map[string]bool, len(a.opts.Skip))
	for _, step := range a.opts.Skip {
		skip[strings.TrimSpace(step)] = true
	}

	pkg, err := a.buildPackage(localDir)
	if err != nil {
		return err
	}

	passwordLabel := fmt.Sprintf("%s@%s password", a.endpoint.User, a.endpoint.Host)
	password := promptSecret(passwordLabel)
	if a.endpoint.Password != "" {
		password = staging.StaticPassword(a.endpoint.Password)
	}
	passphrase := promptSecret("key passphrase")

	resolver := staging.NewResolver(a.endpoint, &staging.NetDialer{Logger: a.slog}, password, passphrase, a.slog)

	orch := staging.NewOrchestrator(a.endpoint, resolver, staging.OrchestratorOptions{
		LocalDir:         localDir,
		BackupRoot:       a.backupRoot(),
		Skip:             skip,
		DryRun:           a.opts.DryRun,
		SkipVerification: a.opts.SkipVerification,
		Exclude:          matcher.Match,
		Notify:           reporter.Notify,
		Logger:           a.slog,
		Package:          pkg,
	})

	a.slog.Info("staging run starting",
		"command", a.inv.Command,
		"host", a.endpoint.Host,
		"subdirectory", a.endpoint.Subdirectory,
		"dry_run", a.opts.DryRun)

	if _, err := orch.Run(ctx); err != nil {
		a.inv.Fail()
		a.slog.Error("staging run failed", "error", err)
		return err
	}
	return nil
}

// buildPackage assembles the package checker, or nil when the package step
// is skipped.
func (a *StageApp) buildPackage(localDir string) (staging.PackageChecker, error) {
	for _, step := range a.opts.Skip {
		if strings.TrimSpace(step) == staging.StepPackage {
			return nil, nil
		}
	}

	title := a.opts.Title
	if title == "" {
		title = a.cfg.Package.Title
	}
	if title == "" {
		title = a.endpoint.Subdirectory
	}
	manifest := a.opts.Manifest
	if manifest == "" {
		manifest = a.cfg.Package.Manifest
	}

	params := make([]packaging.Parameter, 0, len(a.cfg.Package.Parameters)+len(a.opts.Parameters))
	for _, p := range a.cfg.Package.Parameters {
		params = append(params, packaging.Parameter{Name: p.Name, Value: p.Value})
	}
	for _, raw := range a.opts.Parameters {
		name, value, ok := strings.Cut(raw, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("malformed parameter %q (want name=value)", raw)
		}
		params = append(params, packaging.Parameter{Name: name, Value: value})
	}

	return packaging.New(localDir, title, manifest, params), nil
}

func (a *StageApp) backupRoot() string {
	if a.opts.BackupRoot != "" {
		return a.opts.BackupRoot
	}
	return a.cfg.Backup.Root
}

// Close records the final status and releases the log file.
func (a *StageApp) Close() error {
	a.slog.Info("staging run finished", "status", a.inv.Status)
	if a.logFile != nil {
		return a.logFile.Close()
	}
	return nil
}

// ExitCode maps the error that ended a run to the process exit code:
// 0 for success, 2 for a failed local package precondition, 255 for an
// interrupt, 1 for everything else.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var precondition *staging.PreconditionError
	if errors.As(err, &precondition) {
		return ExitPrecondition
	}
	if errors.Is(err, context.Canceled) {
		return ExitInterrupted
	}
	return ExitFailure
}
