package staging

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// backupStamp names the per-invocation backup directory.
const backupStamp = "20060102150405"

// Step names accepted by the --skip switch.
const (
	StepDownload = "download"
	StepUpload   = "upload"
	StepPackage  = "package"
	StepBackup   = "backup"
)

// PackageChecker is the narrow interface to the preservation-package
// collaborator. Packaging and validation internals live elsewhere; the
// orchestrator only needs the verdicts and the pipeline metadata.
type PackageChecker interface {
	HasBagItEnclosure() bool
	HasValidManifest() (bool, error)
	ResetFileSize() (string, error)
	PipelineMetadata() map[string]any
}

// Summary is the structured payload of the terminal ok event, designed to be
// piped into the next pipeline stage.
type Summary struct {
	StagedTo        string         `json:"staged_to"`
	Protocol        string         `json:"protocol"`
	FilesUploaded   int            `json:"files_uploaded"`
	BytesUploaded   int64          `json:"bytes_uploaded"`
	FilesDownloaded int            `json:"files_downloaded"`
	BytesDownloaded int64          `json:"bytes_downloaded"`
	BackupPath      string         `json:"backup_path,omitempty"`
	DryRun          bool           `json:"dry_run,omitempty"`
	Package         map[string]any `json:"package,omitempty"`
}

// OrchestratorOptions wires one staging invocation.
type OrchestratorOptions struct {
	LocalDir         string
	BackupRoot       string
	Skip             map[string]bool
	DryRun           bool
	SkipVerification bool
	Exclude          func(name string) bool
	Notify           Notify
	Logger           Logger
	Clock            Clock
	Package          PackageChecker
}

// Orchestrator sequences one invocation: preconditions, connection, backup
// download, upload, summary, teardown.
type Orchestrator struct {
	endpoint *Endpoint
	resolver *Resolver
	opts     OrchestratorOptions
	logger   Logger
	clock    Clock
}

// NewOrchestrator creates an Orchestrator for the endpoint.
func NewOrchestrator(ep *Endpoint, resolver *Resolver, opts OrchestratorOptions) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = NewNopLogger()
	}
	clock := opts.Clock
	if clock == nil {
		clock = RealClock{}
	}
	return &Orchestrator{
		endpoint: ep,
		resolver: resolver,
		opts:     opts,
		logger:   logger,
		clock:    clock,
	}
}

func (o *Orchestrator) skipped(step string) bool {
	return o.opts.Skip[step]
}

// Run executes the invocation. The connection is always closed, whichever
// path exits. Context cancellation propagates out between operations.
func (o *Orchestrator) Run(ctx context.Context) (*Summary, error) {
	if err := o.checkPackage(); err != nil {
		return nil, err
	}

	transport, err := o.resolver.Open()
	if err != nil {
		return nil, err
	}
	if o.opts.DryRun {
		wrapped, err := NewDryRunTransport(transport)
		if err != nil {
			transport.Close()
			return nil, err
		}
		transport = wrapped
	}

	session, err := NewSession(transport, o.endpoint, o.opts.LocalDir, o.opts.DryRun, o.logger)
	if err != nil {
		transport.Close()
		return nil, err
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			o.logger.Warn("closing connection", "error", cerr)
		}
	}()

	// Enter the base directory; its absence is fatal and never repaired.
	if err := session.setRemoteLocation(o.endpoint.BaseDir, false); err != nil {
		return nil, err
	}

	summary := &Summary{
		Protocol: string(o.endpoint.Protocol),
		DryRun:   o.opts.DryRun,
	}

	if !o.skipped(StepDownload) && !o.skipped(StepBackup) {
		if err := o.downloadToBackup(ctx, session, summary); err != nil {
			return nil, err
		}
	}

	if !o.skipped(StepUpload) {
		if err := o.uploadPackage(ctx, session, summary); err != nil {
			return nil, err
		}
	}

	summary.StagedTo = o.endpoint.URL(joinRemote(o.endpoint.BaseDir, o.endpoint.Subdirectory))
	if o.opts.Package != nil {
		meta := o.opts.Package.PipelineMetadata()
		pkg := make(map[string]any, len(meta)+2)
		for k, v := range meta {
			pkg[k] = v
		}
		pkg["Staged To"] = summary.StagedTo
		if o.endpoint.User != "" {
			pkg["Staged By"] = o.endpoint.User
		}
		summary.Package = pkg
	}

	o.opts.Notify.emit(Event{Level: 0, Kind: EventOK, DryRun: o.opts.DryRun, Summary: summary})
	o.logger.Info("staging complete",
		"url", summary.StagedTo,
		"uploaded_files", summary.FilesUploaded,
		"uploaded_bytes", summary.BytesUploaded,
		"downloaded_files", summary.FilesDownloaded)
	return summary, nil
}

// checkPackage enforces the local package preconditions unless the package
// step is skipped.
func (o *Orchestrator) checkPackage() error {
	if o.opts.Package == nil || o.skipped(StepPackage) {
		return nil
	}
	if !o.opts.Package.HasBagItEnclosure() {
		return &PreconditionError{
			Check: "BagIt",
			Path:  o.opts.LocalDir,
			Hint:  "package the directory with BagIt (data/ and bagit.txt) before staging",
		}
	}
	ok, err := o.opts.Package.HasValidManifest()
	if err != nil {
		return fmt.Errorf("checking manifest: %w", err)
	}
	if !ok {
		return &PreconditionError{
			Check: "manifest",
			Path:  o.opts.LocalDir,
			Hint:  "generate a manifest page with the LOCKSS permission boilerplate",
		}
	}
	if _, err := o.opts.Package.ResetFileSize(); err != nil {
		return fmt.Errorf("computing package size: %w", err)
	}
	return nil
}

// downloadToBackup mirrors the current remote contents of the subdirectory
// into a fresh timestamped local backup tree, purging the remote side as it
// verifies each file.
func (o *Orchestrator) downloadToBackup(ctx context.Context, session *Session, summary *Summary) error {
	backupPath, err := o.makeBackupDir()
	if err != nil {
		return err
	}
	summary.BackupPath = backupPath

	prev, err := session.SetLocation(backupPath, o.endpoint.Subdirectory, true)
	if err != nil {
		return err
	}
	defer func() {
		if _, rerr := session.SetLocation(prev.Local, prev.Remote, false); rerr != nil {
			o.logger.Warn("restoring location", "local", prev.Local, "remote", prev.Remote, "error", rerr)
		}
	}()

	mirror := NewMirror(session, MirrorOptions{
		Exclude:          o.opts.Exclude,
		Notify:           o.opts.Notify,
		SkipVerification: o.opts.SkipVerification,
	})
	if err := mirror.Download(ctx, "."); err != nil {
		return err
	}
	summary.FilesDownloaded = mirror.FilesMoved()
	summary.BytesDownloaded = mirror.BytesMoved()
	return nil
}

// uploadPackage mirrors the local package directory into the subdirectory.
func (o *Orchestrator) uploadPackage(ctx context.Context, session *Session, summary *Summary) error {
	prev, err := session.SetLocation(o.opts.LocalDir, o.endpoint.Subdirectory, true)
	if err != nil {
		return err
	}
	defer func() {
		if _, rerr := session.SetLocation(prev.Local, prev.Remote, false); rerr != nil {
			o.logger.Warn("restoring location", "local", prev.Local, "remote", prev.Remote, "error", rerr)
		}
	}()

	mirror := NewMirror(session, MirrorOptions{
		Exclude: o.opts.Exclude,
		Notify:  o.opts.Notify,
	})
	if err := mirror.Upload(ctx, "."); err != nil {
		return err
	}
	summary.FilesUploaded = mirror.FilesMoved()
	summary.BytesUploaded = mirror.BytesMoved()
	return nil
}

// makeBackupDir creates backup-root/<timestamp>/<subdirectory>/ for this
// invocation. Under dry-run the path is computed but nothing is created.
func (o *Orchestrator) makeBackupDir() (string, error) {
	stamp := o.clock.Now().Format(backupStamp)
	backupPath := filepath.Join(o.opts.BackupRoot, stamp, o.endpoint.Subdirectory)
	if o.opts.DryRun {
		return backupPath, nil
	}
	if err := os.MkdirAll(backupPath, 0755); err != nil {
		return "", fmt.Errorf("creating backup directory %s: %w", backupPath, err)
	}
	return backupPath, nil
}

// joinRemote joins remote path segments with forward slashes.
func joinRemote(base, sub string) string {
	if sub == "" || sub == "." {
		return base
	}
	if base == "" {
		return sub
	}
	if base[len(base)-1] == '/' {
		return base + sub
	}
	return base + "/" + sub
}
