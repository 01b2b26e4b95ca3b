package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"austage/internal/app"
	"austage/internal/config"
	"austage/internal/report"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(app.ExitCode(err))
	}
}

// newApp reads the config and creates a StageApp. The caller must defer
// a.Close().
func newApp(opts app.Options) (*app.StageApp, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if cfg.LogDir == "" {
		cfg.LogDir = defaults["log_dir"]
	}
	if cfg.Backup.Root == "" {
		cfg.Backup.Root = defaults["backup_root"]
	}

	a, err := app.NewStageApp(cfg, cfg.LogDir, opts)
	if err != nil {
		return nil, err
	}
	return a, nil
}

var rootCmd = &cobra.Command{
	Use:          "austage",
	Short:        "Stage archival unit packages to a LOCKSS drop server",
	SilenceUsage: true,
}

// stage command
var stageCmd = &cobra.Command{
	Use:   "stage [URL]",
	Short: "Transfer a packaged archival unit to the staging area",
	Long: `Transfer a packaged archival unit directory to the staging area on a
LOCKSS drop server, backing up whatever the server already holds for the
same subdirectory before overwriting it.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()

		opts := app.Options{
			LocalDir: mustString(flags, "local"),
			Identity: mustString(flags, "identity"),
		}
		if len(args) > 0 {
			opts.URL = args[0]
		}
		opts.Subdirectory = mustString(flags, "directory")
		if opts.Subdirectory == "" {
			opts.Subdirectory = mustString(flags, "subdirectory")
		}
		opts.BackupRoot = mustString(flags, "backup")
		opts.Authentication = mustString(flags, "authentication")
		opts.Password = mustString(flags, "password")
		opts.KnownHosts = mustString(flags, "known-hosts")
		opts.Title = mustString(flags, "title")
		opts.Manifest = mustString(flags, "manifest")
		opts.Parameters, _ = flags.GetStringArray("parameter")
		opts.Exclude, _ = flags.GetStringSlice("exclude")
		opts.Skip, _ = flags.GetStringSlice("skip")
		opts.DryRun, _ = flags.GetBool("dry-run")
		opts.SkipVerification, _ = flags.GetBool("skip-verification")
		opts.Output = mustString(flags, "output")

		verbose, _ := flags.GetCount("verbose")
		quiet, _ := flags.GetBool("quiet")
		opts.Verbose = 1 + verbose
		if quiet {
			opts.Verbose = 0
		}

		a, err := newApp(opts)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return a.Stage(ctx)
	},
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults["base_dir"])

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Stage URL:     %s\n", cfg.Stage.URL)
		fmt.Printf("Stage User:    %s\n", cfg.Stage.User)
		fmt.Printf("Backup Root:   %s\n", cfg.Backup.Root)
		fmt.Printf("Log Dir:       %s\n", cfg.LogDir)
		fmt.Printf("Package Title: %s\n", cfg.Package.Title)
		return nil
	},
}

// mustString reads a registered string flag.
func mustString(flags interface{ GetString(string) (string, error) }, name string) string {
	value, _ := flags.GetString(name)
	return value
}

func init() {
	f := stageCmd.Flags()
	f.StringP("local", "l", ".", "Local directory holding the packaged archival unit")
	f.StringP("directory", "d", "", "Subdirectory on the staging server to transfer into")
	f.String("subdirectory", "", "Synonym for --directory")
	f.String("backup", "", "Local directory to collect pre-overwrite backups under")
	f.StringP("identity", "i", "", "SSH private key file for key-based authentication")
	f.String("authentication", "", "Restrict authentication to one method: agent, keyfile or password")
	f.String("password", "", "Password for the staging server (prompted when needed)")
	f.String("known-hosts", "", "SSH known_hosts file for host key verification")
	f.String("title", "", "Title of the archival unit being staged")
	f.String("manifest", "", "Manifest page filename within the package")
	f.StringArray("parameter", nil, "Plugin parameter as name=value (repeatable)")
	f.StringSlice("exclude", nil, "Additional file name patterns to exclude")
	f.StringSlice("skip", nil, "Pipeline steps to skip: download, upload, package, backup")
	f.BoolP("dry-run", "n", false, "Report what would be transferred without changing anything")
	f.Bool("skip-verification", false, "Delete remote files after download without size verification")
	f.StringP("output", "o", report.OutputText, "Terminal result format: text/plain or application/json")
	f.CountP("verbose", "v", "Increase progress verbosity (repeatable)")
	f.BoolP("quiet", "q", false, "Suppress progress output")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	rootCmd.AddCommand(stageCmd)
	rootCmd.AddCommand(configCmd)
}
