// Package cli implements the molcore command line: one-shot structure
// commands and the HTTP server.
package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	molapp "github.com/turtacn/molcore/internal/application/molecule"
	"github.com/turtacn/molcore/internal/config"
	"github.com/turtacn/molcore/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molcore/pkg/errors"
)

// Build-time variables injected via ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// cliContextKey is the context key for CLIContext.
type cliContextKey struct{}

// RootOptions holds global CLI flags.
type RootOptions struct {
	ConfigPath   string
	LogLevel     string
	OutputFormat string
	Verbose      bool
	NoColor      bool
}

// CLIContext carries initialized dependencies through the command tree.
type CLIContext struct {
	Config       *config.Config
	ConfigPath   string
	Logger       logging.Logger
	OutputFormat string
	NoColor      bool

	service molapp.Service
}

// Service returns the molecule service, building it from the chem
// configuration on first use.
func (c *CLIContext) Service() (molapp.Service, error) {
	if c.service != nil {
		return c.service, nil
	}
	svc, err := molapp.NewService(molapp.OptionsFromConfig(c.Config.Chem), molapp.WithLogger(c.Logger))
	if err != nil {
		return nil, err
	}
	c.service = svc
	return svc, nil
}

// NewRootCommand creates the root cobra command with all global flags and
// subcommands.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "molcore",
		Short: "molcore parses, canonicalizes, matches and fingerprints chemical structures",
		Long: "molcore reads SMILES and MDL molfiles, writes canonical SMILES, runs SMARTS\n" +
			"substructure queries and computes circular and path fingerprints. The same\n" +
			"operations are served over HTTP by the serve command.",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildDate),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return persistentPreRun(cmd, opts)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.ConfigPath, "config", "c", "", "config file path (default: ./molcore.yaml if present)")
	pf.StringVar(&opts.LogLevel, "log-level", "", "log level (debug, info, warn, error); overrides the config file")
	pf.StringVarP(&opts.OutputFormat, "output", "o", "text", "output format (text, json)")
	pf.BoolVarP(&opts.Verbose, "verbose", "v", false, "enable debug logging")
	pf.BoolVar(&opts.NoColor, "no-color", false, "disable colored output")

	cmd.AddCommand(
		newCanonCmd(),
		newMatchCmd(),
		newFingerprintCmd(),
		newSimilarityCmd(),
		newServeCmd(),
		newVersionCmd(),
	)
	return cmd
}

// persistentPreRun loads config and logger, then stores the CLIContext.
func persistentPreRun(cmd *cobra.Command, opts *RootOptions) error {
	switch strings.ToLower(opts.OutputFormat) {
	case "text", "json":
	default:
		return errors.InvalidParam(fmt.Sprintf("unknown output format %q; expected text or json", opts.OutputFormat))
	}

	path := resolveConfigPath(opts.ConfigPath)
	cfg, err := initConfig(path)
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}
	if opts.LogLevel != "" {
		cfg.Log.Level = strings.ToLower(opts.LogLevel)
	}
	if opts.Verbose {
		cfg.Log.Level = logging.LevelDebug
	}

	logger, err := initLogger(cmd, cfg)
	if err != nil {
		return fmt.Errorf("logger initialization failed: %w", err)
	}
	logging.SetDefault(logger)
	if opts.NoColor {
		color.NoColor = true
	}

	cliCtx := &CLIContext{
		Config:       cfg,
		ConfigPath:   path,
		Logger:       logger,
		OutputFormat: strings.ToLower(opts.OutputFormat),
		NoColor:      opts.NoColor,
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(context.WithValue(ctx, cliContextKey{}, cliCtx))
	return nil
}

// resolveConfigPath returns the explicit path, else the first existing file
// of the search list, else "".
func resolveConfigPath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	searchPaths := []string{"./molcore.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		searchPaths = append(searchPaths, filepath.Join(home, ".molcore", "config.yaml"))
	}
	searchPaths = append(searchPaths, "/etc/molcore/config.yaml")

	for _, p := range searchPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// initConfig loads configuration with priority: env > file > defaults. An
// empty path uses env and defaults only.
func initConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.LoadFromEnv()
	}
	return config.Load(path)
}

// initLogger creates a console logger on the command's stderr. The serve
// command replaces it with one built from the full log section.
func initLogger(cmd *cobra.Command, cfg *config.Config) (logging.Logger, error) {
	level := cfg.Log.Level
	if level == "" {
		level = logging.LevelWarn
	}
	if cmd.ErrOrStderr() != os.Stderr {
		// Tests capture stderr through cobra; zap sinks cannot follow it.
		return logging.NewNopLogger(), nil
	}
	return logging.NewLogger(logging.LogConfig{
		Level:       level,
		Format:      "console",
		OutputPaths: []string{"stderr"},
	})
}

// GetCLIContext extracts CLIContext from a cobra command's context.
func GetCLIContext(cmd *cobra.Command) (*CLIContext, error) {
	ctx := cmd.Context()
	if ctx == nil {
		return nil, errors.InvalidParam("command context is nil")
	}
	cliCtx, ok := ctx.Value(cliContextKey{}).(*CLIContext)
	if !ok || cliCtx == nil {
		return nil, errors.InvalidParam("CLIContext not found in command context")
	}
	return cliCtx, nil
}

// Execute is the main entry point for the CLI application.
func Execute() error {
	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		PrintError(rootCmd, err)
		return err
	}
	return nil
}

// PrintError writes a formatted error message to stderr.
func PrintError(cmd *cobra.Command, err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "%s %s\n", color.RedString("Error:"), err.Error())
}

// printJSON outputs data as indented JSON to stdout.
func printJSON(cmd *cobra.Command, data interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

// renderTable renders headers and rows with tablewriter.
func renderTable(headers []string, rows [][]string) string {
	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	cells := make([]any, len(headers))
	for i, h := range headers {
		cells[i] = h
	}
	table.Header(cells...)
	for _, row := range rows {
		table.Append(row)
	}
	table.Render()
	return buf.String()
}

// validLabel colors a validity flag for text output.
func validLabel(ok bool) string {
	if ok {
		return color.GreenString("valid")
	}
	return color.RedString("invalid")
}

// readStructure resolves a structure argument. "-" reads all of stdin,
// which is how multi-line molfiles are passed.
func readStructure(cmd *cobra.Command, arg string) (string, error) {
	if arg != "-" {
		return arg, nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeBadRequest, "read structure from stdin")
	}
	return string(data), nil
}

// invalidStructure is the error returned by commands whose input fails to
// parse; the handle's error text is the detail.
func invalidStructure(label string, h *molapp.Handle) error {
	return errors.New(errors.GetCode(h.Err()), fmt.Sprintf("%s: %s", label, molapp.ErrorText(h.Err())))
}
