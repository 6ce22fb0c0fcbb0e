package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/boozedog/corsserve/internal/config"
	"github.com/boozedog/corsserve/internal/web"
	"github.com/spf13/cobra"
)

// errStartFailed means the failure was already reported on stdout.
var errStartFailed = errors.New("server failed to start")

var rootCmd = &cobra.Command{
	Use:   "corsserve",
	Short: "Serve a site directory with permissive CORS headers",
	Long: `Serves the files next to the corsserve binary over HTTP on port 8000 (8001 if
8000 is taken), adding CORS headers to every response so browser ES modules can
load sibling resources during local development.`,
	Args:          cobra.NoArgs,
	SilenceErrors: true,
	SilenceUsage:  true,
	RunE:          runServe,
}

var (
	servePort        int
	serveDir         string
	serveConfig      string
	serveWatch       bool
	serveVerbose     bool
	serveWriteConfig string
)

func init() {
	rootCmd.Flags().IntVar(&servePort, "port", config.DefaultPort, "port to try first")
	rootCmd.Flags().StringVar(&serveDir, "dir", "", "directory to serve (default: directory of the executable, or the working directory under go run)")
	rootCmd.Flags().StringVar(&serveConfig, "config", "", "optional TOML or YAML config file")
	rootCmd.Flags().BoolVar(&serveWatch, "watch", false, "stream live-reload events on /__reload")
	rootCmd.Flags().StringVar(&serveWriteConfig, "write-config", "", "write the effective config to this TOML or YAML file and exit")
	rootCmd.Flags().BoolVarP(&serveVerbose, "verbose", "v", false, "log every request to stderr")
}

// Execute runs the root command and exits on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errStartFailed) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()

	fail := func(err error) error {
		fmt.Fprintf(out, "Error starting server: %v\n", err)
		return errStartFailed
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return fail(err)
	}

	if serveWriteConfig != "" {
		if err := cfg.SaveTo(serveWriteConfig); err != nil {
			return fmt.Errorf("write config: %w", err)
		}
		fmt.Fprintf(out, "Wrote config to %s\n", serveWriteConfig)
		return nil
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: cfg.LogLevel(),
	})))

	root, err := cfg.SiteDir()
	if err != nil {
		return fail(err)
	}

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt)
	defer stop()

	srv := web.NewServer(cfg, root)
	handler, cleanup, err := srv.Handler(ctx)
	if err != nil {
		return fail(err)
	}
	defer cleanup()

	ln, err := web.Bind(cfg.Server.Port, out)
	if err != nil {
		return fail(err)
	}

	fmt.Fprintf(out, "Server running at http://localhost:%d\n", web.Port(ln))
	fmt.Fprintln(out, "Press Ctrl+C to stop the server")

	if err := srv.Serve(ctx, ln, handler); err != nil {
		return fmt.Errorf("serve: %w", err)
	}

	fmt.Fprintln(out, "\nServer stopped.")
	return nil
}

// loadConfig reads the optional config file and applies flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.Default()
	if serveConfig != "" {
		loaded, err := config.LoadFrom(serveConfig)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Server.Port = servePort
	}
	if flags.Changed("dir") {
		cfg.Server.Dir = serveDir
	}
	if serveWatch {
		cfg.Reload.Enabled = true
	}
	if serveVerbose {
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}
