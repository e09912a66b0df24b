package ctl

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"expenso/internal/config"
	"expenso/internal/log"
)

// Options lets tests swap the output, the config source and the session opener.
type Options struct {
	Out   io.Writer
	Err   io.Writer
	Viper *viper.Viper
	Open  Opener
}

type runner struct {
	v       *viper.Viper
	open    Opener
	logger  *log.Logger
	errOut  io.Writer
	cfgFile string
}

// NewRootCmd builds the expensoctl command tree.
func NewRootCmd(opts Options) *cobra.Command {
	r := &runner{v: opts.Viper, open: opts.Open, errOut: opts.Err}
	if r.v == nil {
		r.v = viper.New()
	}
	if r.open == nil {
		r.open = Open
	}
	if r.errOut == nil {
		r.errOut = os.Stderr
	}

	root := &cobra.Command{
		Use:   "expensoctl",
		Short: "💰 Expenso from the terminal",
		Long: `expensoctl signs in to an Expenso backend and manages transactions,
the dashboard summary and CSV exports without a browser.

The session is remembered between runs until you log out.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: r.initConfig,
	}
	if opts.Out != nil {
		root.SetOut(opts.Out)
	}
	root.SetErr(r.errOut)

	flags := root.PersistentFlags()
	flags.StringVar(&r.cfgFile, "config", "", "config file (default: $HOME/.config/expenso/config.yaml)")
	flags.String("api-url", "http://localhost:5000/api", "backend REST API base URL")
	flags.Duration("timeout", 10*time.Second, "per-request timeout")
	flags.String("store", "", `session store file, or "memory" (default: user config dir)`)
	flags.String("log-level", "warn", "log level (debug, info, warn, error)")

	_ = r.v.BindPFlag("api_url", flags.Lookup("api-url"))
	_ = r.v.BindPFlag("timeout", flags.Lookup("timeout"))
	_ = r.v.BindPFlag("store", flags.Lookup("store"))
	_ = r.v.BindPFlag("log_level", flags.Lookup("log-level"))

	root.AddCommand(r.loginCmd())
	root.AddCommand(r.logoutCmd())
	root.AddCommand(r.whoamiCmd())
	root.AddCommand(r.transactionsCmd())
	root.AddCommand(r.dashboardCmd())
	root.AddCommand(r.reportCmd())
	root.AddCommand(r.categoriesCmd())
	root.AddCommand(r.exportCmd())
	return root
}

func (r *runner) initConfig(_ *cobra.Command, _ []string) error {
	if r.cfgFile != "" {
		r.v.SetConfigFile(r.cfgFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			r.v.AddConfigPath(filepath.Join(home, ".config", "expenso"))
		}
		r.v.SetConfigName("config")
		r.v.SetConfigType("yaml")
	}

	r.v.SetEnvPrefix("EXPENSO")
	r.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	r.v.AutomaticEnv()

	if err := r.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	level, err := config.ParseLogLevel(r.v.GetString("log_level"))
	if err != nil {
		return err
	}
	r.logger = log.New(log.Config{Level: level, Component: log.ComponentCLI, Output: r.errOut})
	return nil
}

func (r *runner) config() Config {
	return Config{
		APIBaseURL: r.v.GetString("api_url"),
		Timeout:    r.v.GetDuration("timeout"),
		StorePath:  r.v.GetString("store"),
	}
}

// withApp opens the session for one command and closes it afterwards.
func (r *runner) withApp(cmd *cobra.Command, fn func(app *App) error) error {
	app, err := r.open(cmd.Context(), r.config(), r.logger.Slog())
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			r.logger.Warn("Failed to close session store", log.FieldError, err)
		}
	}()
	return fn(app)
}

// withAuth is withApp for commands that need a signed-in session.
func (r *runner) withAuth(cmd *cobra.Command, fn func(app *App) error) error {
	return r.withApp(cmd, func(app *App) error {
		if !app.Session.State().Auth.IsAuthenticated {
			return ErrNotLoggedIn
		}
		return fn(app)
	})
}
