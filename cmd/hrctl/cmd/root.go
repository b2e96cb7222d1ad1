// Package cmd holds the hrctl commands. Sessions persist between runs in a
// sqlite file, so login once and the other commands reuse the tokens,
// refreshing them as needed.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jrsteele09/go-workforce-client/hrclient"
	"github.com/jrsteele09/go-workforce-client/internal/config"
	"github.com/jrsteele09/go-workforce-client/internal/logger"
	"github.com/jrsteele09/go-workforce-client/sessions/sqlitestore"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

var (
	cfgFile    string
	sessionDB  string
	traceCalls bool
	asAdmin    bool
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:   "hrctl",
	Short: "Command line client for the workforce HR API",
	Long: `hrctl talks to the workforce HR API with the same session, cache and push
layers an application uses.

Environment Variables:
  ORIGIN               Server origin (default: http://localhost:8080)
  API_BASE_URL         Tenant API base (default: /api)
  ADMIN_API_BASE_URL   Administrative API base (default: /admin-api)
  PUSH_URL             Push channel base (default: /push)
  SESSION_DB           Session store (default: <user config dir>/workforce/sessions.db)
  LOG_LEVEL            debug, info, warn, error (default: info)`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		logger.InitWithWriter(cmd.ErrOrStderr(), cfg.GetLogLevel(), cfg.GetLogFormat())
		return nil
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML config file")
	rootCmd.PersistentFlags().StringVar(&sessionDB, "session-db", "", "session store path (overrides SESSION_DB)")
	rootCmd.PersistentFlags().BoolVar(&traceCalls, "trace", false, "print a span for every HTTP call to stderr")
	rootCmd.PersistentFlags().BoolVar(&asAdmin, "admin", false, "use the administrative audience")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output JSON instead of text")
}

// sessionPath returns the session store from flag, config or default, in
// that order.
func sessionPath(cfg config.Config) (string, error) {
	if sessionDB != "" {
		return sessionDB, nil
	}
	if p := cfg.GetSessionDB(); p != "" {
		return p, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	dir = filepath.Join(dir, "workforce")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return filepath.Join(dir, "sessions.db"), nil
}

// newClient builds an hrclient.Client over the persisted sessions. The
// returned func releases everything it opened.
func newClient(cmd *cobra.Command, options ...hrclient.Option) (*hrclient.Client, func(), error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, err
	}
	path, err := sessionPath(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to locate session store: %w", err)
	}
	store, err := sqlitestore.Open(path)
	if err != nil {
		return nil, nil, err
	}
	options = append(options, hrclient.WithSessionStore(store))

	var tp *sdktrace.TracerProvider
	if traceCalls {
		exp, err := stdouttrace.New(stdouttrace.WithWriter(cmd.ErrOrStderr()), stdouttrace.WithPrettyPrint())
		if err != nil {
			_ = store.Close()
			return nil, nil, fmt.Errorf("failed to create trace exporter: %w", err)
		}
		tp = sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
		options = append(options, hrclient.WithTracerProvider(tp))
	}

	c, err := hrclient.New(cfg, options...)
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}
	release := func() {
		errs := []error{c.Close()}
		if tp != nil {
			errs = append(errs, tp.Shutdown(context.Background()))
		}
		errs = append(errs, store.Close())
		if err := errors.Join(errs...); err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), "warning:", err)
		}
	}
	return c, release, nil
}

// audience picks the audience selected by --admin.
func audience(c *hrclient.Client) *hrclient.Audience {
	if asAdmin {
		return c.Administrator()
	}
	return c.Tenant()
}

// restore loads the stored session of the selected audience.
func restore(c *hrclient.Client) error {
	a := audience(c)
	found, err := a.Auth.Restore()
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("not logged in to the %s API, run hrctl login", a.Auth.Audience())
	}
	return nil
}
