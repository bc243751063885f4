package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"drg/auth"
	"drg/client"
	"drg/config"
	"drg/operation"
	"drg/outcome"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitFatal   = 2
)

const (
	keyConfig  = "config"
	keyContext = "context"
	keyApp     = "app"
	keyOutput  = "output"
)

// exitCode non zero exit code of a finished command
type exitCode int

func (e exitCode) Error() string { return fmt.Sprintf("exit status %d", int(e)) }

func exit(code int) error {
	if code == exitOK {
		return nil
	}
	return exitCode(code)
}

var rootCmd = &cobra.Command{
	Use:           "drg",
	Short:         "Command line client of the drogue cloud device registry",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		verbose, _ := cmd.Flags().GetCount("verbose")
		logger, err := newLogger(verbose)
		if err != nil {
			return err
		}
		zap.ReplaceGlobals(logger)

		_, err = outcome.ParseMode(viper.GetString(keyOutput))
		return err
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.String(keyConfig, config.DefaultPath(), "path of the config file (DRG_CONFIG)")
	flags.String(keyContext, "", "context to use instead of the active context (DRG_CONTEXT)")
	flags.String(keyApp, "", "application to use instead of the default application (DRG_APP)")
	flags.StringP(keyOutput, "o", "", "output format: json or wide")
	flags.CountP("verbose", "v", "verbose output, repeat for more")

	for _, key := range []string{keyConfig, keyContext, keyApp, keyOutput} {
		viper.BindPFlag(key, flags.Lookup(key))
	}
}

func initConfig() {
	viper.SetEnvPrefix("DRG")
	viper.AutomaticEnv()
}

func newLogger(verbose int) (*zap.Logger, error) {
	level := zapcore.WarnLevel
	switch {
	case verbose >= 2:
		level = zapcore.DebugLevel
	case verbose == 1:
		level = zapcore.InfoLevel
	}

	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.OutputPaths = []string{"stderr"}
	cfg.DisableStacktrace = true

	return cfg.Build()
}

// session config file loaded once per invocation and saved once if it was changed
type session struct {
	path    string
	config  *config.Config
	context *config.Context // selected context of remote commands
	printer *outcome.Printer
	cmd     *cobra.Command
}

func newPrinter(cmd *cobra.Command) *outcome.Printer {
	mode, _ := outcome.ParseMode(viper.GetString(keyOutput))
	return &outcome.Printer{Mode: mode, Out: cmd.OutOrStdout(), Err: cmd.ErrOrStderr()}
}

// fatal report configuration or IO error which aborts the invocation
func fatal(cmd *cobra.Command, err error) error {
	zap.S().Debugf("fatal: %+v", err)
	fmt.Fprintf(cmd.ErrOrStderr(), "Error: %s\n", err)
	return exitCode(exitFatal)
}

// local run fn with the config file; a missing config file is fatal unless create is set
func local(cmd *cobra.Command, create bool, fn func(s *session) int) error {
	path := viper.GetString(keyConfig)
	zap.S().Infof("config: %s", path)

	load := config.Load
	if create {
		load = config.LoadOrNew
	}

	cfg, err := load(path)
	if err != nil {
		return fatal(cmd, err)
	}

	s := &session{path: path, config: cfg, printer: newPrinter(cmd), cmd: cmd}
	code := fn(s)

	if cfg.Dirty() {
		if err := cfg.Save(path); err != nil {
			return fatal(cmd, err)
		}
		zap.S().Infof("config saved to %s", path)
	}

	return exit(code)
}

// withContext run fn with the selected context whose credential was refreshed if needed
func withContext(cmd *cobra.Command, fn func(ctx context.Context, s *session, c *config.Context) int) error {
	return local(cmd, false, func(s *session) int {
		c, err := s.config.Resolve(viper.GetString(keyContext))
		if err != nil {
			return s.fail(err)
		}
		zap.S().Infof("context: %s, url: %s", c.Name, c.CloudURL)
		s.context = c

		refreshed, err := auth.Refresh(cmd.Context(), c)
		if err != nil {
			return s.fail(err)
		}
		if refreshed {
			zap.S().Info("token refreshed")
			s.config.MarkDirty()
		}

		return fn(cmd.Context(), s, c)
	})
}

// remote run fn with operations against the registry of the selected context
func remote(cmd *cobra.Command, fn func(ctx context.Context, s *session, op *operation.Operations) int) error {
	return withContext(cmd, func(ctx context.Context, s *session, c *config.Context) int {
		return fn(ctx, s, operation.New(client.New(c)))
	})
}

// app resolve application from --app, DRG_APP or the context default
func (s *session) app() (string, error) {
	return s.context.App(viper.GetString(keyApp))
}

// fail print error and returns the exit code
func (s *session) fail(err error) int { return outcome.Print[any](s.printer, nil, err, nil) }
