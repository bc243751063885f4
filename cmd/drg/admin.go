package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"drg/client"
	"drg/operation"
	"drg/outcome"
)

// version is set by -ldflags "-X main.version=..."
var version = "dev"

func init() {
	cmd := &cobra.Command{
		Use:   "transfer",
		Short: "transfer ownership of the application",
	}

	transfer := func(use, short string, nargs int, fn func(ctx context.Context, op *operation.Operations, app string, args []string) (*operation.MessageOutcome, error)) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			Args:  cobra.ExactArgs(nargs),
			RunE: func(cmd *cobra.Command, args []string) error {
				return remote(cmd, func(ctx context.Context, s *session, op *operation.Operations) int {
					app, err := s.app()
					if err != nil {
						return s.fail(err)
					}

					o, err := fn(ctx, op, app, args)
					return outcome.Print(s.printer, o, err, nil)
				})
			},
		}
	}

	cmd.AddCommand(
		transfer("init user", "offer the application to the user", 1, func(ctx context.Context, op *operation.Operations, app string, args []string) (*operation.MessageOutcome, error) {
			return op.TransferInit(ctx, app, args[0])
		}),
		transfer("accept", "accept the offered application", 0, func(ctx context.Context, op *operation.Operations, app string, args []string) (*operation.MessageOutcome, error) {
			return op.TransferAccept(ctx, app)
		}),
		transfer("cancel", "cancel the pending transfer", 0, func(ctx context.Context, op *operation.Operations, app string, args []string) (*operation.MessageOutcome, error) {
			return op.TransferCancel(ctx, app)
		}),
	)

	rootCmd.AddCommand(cmd)
}

func init() {
	var payload string

	cmd := &cobra.Command{
		Use:   "command device command",
		Short: "send a command to the device",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return remote(cmd, func(ctx context.Context, s *session, op *operation.Operations) int {
				app, err := s.app()
				if err != nil {
					return s.fail(err)
				}

				o, err := op.SendCommand(ctx, app, args[0], args[1], []byte(payload))
				return outcome.Print(s.printer, o, err, nil)
			})
		},
	}

	cmd.Flags().StringVar(&payload, "payload", "", "json payload of the command")

	rootCmd.AddCommand(cmd)
}

func init() {
	var count int

	cmd := &cobra.Command{
		Use:   "stream",
		Short: "stream events of the application",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return remote(cmd, func(ctx context.Context, s *session, op *operation.Operations) int {
				app, err := s.app()
				if err != nil {
					return s.fail(err)
				}

				n, err := op.Stream(ctx, app, count, cmd.OutOrStdout())
				zap.S().Infof("%d events received", n)
				return outcome.Print[any](s.printer, nil, err, nil)
			})
		},
	}

	cmd.Flags().IntVarP(&count, "count", "n", 0, "exit after count events, 0 for unlimited")

	rootCmd.AddCommand(cmd)
}

// Versions client version and the version of the instance of the context
type Versions struct {
	Client string `json:"client"`
	Server string `json:"server,omitempty"`
}

func (v *Versions) String() string {
	if v.Server == "" {
		return "drg " + v.Client
	}
	return fmt.Sprintf("drg %s\nserver %s", v.Client, v.Server)
}

func init() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "show client version, and server version if a context exists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return local(cmd, true, func(s *session) int {
				v := &Versions{Client: version}

				if c, err := s.config.Resolve(viper.GetString(keyContext)); err == nil {
					server, err := client.ServerVersion(cmd.Context(), c.CloudURL)
					if err != nil {
						return s.fail(err)
					}
					v.Server = server.Version
				}

				return outcome.Print(s.printer, outcome.WithData(v), nil, (*Versions).String)
			})
		},
	})
}
