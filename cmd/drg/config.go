package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"drg/config"
	"drg/operation"
	"drg/outcome"
)

var configCmd *cobra.Command

func init() {
	configCmd = &cobra.Command{
		Use:   "config",
		Short: "manage contexts of the config file",
	}
	rootCmd.AddCommand(configCmd)
}

func init() {
	var active bool

	configCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "list contexts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return local(cmd, false, func(s *session) int {
				return outcome.Print(s.printer, operation.ListContexts(s.config), nil, prettyContexts)
			})
		},
	})

	show := &cobra.Command{
		Use:   "show [name]",
		Short: "show a context, the active context without name",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return local(cmd, false, func(s *session) int {
				name := viper.GetString(keyContext)
				if len(args) > 0 && !active {
					name = args[0]
				}

				o, err := operation.ShowContext(s.config, name)
				return outcome.Print(s.printer, o, err, prettyYAML[*config.Context])
			})
		},
	}
	show.Flags().BoolVar(&active, "active", false, "show the active context")
	configCmd.AddCommand(show)

	configCmd.AddCommand(&cobra.Command{
		Use:   "use-context name",
		Short: "set the active context",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return local(cmd, false, func(s *session) int {
				o, err := operation.UseContext(s.config, args[0])
				return outcome.Print(s.printer, o, err, nil)
			})
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "delete name",
		Short: "delete a context",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return local(cmd, false, func(s *session) int {
				o, err := operation.DeleteContext(s.config, args[0])
				return outcome.Print(s.printer, o, err, nil)
			})
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "rename old new",
		Short: "rename a context",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return local(cmd, false, func(s *session) int {
				o, err := operation.RenameContext(s.config, args[0], args[1])
				return outcome.Print(s.printer, o, err, nil)
			})
		},
	})

	configCmd.AddCommand(setDefaultAppCmd("set-default-app app"), setDefaultAlgoCmd("set-default-algo algorithm"))
}

// selected resolve the context from --context or the active context; no token refresh needed
func selected(cmd *cobra.Command, fn func(s *session, c *config.Context) int) error {
	return local(cmd, false, func(s *session) int {
		c, err := s.config.Resolve(viper.GetString(keyContext))
		if err != nil {
			return s.fail(err)
		}
		return fn(s, c)
	})
}

func setDefaultAppCmd(use string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: "set the default application of the context",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return selected(cmd, func(s *session, c *config.Context) int {
				return outcome.Print(s.printer, operation.SetDefaultApp(s.config, c, args[0]), nil, nil)
			})
		},
	}
}

func setDefaultAlgoCmd(use string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: "set the default signing algorithm of the context",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return selected(cmd, func(s *session, c *config.Context) int {
				o, err := operation.SetDefaultAlgo(s.config, c, args[0])
				return outcome.Print(s.printer, o, err, nil)
			})
		},
	}
}

func init() {
	cmd := &cobra.Command{
		Use:   "set",
		Short: "set defaults of the context or the active context",
	}

	cmd.AddCommand(setDefaultAppCmd("default-app app"), setDefaultAlgoCmd("default-algo algorithm"))
	cmd.AddCommand(&cobra.Command{
		Use:   "context name",
		Short: "set the active context",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return local(cmd, false, func(s *session) int {
				o, err := operation.UseContext(s.config, args[0])
				return outcome.Print(s.printer, o, err, nil)
			})
		},
	})

	rootCmd.AddCommand(cmd)
}
