package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"drg/auth"
	"drg/client"
	"drg/config"
	"drg/outcome"
	"drg/pkg/helper"
)

const defaultContextName = "default"

func init() {
	var accessToken string
	var keepCurrent bool
	var port int

	cmd := &cobra.Command{
		Use:   "login url",
		Short: "log in to a drogue cloud instance and store the context",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return local(cmd, true, func(s *session) int {
				c, err := login(cmd, strings.TrimRight(args[0], "/"), accessToken, port)
				if err != nil {
					return s.fail(err)
				}

				if existing, err := s.config.Get(c.Name); err == nil {
					c.DefaultApp = existing.DefaultApp
					c.DefaultAlgo = existing.DefaultAlgo
				}

				s.config.AddOrReplace(c)
				if !keepCurrent {
					s.config.SetActive(c.Name)
				}

				o := outcome.WithMessage[any]("Logged in to %s as %s, context %q", c.CloudURL, auth.Username(c.Credential), c.Name)
				return outcome.Print(s.printer, o, nil, nil)
			})
		},
	}

	cmd.Flags().StringVar(&accessToken, "access-token", "", "log in with access token user:token; the token is prompted if omitted")
	cmd.Flags().BoolVar(&keepCurrent, "keep-current", false, "do not switch the active context")
	cmd.Flags().IntVar(&port, "port", 0, "port of the local callback server for browser login")

	rootCmd.AddCommand(cmd)
}

// login discover endpoints of the instance and obtain credential
func login(cmd *cobra.Command, url, accessToken string, port int) (*config.Context, error) {
	ctx := cmd.Context()

	if err := helper.ValidateVar(url, "required,url"); err != nil {
		return nil, outcome.InvalidInput("invalid url %q", url)
	}

	endpoints, err := client.Discover(ctx, url)
	if err != nil {
		return nil, err
	}

	oidc, err := client.DiscoverOpenID(ctx, endpoints.IssuerURL)
	if err != nil {
		return nil, err
	}
	zap.S().Infof("auth: %s, token: %s", oidc.AuthorizationEndpoint, oidc.TokenEndpoint)

	var cred config.Credential
	if accessToken != "" {
		if cred, err = auth.ParseAccessToken(accessToken, cmd.InOrStdin(), cmd.ErrOrStderr()); err != nil {
			return nil, outcome.InvalidInput("%s", err)
		}
	} else {
		if cred, err = browserLogin(ctx, cmd, oidc, port); err != nil {
			return nil, err
		}
	}

	name := viper.GetString(keyContext)
	if name == "" {
		name = defaultContextName
	}

	c := &config.Context{
		Name:        name,
		CloudURL:    url,
		AuthURL:     oidc.AuthorizationEndpoint,
		TokenURL:    oidc.TokenEndpoint,
		RegistryURL: strings.TrimRight(endpoints.RegistryURL(url), "/"),
	}
	c.SetCredential(cred)

	if err := c.Validate(); err != nil {
		return nil, err
	}

	return c, nil
}

func browserLogin(ctx context.Context, cmd *cobra.Command, oidc *client.OpenIDConfiguration, port int) (config.Credential, error) {
	tok, err := auth.Login(ctx, oidc.AuthorizationEndpoint, oidc.TokenEndpoint, &auth.LoginOptions{
		Port: port,
		Open: func(url string) error {
			_, err := fmt.Fprintf(cmd.ErrOrStderr(), "Open the following URL in your browser to log in:\n\n  %s\n\n", url)
			return err
		},
	})
	if err != nil {
		return nil, err
	}

	return tok, nil
}

func init() {
	var showToken, showURL bool

	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "show the user and the instance of the context",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContext(cmd, func(ctx context.Context, s *session, c *config.Context) int {
				switch {
				case showToken:
					return outcome.Print(s.printer, outcome.WithMessage[any]("%s", c.Credential.Token()), nil, nil)
				case showURL:
					return outcome.Print(s.printer, outcome.WithMessage[any]("%s", c.CloudURL), nil, nil)
				}

				return outcome.Print(s.printer, outcome.WithMessage[any]("You are logged in to %s as %s", c.CloudURL, auth.Username(c.Credential)), nil, nil)
			})
		},
	}

	cmd.Flags().BoolVar(&showToken, "token", false, "print the bearer token of the context")
	cmd.Flags().BoolVar(&showURL, "url", false, "print the url of the instance")

	rootCmd.AddCommand(cmd)
}
