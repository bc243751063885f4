package main

import (
	"context"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"drg/client/common"
	"drg/client/registry"
	"drg/operation"
	"drg/outcome"
)

// kindCommand parse kind of the first argument before the command is run
func kindCommand(cmd *cobra.Command, args []string, fn func(kind operation.Kind, name string) error) error {
	kind, err := operation.ParseKind(args[0])
	if err != nil {
		return exit(outcome.Print[any](newPrinter(cmd), nil, err, nil))
	}

	name := ""
	if len(args) > 1 {
		name = args[1]
	}

	return fn(kind, name)
}

func requireName(kind operation.Kind, name string) error {
	if name == "" {
		return outcome.InvalidInput("%s name is required", kind)
	}
	return nil
}

func unsupported(verb string, kind operation.Kind) error {
	return outcome.InvalidInput("%s is not supported for %s", verb, kind)
}

// target resolve application or device target; devices belong to the selected application
func (s *session) target(kind operation.Kind, name string) (*operation.Target, error) {
	if kind == operation.KindApp {
		return operation.App(name), nil
	}

	app, err := s.app()
	if err != nil {
		return nil, err
	}
	return operation.Device(app, name), nil
}

func parseSpec(spec string) (map[string]interface{}, error) {
	if spec == "" {
		return nil, nil
	}

	var m map[string]interface{}
	if err := yaml.Unmarshal([]byte(spec), &m); err != nil {
		return nil, outcome.InvalidInput("invalid spec: %s", err)
	}
	return m, nil
}

func parseLabels(labels []string) (map[string]string, error) {
	if len(labels) == 0 {
		return nil, nil
	}

	m := map[string]string{}
	for _, label := range labels {
		key, value, ok := strings.Cut(label, "=")
		if !ok || key == "" {
			return nil, outcome.InvalidInput("invalid label %q, must be key=value", label)
		}
		m[key] = value
	}
	return m, nil
}

func init() {
	var spec, role, description, caKey, caCert string
	var labels []string
	var req operation.CertRequest

	cmd := &cobra.Command{
		Use:   "create kind [name]",
		Short: "create app, device, member, token, app-cert or device-cert",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return kindCommand(cmd, args, func(kind operation.Kind, name string) error {
				return remote(cmd, func(ctx context.Context, s *session, op *operation.Operations) int {
					switch kind {
					case operation.KindApp, operation.KindDevice:
						o, err := createResource(ctx, s, op, kind, name, spec, labels)
						return outcome.Print(s.printer, o, err, nil)

					case operation.KindToken:
						o, err := op.CreateToken(ctx, description)
						return outcome.Print(s.printer, o, err, prettyCreatedToken)
					}

					app, err := s.app()
					if err != nil {
						return s.fail(err)
					}

					switch kind {
					case operation.KindMember:
						if err := requireName(kind, name); err != nil {
							return s.fail(err)
						}
						o, err := op.AddMember(ctx, app, name, registry.Role(role))
						return outcome.Print(s.printer, o, err, nil)

					case operation.KindAppCert:
						o, err := op.CreateAppCert(ctx, app, &req)
						return outcome.Print(s.printer, o, err, prettyIssuedCert)
					}

					if err := requireName(kind, name); err != nil {
						return s.fail(err)
					}
					o, err := op.CreateDeviceCert(ctx, app, name, caKey, caCert, &req)
					return outcome.Print(s.printer, o, err, prettyIssuedCert)
				})
			})
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&spec, "spec", "", "spec of app or device in json or yaml")
	flags.StringSliceVar(&labels, "label", nil, "label key=value of app or device")
	flags.StringVar(&role, "role", "reader", "role of member: admin, manager or reader")
	flags.StringVar(&description, "description", "", "description of token")
	flags.IntVar(&req.Days, "days", 0, "validity of certificate in days")
	flags.StringVar(&req.Algorithm, "algo", "", "key algorithm: ECDSA_P256, ECDSA_P384, ED25519 or RSA")
	flags.StringVar(&req.KeyInput, "key-input", "", "use the private key of the file instead of generating one")
	flags.StringVar(&req.CertOutput, "cert-output", "", "write certificate to the file")
	flags.StringVar(&req.KeyOutput, "key-output", "", "write generated private key to the file")
	flags.StringVar(&caKey, "ca-key", "", "private key of the application trust anchor")
	flags.StringVar(&caCert, "ca-cert", "", "certificate of the application trust anchor")

	rootCmd.AddCommand(cmd)
}

func createResource(ctx context.Context, s *session, op *operation.Operations, kind operation.Kind, name, spec string, labels []string) (*operation.ResourceOutcome, error) {
	if err := requireName(kind, name); err != nil {
		return nil, err
	}

	t, err := s.target(kind, name)
	if err != nil {
		return nil, err
	}

	specMap, err := parseSpec(spec)
	if err != nil {
		return nil, err
	}

	labelMap, err := parseLabels(labels)
	if err != nil {
		return nil, err
	}

	return op.Create(ctx, t, specMap, labelMap)
}

func init() {
	var selector string

	cmd := &cobra.Command{
		Use:   "get kind [name]",
		Short: "show app or device, list them without name; list members or tokens; show app-cert",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return kindCommand(cmd, args, func(kind operation.Kind, name string) error {
				return remote(cmd, func(ctx context.Context, s *session, op *operation.Operations) int {
					switch kind {
					case operation.KindApp, operation.KindDevice:
						if kind == operation.KindApp && name != "" {
							o, err := op.Get(ctx, operation.App(name))
							return outcome.Print(s.printer, o, err, prettyYAML[*common.Resource])
						}

						t, err := s.target(kind, name)
						if err != nil {
							return s.fail(err)
						}

						if name != "" {
							o, err := op.Get(ctx, t)
							return outcome.Print(s.printer, o, err, prettyYAML[*common.Resource])
						}

						o, err := op.List(ctx, kind, t.App, selector)
						return outcome.Print(s.printer, o, err, prettyResources(s.printer.Wide()))

					case operation.KindToken:
						o, err := op.ListTokens(ctx)
						return outcome.Print(s.printer, o, err, prettyTokens)

					case operation.KindDeviceCert:
						return s.fail(unsupported("get", kind))
					}

					app, err := s.app()
					if err != nil {
						return s.fail(err)
					}

					if kind == operation.KindMember {
						o, err := op.ListMembers(ctx, app)
						return outcome.Print(s.printer, o, err, prettyMembers)
					}

					o, err := op.GetAppCert(ctx, app)
					return outcome.Print(s.printer, o, err, prettyAnchors(s.printer.Wide()))
				})
			})
		},
	}

	cmd.Flags().StringVarP(&selector, "labels", "l", "", "label selector of listing, e.g. env=prod,!test")

	rootCmd.AddCommand(cmd)
}

func init() {
	var ignoreMissing bool

	cmd := &cobra.Command{
		Use:   "delete kind name",
		Short: "delete app, device, member or token",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return kindCommand(cmd, args, func(kind operation.Kind, name string) error {
				return remote(cmd, func(ctx context.Context, s *session, op *operation.Operations) int {
					switch kind {
					case operation.KindApp, operation.KindDevice:
						t, err := s.target(kind, name)
						if err != nil {
							return s.fail(err)
						}
						o, err := op.Delete(ctx, t, ignoreMissing)
						return outcome.Print(s.printer, o, err, nil)

					case operation.KindToken:
						o, err := op.DeleteToken(ctx, name)
						return outcome.Print(s.printer, o, err, nil)

					case operation.KindMember:
						app, err := s.app()
						if err != nil {
							return s.fail(err)
						}
						o, err := op.DeleteMember(ctx, app, name)
						return outcome.Print(s.printer, o, err, nil)
					}

					return s.fail(unsupported("delete", kind))
				})
			})
		},
	}

	cmd.Flags().BoolVar(&ignoreMissing, "ignore-missing", false, "succeed if app or device does not exist")

	rootCmd.AddCommand(cmd)
}

func init() {
	var filename, path, fragment, editor string

	cmd := &cobra.Command{
		Use:   "edit kind name",
		Short: "edit app or device in an editor, replace it with a file or merge a fragment",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return kindCommand(cmd, args, func(kind operation.Kind, name string) error {
				return remote(cmd, func(ctx context.Context, s *session, op *operation.Operations) int {
					if kind != operation.KindApp && kind != operation.KindDevice {
						return s.fail(unsupported("edit", kind))
					}

					t, err := s.target(kind, name)
					if err != nil {
						return s.fail(err)
					}

					edit := &operation.Edit{Path: path, Editor: editor}
					switch {
					case fragment != "":
						edit.Fragment = []byte(fragment)
					case filename != "":
						docs := operation.ReadDocuments([]string{filename}, cmd.InOrStdin())
						if len(docs) != 1 {
							return s.fail(outcome.InvalidInput("edit -f needs exactly one document, %s has %d", filename, len(docs)))
						}

						doc := docs[0]
						if doc.Err != nil {
							return s.fail(doc.Err)
						}
						edit.Replace = doc.Resource
					}

					o, err := op.Edit(ctx, t, edit)
					return outcome.Print(s.printer, o, err, nil)
				})
			})
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&filename, "filename", "f", "", "replace with the document of the file, - for stdin")
	flags.StringVar(&path, "path", "", "dot separated path where the fragment is merged, e.g. spec.credentials")
	flags.StringVar(&fragment, "fragment", "", "json or yaml fragment to merge")
	flags.StringVar(&editor, "editor", "", "editor command; DRG_EDITOR, VISUAL or EDITOR if empty")

	rootCmd.AddCommand(cmd)
}

func init() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "label kind name key=value|key- ...",
		Short: "add, change or remove labels of app or device",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return kindCommand(cmd, args, func(kind operation.Kind, name string) error {
				return remote(cmd, func(ctx context.Context, s *session, op *operation.Operations) int {
					if kind != operation.KindApp && kind != operation.KindDevice {
						return s.fail(unsupported("label", kind))
					}

					t, err := s.target(kind, name)
					if err != nil {
						return s.fail(err)
					}

					o, err := op.Label(ctx, t, args[2:])
					return outcome.Print(s.printer, o, err, nil)
				})
			})
		},
	})
}

func init() {
	var files []string

	cmd := &cobra.Command{
		Use:   "apply -f file|dir|- ...",
		Short: "create or update apps and devices to match the documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return remote(cmd, func(ctx context.Context, s *session, op *operation.Operations) int {
				docs := operation.ReadDocuments(files, cmd.InOrStdin())
				return s.printer.PrintAll(op.Apply(ctx, docs))
			})
		},
	}

	cmd.Flags().StringSliceVarP(&files, "filename", "f", nil, "file, directory or - for stdin; repeatable")
	cmd.MarkFlagRequired("filename")

	rootCmd.AddCommand(cmd)
}
