// Package cert provides the certificate authority commands.
package cert

import (
	"fmt"

	"github.com/devantler-tech/testbed/pkg/cli/helpers"
	"github.com/devantler-tech/testbed/pkg/cli/lifecycle"
	runtime "github.com/devantler-tech/testbed/pkg/di"
	"github.com/devantler-tech/testbed/pkg/fsutil"
	configmanager "github.com/devantler-tech/testbed/pkg/io/config-manager"
	testbedconfig "github.com/devantler-tech/testbed/pkg/io/config-manager/testbed"
	"github.com/devantler-tech/testbed/pkg/svc/pki"
	"github.com/devantler-tech/testbed/pkg/utils/notify"
	"github.com/devantler-tech/testbed/pkg/utils/timer"
	"github.com/spf13/cobra"
)

// NewCertCmd creates the parent cert command.
func NewCertCmd(runtimeContainer *runtime.Runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "cert",
		Short:        "Manage the development certificate authority",
		Args:         cobra.NoArgs,
		RunE:         handleCertRunE,
		SilenceUsage: true,
	}

	cmd.AddCommand(NewCACmd(runtimeContainer))
	cmd.AddCommand(NewSignCmd(runtimeContainer))

	return cmd
}

//nolint:gochecknoglobals // Injected for testability to simulate help failures.
var helpRunner = func(cmd *cobra.Command) error {
	return cmd.Help()
}

func handleCertRunE(cmd *cobra.Command, _ []string) error {
	err := helpRunner(cmd)
	if err != nil {
		return fmt.Errorf("displaying cert command help: %w", err)
	}

	return nil
}

// NewCACmd creates the cert ca command.
func NewCACmd(runtimeContainer *runtime.Runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "ca",
		Short:        "Create the certificate authority if it does not exist",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
	}

	cmd.RunE = withAuthority(runtimeContainer, func(cmd *cobra.Command, authority pki.Authority, tmr timer.Timer) error {
		lifecycle.ShowTitle(cmd, "🔐", "Ensure certificate authority...")

		ca, err := authority.EnsureCA(cmd.Context())
		if err != nil {
			return err //nolint:wrapcheck // pki errors name the files
		}

		if ca.Created {
			notify.SuccessWithTimerf(cmd.OutOrStdout(), tmr, "created CA %s at %s", ca.Name, ca.CertPath)
		} else {
			notify.SuccessWithTimerf(cmd.OutOrStdout(), tmr, "CA %s already exists at %s", ca.Name, ca.CertPath)
		}

		return nil
	})

	return cmd
}

// NewSignCmd creates the cert sign command.
func NewSignCmd(runtimeContainer *runtime.Runtime) *cobra.Command {
	var (
		hosts  []string
		ips    []string
		output string
	)

	cmd := &cobra.Command{
		Use:          "sign",
		Short:        "Sign a server certificate with the certificate authority",
		Long:         `Sign a server certificate for the given hosts. The first host is the common name.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
	}

	cmd.RunE = withAuthority(runtimeContainer, func(cmd *cobra.Command, authority pki.Authority, tmr timer.Timer) error {
		lifecycle.ShowTitle(cmd, "🔏", "Sign certificate...")

		cert, err := authority.Sign(cmd.Context(), pki.CertRequest{Hosts: hosts, IPs: ips, OutputDir: output})
		if err != nil {
			return err //nolint:wrapcheck // pki errors name the host
		}

		notify.Generatef(cmd.OutOrStdout(), "%s", cert.CertPath)
		notify.Generatef(cmd.OutOrStdout(), "%s", cert.KeyPath)
		notify.SuccessWithTimerf(cmd.OutOrStdout(), tmr, "signed certificate for %s", hosts[0])

		return nil
	})

	cmd.Flags().StringSliceVar(&hosts, "host", nil, "DNS name to include (repeatable)")
	cmd.Flags().StringSliceVar(&ips, "ip", nil, "IP address to include (repeatable)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Directory for the certificate and key (default pki.dir)")
	_ = cmd.MarkFlagRequired("host")

	return cmd
}

// withAuthority loads settings without requiring a node graph and hands the
// configured authority to handler.
func withAuthority(
	runtimeContainer *runtime.Runtime,
	handler func(cmd *cobra.Command, authority pki.Authority, tmr timer.Timer) error,
) func(*cobra.Command, []string) error {
	return runtime.RunEWithRuntime(
		runtimeContainer,
		runtime.WithTimer(func(cmd *cobra.Command, _ runtime.Injector, tmr timer.Timer) error {
			tmr.Start()

			outputTimer := helpers.MaybeTimer(cmd, tmr)

			settings, err := lifecycle.LoadSettings(cmd, outputTimer, configmanager.LoadOptions{
				Silent:         true,
				SkipValidation: true,
			})
			if err != nil {
				return err
			}

			err = resolveOutput(cmd, settings)
			if err != nil {
				return err
			}

			return handler(cmd, lifecycle.NewAuthority(settings), outputTimer)
		}),
	)
}

// resolveOutput makes a relative --output relative to the workspace.
func resolveOutput(cmd *cobra.Command, settings *testbedconfig.Settings) error {
	flag := cmd.Flags().Lookup("output")
	if flag == nil || flag.Value.String() == "" {
		return nil
	}

	resolved, err := fsutil.ResolvePath(settings.WorkspaceDir, flag.Value.String())
	if err != nil {
		return err //nolint:wrapcheck // names the path
	}

	return flag.Value.Set(resolved) //nolint:wrapcheck // string flags do not fail
}
