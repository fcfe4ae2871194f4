package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/devantler-tech/testbed/pkg/cli/helpers"
	runtime "github.com/devantler-tech/testbed/pkg/di"
	configmanager "github.com/devantler-tech/testbed/pkg/io/config-manager"
	testbedconfig "github.com/devantler-tech/testbed/pkg/io/config-manager/testbed"
	"github.com/devantler-tech/testbed/pkg/svc/backend/factory"
	"github.com/devantler-tech/testbed/pkg/svc/instance"
	"github.com/devantler-tech/testbed/pkg/svc/pki"
	"github.com/devantler-tech/testbed/pkg/svc/remote/ssh"
	"github.com/devantler-tech/testbed/pkg/svc/workspace"
	"github.com/devantler-tech/testbed/pkg/utils/logging"
	"github.com/devantler-tech/testbed/pkg/utils/timer"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// ErrMissingBackendFactory indicates that the runtime resolved a nil backend factory.
var ErrMissingBackendFactory = errors.New("missing backend factory dependency")

// Session is what a workspace command works with.
type Session struct {
	Settings  *testbedconfig.Settings
	Workspace *workspace.Workspace
	Authority pki.Authority
	Logger    logrus.FieldLogger
	// Timer measures the command. It is always set.
	Timer timer.Timer
	// OutputTimer is Timer when --timing is set, otherwise nil.
	OutputTimer timer.Timer
}

// LoadSettings loads the settings for cmd from the workspace file, the
// environment and its persistent flags.
func LoadSettings(
	cmd *cobra.Command,
	tmr timer.Timer,
	options configmanager.LoadOptions,
) (*testbedconfig.Settings, error) {
	manager := testbedconfig.NewConfigManager(cmd.OutOrStdout(), helpers.StringFlag(cmd, helpers.ConfigFlagName))

	err := manager.BindFlags(cmd.Flags())
	if err != nil {
		return nil, fmt.Errorf("failed to bind flags: %w", err)
	}

	options.Timer = tmr

	settings, err := manager.Load(options)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	return settings, nil
}

// NewLogger builds the diagnostic logger described by settings. Logs go to
// the process stderr; command output streams carry operator messages.
func NewLogger(settings *testbedconfig.Settings) (logrus.FieldLogger, error) {
	logger, err := logging.New(os.Stderr, logging.Options{
		Level:  settings.Log.Level,
		Format: settings.Log.Format,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to configure logging: %w", err)
	}

	return logger, nil
}

// NewAuthority returns the certificate authority described by settings.
func NewAuthority(settings *testbedconfig.Settings) *pki.FileAuthority {
	return pki.NewFileAuthority(settings.PKI.Dir, settings.PKI.CAName)
}

// OpenSession creates the backend and opens the workspace.
func OpenSession(
	ctx context.Context,
	cmd *cobra.Command,
	injector runtime.Injector,
	settings *testbedconfig.Settings,
	tmr timer.Timer,
	outputTimer timer.Timer,
) (*Session, error) {
	logger, err := NewLogger(settings)
	if err != nil {
		return nil, err
	}

	backendFactory, err := runtime.ResolveBackendFactory(injector)
	if err != nil {
		return nil, err //nolint:wrapcheck // resolver errors name the dependency
	}

	if backendFactory == nil {
		return nil, ErrMissingBackendFactory
	}

	cmdRunner, err := runtime.ResolveCommandRunner(injector)
	if err != nil {
		return nil, err //nolint:wrapcheck // resolver errors name the dependency
	}

	nodeBackend, err := backendFactory.Create(ctx, BackendOptions(settings, logger))
	if err != nil {
		return nil, fmt.Errorf("failed to open %s backend: %w", settings.Backend, err)
	}

	authority := NewAuthority(settings)

	ws, err := workspace.Open(WorkspaceConfig(settings, outputTimer), workspace.Services{
		Backend:   nodeBackend,
		Shell:     ssh.NewTransport(cmdRunner, SSHOptions(settings)),
		Runner:    cmdRunner,
		Authority: authority,
		Output:    cmd.OutOrStdout(),
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open workspace %s: %w", settings.WorkspaceDir, err)
	}

	return &Session{
		Settings:    settings,
		Workspace:   ws,
		Authority:   authority,
		Logger:      logger,
		Timer:       tmr,
		OutputTimer: outputTimer,
	}, nil
}

// WorkspaceConfig maps settings onto a workspace configuration.
func WorkspaceConfig(settings *testbedconfig.Settings, outputTimer timer.Timer) workspace.Config {
	return workspace.Config{
		WorkspaceDir: settings.WorkspaceDir,
		BaseDir:      settings.BaseDir,
		NodeGraph:    settings.NodeGraph,
		CatalogDir:   settings.CatalogDir,
		ConfigRoot:   settings.ConfigRoot,
		Instance: instance.Options{
			DefaultConfigRoot: settings.Defaults.ConfigRoot,
			SettleDelay:       settings.Timeouts.CreateWait,
			AddressTimeout:    settings.Timeouts.Address,
			InstanceDelay:     settings.Timeouts.InstanceDelay,
			Workers:           settings.Workers,
			TrustDir:          settings.PKI.TrustDir,
			TrustCommand:      settings.PKI.TrustCommand,
			Timer:             outputTimer,
		},
	}
}

// BackendOptions maps settings onto backend factory options.
func BackendOptions(settings *testbedconfig.Settings, logger logrus.FieldLogger) factory.Options {
	return factory.Options{
		Kind:          settings.Backend,
		TemplateDir:   settings.TemplateDir,
		ExecTimeout:   settings.Timeouts.Exec,
		SettleDelay:   settings.Timeouts.Settle,
		Image:         settings.Docker.Image,
		Network:       settings.Docker.Network,
		PullRetryWait: settings.Docker.PullRetryWait,
		Logger:        logger,
	}
}

// SSHOptions maps settings onto remote-shell defaults.
func SSHOptions(settings *testbedconfig.Settings) ssh.Options {
	return ssh.Options{
		Port:         settings.SSH.Port,
		Username:     settings.SSH.Username,
		IdentityFile: settings.SSH.IdentityFile,
		Timeout:      settings.Timeouts.Exec,
	}
}
