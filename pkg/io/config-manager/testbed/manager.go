package configmanager

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/devantler-tech/testbed/pkg/fsutil"
	configmanagerinterface "github.com/devantler-tech/testbed/pkg/io/config-manager"
	"github.com/devantler-tech/testbed/pkg/utils/envvar"
	"github.com/devantler-tech/testbed/pkg/utils/notify"
	"github.com/devantler-tech/testbed/pkg/utils/timer"
	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// EnvPrefix prefixes every environment variable read as a setting.
	EnvPrefix = "TESTBED"
	// ConfigName is the settings file name searched for in the workspace.
	ConfigName = "testbed"
)

// flagKeys maps persistent flag names to setting keys.
var flagKeys = map[string]string{
	"workspace": "workspace_dir",
	"backend":   "backend",
	"log-level": "log.level",
}

// ConfigManager loads Settings for one invocation.
type ConfigManager struct {
	Viper *viper.Viper
	// Settings holds the loaded settings after a successful Load.
	Settings *Settings
	// Writer receives loading notifications.
	Writer io.Writer

	configFile      string
	configLoaded    bool
	configFileFound bool
}

var _ configmanagerinterface.ConfigManager[Settings] = (*ConfigManager)(nil)

// NewConfigManager creates a manager. An empty configFile searches the
// workspace for testbed.yaml; a non-empty one must exist.
func NewConfigManager(writer io.Writer, configFile string) *ConfigManager {
	return &ConfigManager{
		Viper:      InitializeViper(),
		Writer:     writer,
		configFile: configFile,
	}
}

// InitializeViper creates a viper instance with defaults and TESTBED_*
// environment lookup.
func InitializeViper() *viper.Viper {
	viperInstance := viper.New()

	for key, value := range defaults() {
		viperInstance.SetDefault(key, value)
	}

	viperInstance.SetEnvPrefix(EnvPrefix)
	viperInstance.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viperInstance.AutomaticEnv()

	return viperInstance
}

// BindFlags binds the persistent flags present in flags to their settings.
func (m *ConfigManager) BindFlags(flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		flag := flags.Lookup(name)
		if flag == nil {
			continue
		}

		err := m.Viper.BindPFlag(key, flag)
		if err != nil {
			return fmt.Errorf("bind --%s: %w", name, err)
		}
	}

	return nil
}

// ConfigFileFound reports whether the last Load read a settings file.
func (m *ConfigManager) ConfigFileFound() bool {
	return m.configFileFound
}

// Load reads settings with priority defaults < file < environment < flags.
// Relative paths are resolved against the workspace directory.
func (m *ConfigManager) Load(opts configmanagerinterface.LoadOptions) (*Settings, error) {
	if !opts.Silent {
		m.notifyLoadingStart()
	}

	if m.configLoaded {
		if !opts.Silent {
			m.notifyConfigReused()
		}

		return m.Settings, nil
	}

	if !opts.IgnoreConfigFile {
		err := m.readConfig(opts.Silent)
		if err != nil {
			return nil, err
		}
	}

	settings := &Settings{}

	err := m.Viper.Unmarshal(settings, func(dc *mapstructure.DecoderConfig) {
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
			enumDecodeHook(),
		)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to decode settings: %w", err)
	}

	err = resolvePaths(settings)
	if err != nil {
		return nil, err
	}

	if !opts.SkipValidation {
		err = m.validateSettings(settings)
		if err != nil {
			return nil, err
		}
	}

	if !opts.Silent {
		m.notifyLoadingComplete(opts.Timer)
	}

	m.Settings = settings
	m.configLoaded = true

	return settings, nil
}

func (m *ConfigManager) readConfig(silent bool) error {
	if m.configFile != "" {
		path, err := fsutil.ExpandHomePath(envvar.Expand(m.configFile))
		if err != nil {
			return fmt.Errorf("resolve config file: %w", err)
		}

		m.Viper.SetConfigFile(path)
	} else {
		workspace, err := fsutil.ExpandHomePath(envvar.Expand(m.Viper.GetString("workspace_dir")))
		if err != nil {
			return fmt.Errorf("resolve workspace: %w", err)
		}

		m.Viper.SetConfigName(ConfigName)
		m.Viper.AddConfigPath(workspace)
	}

	err := m.Viper.ReadInConfig()
	if err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("failed to read config file: %w", err)
		}

		m.configFileFound = false
		if !silent {
			m.notifyUsingDefaults()
		}

		return nil
	}

	m.configFileFound = true
	if !silent {
		m.notifyConfigFound()
	}

	return nil
}

// resolvePaths makes every host path absolute. Node-side paths only get
// placeholder expansion.
func resolvePaths(settings *Settings) error {
	workspace, err := fsutil.ExpandHomePath(envvar.Expand(settings.WorkspaceDir))
	if err != nil {
		return fmt.Errorf("resolve workspace: %w", err)
	}

	settings.WorkspaceDir = workspace

	hostPaths := []*string{
		&settings.BaseDir,
		&settings.NodeGraph,
		&settings.CatalogDir,
		&settings.TemplateDir,
		&settings.ConfigRoot,
		&settings.LogsDir,
		&settings.PKI.Dir,
		&settings.SSH.IdentityFile,
	}

	for _, path := range hostPaths {
		resolved, err := fsutil.ResolvePath(workspace, *path)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", *path, err)
		}

		*path = resolved
	}

	settings.Defaults.ConfigRoot = envvar.Expand(settings.Defaults.ConfigRoot)
	settings.PKI.TrustDir = envvar.Expand(settings.PKI.TrustDir)

	return nil
}

func (m *ConfigManager) notifyLoadingStart() {
	notify.WriteMessage(notify.Message{
		Type:    notify.TitleType,
		Content: "Load config...",
		Emoji:   "⏳",
		Writer:  m.Writer,
	})
}

func (m *ConfigManager) notifyConfigReused() {
	notify.WriteMessage(notify.Message{
		Type:    notify.SuccessType,
		Content: "config already loaded, reusing existing config",
		Writer:  m.Writer,
	})
}

func (m *ConfigManager) notifyUsingDefaults() {
	notify.WriteMessage(notify.Message{
		Type:    notify.ActivityType,
		Content: "using default config",
		Writer:  m.Writer,
	})
}

func (m *ConfigManager) notifyConfigFound() {
	notify.WriteMessage(notify.Message{
		Type:    notify.ActivityType,
		Content: "'%s' found",
		Args:    []any{m.Viper.ConfigFileUsed()},
		Writer:  m.Writer,
	})
}

func (m *ConfigManager) notifyLoadingComplete(tmr timer.Timer) {
	notify.WriteMessage(notify.Message{
		Type:    notify.SuccessType,
		Content: "config loaded",
		Timer:   tmr,
		Writer:  m.Writer,
	})
}
