package configmanager

import (
	"time"

	"github.com/devantler-tech/testbed/pkg/apis/testbed/v1alpha1"
)

// Settings is the decoded content of testbed.yaml.
type Settings struct {
	WorkspaceDir string               `mapstructure:"workspace_dir"`
	BaseDir      string               `mapstructure:"base_dir"`
	NodeGraph    string               `mapstructure:"node_graph"`
	CatalogDir   string               `mapstructure:"catalog_dir"`
	TemplateDir  string               `mapstructure:"template_dir"`
	ConfigRoot   string               `mapstructure:"config_root"`
	LogsDir      string               `mapstructure:"logs_dir"`
	Backend      v1alpha1.BackendKind `mapstructure:"backend"`
	// Workers bounds parallel provisioning. Zero picks a default from the CPU count.
	Workers  int      `mapstructure:"workers"`
	Timeouts Timeouts `mapstructure:"timeouts"`
	SSH      SSH      `mapstructure:"ssh"`
	Defaults Defaults `mapstructure:"defaults"`
	Docker   Docker   `mapstructure:"docker"`
	PKI      PKI      `mapstructure:"pki"`
	Log      Log      `mapstructure:"log"`
}

// Timeouts bound remote work and space out lifecycle steps.
type Timeouts struct {
	// Exec bounds a single command on a node.
	Exec time.Duration `mapstructure:"exec"`
	// Settle is the pause after a multipass launch before the hostname is set.
	Settle time.Duration `mapstructure:"settle"`
	// CreateWait is the pause after a node is created.
	CreateWait time.Duration `mapstructure:"create_wait"`
	// Address bounds the wait for a new node's address.
	Address time.Duration `mapstructure:"address"`
	// InstanceDelay is the pause before instance commands run.
	InstanceDelay time.Duration `mapstructure:"instance_delay"`
}

// SSH holds defaults for nodes reached over a remote shell.
type SSH struct {
	Username     string `mapstructure:"username"`
	Port         int    `mapstructure:"port"`
	IdentityFile string `mapstructure:"identity_file"`
}

// Defaults apply to nodes that leave the matching field empty.
type Defaults struct {
	ConfigRoot string `mapstructure:"config_root"`
}

// Docker configures the docker backend.
type Docker struct {
	Image   string `mapstructure:"image"`
	Network string `mapstructure:"network"`
	// PullRetryWait is the first backoff after a transient image pull failure.
	PullRetryWait time.Duration `mapstructure:"pull_retry_wait"`
}

// PKI configures the development certificate authority.
type PKI struct {
	Dir          string `mapstructure:"dir"`
	CAName       string `mapstructure:"ca_name"`
	TrustDir     string `mapstructure:"trust_dir"`
	TrustCommand string `mapstructure:"trust_command"`
}

// Log configures diagnostic logging.
type Log struct {
	Level  string             `mapstructure:"level"`
	Format v1alpha1.LogFormat `mapstructure:"format"`
}

// Default values.
const (
	DefaultNodeGraph     = "nodes.json"
	DefaultCatalogDir    = "apps"
	DefaultTemplateDir   = "templates"
	DefaultLogsDir       = "/tmp/testbed-logs"
	DefaultExecTimeout   = 300 * time.Second
	DefaultSettle        = 3 * time.Second
	DefaultCreateWait    = 5 * time.Second
	DefaultAddress       = 60 * time.Second
	DefaultSSHUsername   = "root"
	DefaultSSHPort       = 22
	DefaultIdentityFile  = "~/.ssh/id_rsa"
	DefaultNodeConfigDir = "/opt/testbed/etc"
	DefaultDockerImage   = "ubuntu:24.04"
	DefaultPullRetryWait = time.Second
	DefaultPKIDir        = "pki"
	DefaultCAName        = "testbed-dev-ca"
	DefaultTrustDir      = "/usr/local/share/ca-certificates"
	DefaultTrustCommand  = "update-ca-certificates"
	DefaultLogLevel      = "warn"
)

// defaults are registered with viper so every key is known to env lookup.
func defaults() map[string]any {
	return map[string]any{
		"workspace_dir":           ".",
		"base_dir":                ".",
		"node_graph":              DefaultNodeGraph,
		"catalog_dir":             DefaultCatalogDir,
		"template_dir":            DefaultTemplateDir,
		"config_root":             ".",
		"logs_dir":                DefaultLogsDir,
		"backend":                 string(v1alpha1.BackendMultipass),
		"workers":                 0,
		"timeouts.exec":           DefaultExecTimeout.String(),
		"timeouts.settle":         DefaultSettle.String(),
		"timeouts.create_wait":    DefaultCreateWait.String(),
		"timeouts.address":        DefaultAddress.String(),
		"timeouts.instance_delay": "0s",
		"ssh.username":            DefaultSSHUsername,
		"ssh.port":                DefaultSSHPort,
		"ssh.identity_file":       DefaultIdentityFile,
		"defaults.config_root":    DefaultNodeConfigDir,
		"docker.image":            DefaultDockerImage,
		"docker.network":          "",
		"docker.pull_retry_wait":  DefaultPullRetryWait.String(),
		"pki.dir":                 DefaultPKIDir,
		"pki.ca_name":             DefaultCAName,
		"pki.trust_dir":           DefaultTrustDir,
		"pki.trust_command":       DefaultTrustCommand,
		"log.level":               DefaultLogLevel,
		"log.format":              string(v1alpha1.LogFormatText),
	}
}
