package configmanager

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/devantler-tech/testbed/pkg/apis/testbed/v1alpha1"
	"github.com/devantler-tech/testbed/pkg/utils/notify"
	"github.com/sirupsen/logrus"
)

const maxPort = 65535

// ErrInvalidSettings is returned when loaded settings fail validation.
var ErrInvalidSettings = errors.New("invalid settings")

// Validate reports every problem in settings.
func Validate(settings *Settings) []string {
	var problems []string

	if !settings.Backend.IsValid() {
		problems = append(problems, fmt.Sprintf(
			"backend: %q is not supported (valid options: %s)",
			settings.Backend, strings.Join(settings.Backend.ValidValues(), ", "),
		))
	}

	if settings.Workers < 0 {
		problems = append(problems, fmt.Sprintf("workers: must not be negative, got %d", settings.Workers))
	}

	if settings.Timeouts.Exec <= 0 {
		problems = append(problems, "timeouts.exec: must be positive")
	}

	if settings.Timeouts.Address <= 0 {
		problems = append(problems, "timeouts.address: must be positive")
	}

	delays := []struct {
		key   string
		value time.Duration
	}{
		{"timeouts.settle", settings.Timeouts.Settle},
		{"timeouts.create_wait", settings.Timeouts.CreateWait},
		{"timeouts.instance_delay", settings.Timeouts.InstanceDelay},
	}

	for _, delay := range delays {
		if delay.value < 0 {
			problems = append(problems, delay.key+": must not be negative")
		}
	}

	if settings.SSH.Port < 1 || settings.SSH.Port > maxPort {
		problems = append(problems, fmt.Sprintf("ssh.port: %d is out of range", settings.SSH.Port))
	}

	if settings.Backend == v1alpha1.BackendDocker && settings.Docker.Image == "" {
		problems = append(problems, "docker.image: required for the Docker backend")
	}

	_, err := logrus.ParseLevel(settings.Log.Level)
	if err != nil {
		problems = append(problems, fmt.Sprintf("log.level: %q is not a log level", settings.Log.Level))
	}

	if settings.Log.Format != v1alpha1.LogFormatText && settings.Log.Format != v1alpha1.LogFormatJSON {
		problems = append(problems, fmt.Sprintf("log.format: %q is not text or json", settings.Log.Format))
	}

	return problems
}

func (m *ConfigManager) validateSettings(settings *Settings) error {
	problems := Validate(settings)
	if len(problems) == 0 {
		return nil
	}

	for _, problem := range problems {
		notify.WriteMessage(notify.Message{
			Type:    notify.ErrorType,
			Content: "%s",
			Args:    []any{problem},
			Writer:  m.Writer,
		})
	}

	return fmt.Errorf("%w: %d error(s) found", ErrInvalidSettings, len(problems))
}
