// Package configgen runs the external commands that produce a node's
// configuration files on the host.
package configgen

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/devantler-tech/testbed/pkg/apis/testbed/v1alpha1"
	"github.com/devantler-tech/testbed/pkg/svc/resolver"
	"github.com/devantler-tech/testbed/pkg/utils/logging"
	"github.com/devantler-tech/testbed/pkg/utils/runner"
	"github.com/sirupsen/logrus"
)

// DefaultOutputBase is the directory, relative to the config root, that
// holds per-node output when a directive names none.
const DefaultOutputBase = "node_configs"

const outputDirPerm = 0o750

var (
	// ErrGeneratorFailed is returned when a generator command fails.
	ErrGeneratorFailed = errors.New("config generator failed")
	// ErrInvalidDirective is returned for directives with neither or both of command and args.
	ErrInvalidDirective = errors.New("invalid config generator directive")
)

// Generator runs config generator directives from the configuration root.
type Generator struct {
	runner     runner.CommandRunner
	configRoot string
	logger     logrus.FieldLogger
}

// New creates a Generator. Commands run with configRoot as working directory.
func New(cmdRunner runner.CommandRunner, configRoot string, logger logrus.FieldLogger) *Generator {
	if logger == nil {
		logger = logging.Discard()
	}

	return &Generator{runner: cmdRunner, configRoot: configRoot, logger: logger}
}

// OutputDir returns the directory holding the configuration applied to node:
// the first directive's output directory. It reports false when the node has
// no generators.
func (g *Generator) OutputDir(node *v1alpha1.Node) (string, bool) {
	if len(node.ConfigGenerators) == 0 {
		return "", false
	}

	return g.outputDir(node, node.ConfigGenerators[0]), true
}

// Generate runs every directive of node in order. Commands and arguments are
// rendered against resCtx first. The first failure aborts.
func (g *Generator) Generate(ctx context.Context, node *v1alpha1.Node, resCtx *resolver.Context) error {
	for index, directive := range node.ConfigGenerators {
		err := g.run(ctx, node, index, directive, resCtx)
		if err != nil {
			return err
		}
	}

	return nil
}

func (g *Generator) run(
	ctx context.Context,
	node *v1alpha1.Node,
	index int,
	directive v1alpha1.ConfigGenerator,
	resCtx *resolver.Context,
) error {
	command, err := g.command(node, index, directive, resCtx)
	if err != nil {
		return err
	}

	outputDir := g.outputDir(node, directive)

	err = os.MkdirAll(outputDir, outputDirPerm)
	if err != nil {
		return fmt.Errorf("create output directory for %s: %w", node.Name, err)
	}

	logger := g.logger.WithFields(logrus.Fields{"node": node.Name, "stage": "configgen"})
	logger.Debugf("running %s", command)

	result, err := g.runner.Run(ctx, command)

	if result.Stdout != "" {
		logger.Debug(strings.TrimSpace(result.Stdout))
	}

	if result.Stderr != "" {
		logger.Debug(strings.TrimSpace(result.Stderr))
	}

	if err != nil {
		return fmt.Errorf("%w for %s (directive %d): %w", ErrGeneratorFailed, node.Name, index, err)
	}

	return nil
}

func (g *Generator) command(
	node *v1alpha1.Node,
	index int,
	directive v1alpha1.ConfigGenerator,
	resCtx *resolver.Context,
) (runner.Command, error) {
	hasCommand := strings.TrimSpace(directive.Command) != ""
	hasArgs := len(directive.Args) > 0

	if hasCommand == hasArgs {
		return runner.Command{}, fmt.Errorf(
			"%w: %s directive %d needs exactly one of command or args", ErrInvalidDirective, node.Name, index,
		)
	}

	if hasCommand {
		rendered, err := resCtx.Render(directive.Command)
		if err != nil {
			return runner.Command{}, fmt.Errorf("config generator for %s: %w", node.Name, err)
		}

		return runner.Command{Name: "sh", Args: []string{"-c", rendered}, Dir: g.configRoot}, nil
	}

	args, err := resCtx.RenderAll(directive.Args)
	if err != nil {
		return runner.Command{}, fmt.Errorf("config generator for %s: %w", node.Name, err)
	}

	return runner.Command{Name: args[0], Args: args[1:], Dir: g.configRoot}, nil
}

func (g *Generator) outputDir(node *v1alpha1.Node, directive v1alpha1.ConfigGenerator) string {
	dir := directive.OutputDir
	if dir == "" {
		dir = filepath.Join(DefaultOutputBase, node.Name)
	}

	if filepath.IsAbs(dir) {
		return dir
	}

	return filepath.Join(g.configRoot, dir)
}
