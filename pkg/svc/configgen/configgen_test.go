package configgen_test

import (
	"context"
	"path/filepath"
	"slices"
	"testing"

	"github.com/devantler-tech/testbed/pkg/apis/testbed/v1alpha1"
	"github.com/devantler-tech/testbed/pkg/svc/configgen"
	"github.com/devantler-tech/testbed/pkg/svc/resolver"
	"github.com/devantler-tech/testbed/pkg/utils/runner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func scopes() *resolver.Context {
	return resolver.NewContext(map[string]resolver.Attributes{
		"A":      {"ip": "10.0.0.5"},
		"system": {"base_dir": "/src"},
	})
}

func TestGenerateShellCommand(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	cmdRunner := runner.NewMockCommandRunner(t)
	cmdRunner.On("Run", mock.Anything, runner.Command{
		Name: "sh",
		Args: []string{"-c", "gen-config --peer 10.0.0.5 --out node_configs/B"},
		Dir:  root,
	}).Return(runner.CommandResult{Stdout: "wrote 3 files"}, nil).Once()

	node := &v1alpha1.Node{
		Name: "B",
		ConfigGenerators: []v1alpha1.ConfigGenerator{
			{Command: "gen-config --peer {{A.ip}} --out node_configs/B"},
		},
	}

	generator := configgen.New(cmdRunner, root, nil)

	require.NoError(t, generator.Generate(context.Background(), node, scopes()))
	assert.DirExists(t, filepath.Join(root, "node_configs", "B"))

	dir, ok := generator.OutputDir(node)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(root, "node_configs", "B"), dir)
}

func TestGenerateArgsWithoutShell(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	cmdRunner := runner.NewMockCommandRunner(t)
	cmdRunner.On("Run", mock.Anything, mock.MatchedBy(func(command runner.Command) bool {
		return command.Name == "/src/bin/gen" &&
			slices.Equal(command.Args, []string{"--peer", "10.0.0.5; rm -rf /"}) &&
			command.Dir == root
	})).Return(runner.CommandResult{}, nil).Once()

	node := &v1alpha1.Node{
		Name: "B",
		ConfigGenerators: []v1alpha1.ConfigGenerator{{
			Args:      []string{"{{system.base_dir}}/bin/gen", "--peer", "{{A.ip}}; rm -rf /"},
			OutputDir: "out/b",
		}},
	}

	generator := configgen.New(cmdRunner, root, nil)

	require.NoError(t, generator.Generate(context.Background(), node, scopes()))

	dir, _ := generator.OutputDir(node)
	assert.Equal(t, filepath.Join(root, "out", "b"), dir)
}

func TestGenerateFailureIsHard(t *testing.T) {
	t.Parallel()

	cmdRunner := runner.NewMockCommandRunner(t)
	cmdRunner.On("Run", mock.Anything, mock.Anything).
		Return(runner.CommandResult{Stderr: "bad input", ExitCode: 2}, runner.ErrNonZeroExit).Once()

	node := &v1alpha1.Node{
		Name: "B",
		ConfigGenerators: []v1alpha1.ConfigGenerator{
			{Command: "false"},
			{Command: "never-runs"},
		},
	}

	err := configgen.New(cmdRunner, t.TempDir(), nil).Generate(context.Background(), node, scopes())

	require.ErrorIs(t, err, configgen.ErrGeneratorFailed)
	require.ErrorIs(t, err, runner.ErrNonZeroExit)
}

func TestGenerateRejectsUnresolvableReference(t *testing.T) {
	t.Parallel()

	node := &v1alpha1.Node{
		Name:             "B",
		ConfigGenerators: []v1alpha1.ConfigGenerator{{Command: "gen {{C.ip}}"}},
	}

	err := configgen.New(runner.NewMockCommandRunner(t), t.TempDir(), nil).
		Generate(context.Background(), node, scopes())

	require.ErrorIs(t, err, resolver.ErrUnknownNode)
}

func TestGenerateRejectsAmbiguousDirective(t *testing.T) {
	t.Parallel()

	node := &v1alpha1.Node{
		Name:             "B",
		ConfigGenerators: []v1alpha1.ConfigGenerator{{Command: "gen", Args: []string{"gen"}}},
	}

	err := configgen.New(runner.NewMockCommandRunner(t), t.TempDir(), nil).
		Generate(context.Background(), node, scopes())

	require.ErrorIs(t, err, configgen.ErrInvalidDirective)
}

func TestOutputDirWithoutGenerators(t *testing.T) {
	t.Parallel()

	_, ok := configgen.New(nil, t.TempDir(), nil).OutputDir(&v1alpha1.Node{Name: "A"})

	assert.False(t, ok)
}
