package instance_test

import (
	"encoding/json"
	"testing"

	"github.com/devantler-tech/testbed/pkg/svc/instance"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseState(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  instance.State
	}{
		{input: "Declared", want: instance.StateDeclared},
		{input: "created", want: instance.StateCreated},
		{input: "SOFTWAREINSTALLED", want: instance.StateSoftwareInstalled},
		{input: "Ready", want: instance.StateReady},
	}

	for _, testCase := range tests {
		t.Run(testCase.input, func(t *testing.T) {
			t.Parallel()

			got, err := instance.ParseState(testCase.input)
			require.NoError(t, err)
			assert.Equal(t, testCase.want, got)
		})
	}
}

func TestParseStateRejectsUnknown(t *testing.T) {
	t.Parallel()

	_, err := instance.ParseState("Provisioned")

	require.ErrorIs(t, err, instance.ErrInvalidState)
}

func TestStateJSONUsesNames(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(map[string]instance.State{"sn": instance.StateConfigApplied})
	require.NoError(t, err)
	assert.JSONEq(t, `{"sn":"ConfigApplied"}`, string(data))

	var decoded map[string]instance.State

	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, instance.StateConfigApplied, decoded["sn"])
}
