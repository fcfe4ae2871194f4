package helpers_test

import (
	"strings"
	"testing"

	"github.com/devantler-tech/testbed/pkg/cli/helpers"
	"github.com/stretchr/testify/assert"
)

func TestTable(t *testing.T) {
	t.Parallel()

	rendered := helpers.Table([]string{"NODE", "IP"}, [][]string{{"sn", "10.0.0.2"}, {"api", ""}})

	lines := strings.Split(rendered, "\n")
	assert.Len(t, lines, 6)
	assert.Contains(t, lines[1], "NODE")
	assert.Contains(t, rendered, "10.0.0.2")
	assert.Contains(t, rendered, "api")
}
