package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVersionCmd_PrintsVersion(t *testing.T) {
	out, err := executeCommand("version")

	assert.NoError(t, err)
	assert.Contains(t, out, "mantis-sync version")
}
