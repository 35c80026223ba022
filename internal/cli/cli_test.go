package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildCLI(t *testing.T) {
	cmd := BuildCLI()
	assert.NotNil(t, cmd)
	assert.Equal(t, "taskpool", cmd.Use)

	commands := cmd.Commands()
	assert.Len(t, commands, 2)

	names := make(map[string]bool)
	for _, c := range commands {
		names[c.Name()] = true
	}
	assert.True(t, names["run"])
	assert.True(t, names["bench"])

	configFlag := cmd.PersistentFlags().Lookup("config")
	assert.NotNil(t, configFlag)
}

func TestBuildRunCommand(t *testing.T) {
	cmd := buildRunCommand()
	assert.Equal(t, "run", cmd.Use)
	assert.NotNil(t, cmd.RunE)
}

func TestBuildBenchCommand(t *testing.T) {
	cmd := buildBenchCommand()
	assert.Equal(t, "bench", cmd.Use)
	assert.NotNil(t, cmd.RunE)

	jobsFlag := cmd.Flags().Lookup("jobs")
	assert.NotNil(t, jobsFlag)
	assert.Equal(t, "n", jobsFlag.Shorthand)
	assert.Equal(t, "10000", jobsFlag.DefValue)
}

func TestRunBenchRejectsNonPositiveJobs(t *testing.T) {
	assert.Error(t, runBench(0))
	assert.Error(t, runBench(-1))
}
