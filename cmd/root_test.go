package cmd

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCmd_RegistersSubcommands(t *testing.T) {
	for _, name := range []string{"run", "generate", "serve"} {
		c, _, err := rootCmd.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, c.Name())
	}
}

func TestCommands_FlagSets(t *testing.T) {
	// run: --seed comes from the engine flags and feeds the generator too
	require.NotNil(t, runCmd.Flags().Lookup("seed"))
	assert.NotNil(t, runCmd.Flags().Lookup("items"))
	assert.NotNil(t, serveCmd.Flags().Lookup("addr"))
	assert.Nil(t, generateCmd.Flags().Lookup("items"), "generate writes items, it does not read them")
}

func TestSetupLogging_AppliesLevel(t *testing.T) {
	old, oldLevel := logLevel, logrus.GetLevel()
	t.Cleanup(func() {
		logLevel = old
		logrus.SetLevel(oldLevel)
	})

	logLevel = "debug"
	setupLogging()

	assert.Equal(t, logrus.DebugLevel, logrus.GetLevel())
}
