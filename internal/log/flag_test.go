package log

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterFlags(t *testing.T) {
	cmd := &cobra.Command{}
	RegisterFlags(cmd.PersistentFlags())

	assert.NotNil(t, cmd.PersistentFlags().Lookup(FormatFlagName))
	assert.NotNil(t, cmd.PersistentFlags().Lookup(LevelFlagName))
	assert.NotNil(t, cmd.PersistentFlags().Lookup(OutputFlagName))
}

func TestBaseLoggerFromCommand(t *testing.T) {
	tests := []struct {
		name   string
		format string
		level  string
		output string
	}{
		{name: "json debug stdout", format: FormatJSON, level: LevelDebug, output: OutputStdout},
		{name: "text error stderr", format: FormatText, level: LevelError, output: OutputStderr},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := &cobra.Command{}
			RegisterFlags(cmd.Flags())
			require.NoError(t, cmd.Flags().Set(FormatFlagName, tt.format))
			require.NoError(t, cmd.Flags().Set(LevelFlagName, tt.level))
			require.NoError(t, cmd.Flags().Set(OutputFlagName, tt.output))

			logger, err := BaseLoggerFromCommand(cmd)
			require.NoError(t, err)
			assert.NotNil(t, logger)
		})
	}
}

func TestBaseLoggerFromCommand_InvalidLevel(t *testing.T) {
	cmd := &cobra.Command{}
	RegisterFlags(cmd.Flags())
	require.NoError(t, cmd.Flags().Set(LevelFlagName, "bogus"))

	_, err := BaseLoggerFromCommand(cmd)
	assert.Error(t, err)
}
