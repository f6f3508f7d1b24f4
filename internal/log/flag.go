package log

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Flag names and accepted values for the CLI's logging flags, grounded
// on the teacher's cli/internal/flags/log package.
const (
	FormatFlagName = "log-format"
	FormatJSON     = "json"
	FormatText     = "text"

	LevelFlagName = "log-level"
	LevelDebug    = "debug"
	LevelInfo     = "info"
	LevelWarn     = "warn"
	LevelError    = "error"

	OutputFlagName = "log-output"
	OutputStdout   = "stdout"
	OutputStderr   = "stderr"
)

// RegisterFlags registers the logging flags on flagset.
func RegisterFlags(flagset *pflag.FlagSet) {
	flagset.String(FormatFlagName, FormatText, `log output format: "text" or "json"`)
	flagset.String(LevelFlagName, LevelWarn, `log level: "debug", "info", "warn", or "error"`)
	flagset.String(OutputFlagName, OutputStdout, `log output destination: "stdout" or "stderr"`)
}

// BaseLoggerFromCommand builds the root *slog.Logger described by cmd's
// logging flags.
func BaseLoggerFromCommand(cmd *cobra.Command) (*slog.Logger, error) {
	format, err := cmd.Flags().GetString(FormatFlagName)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s flag: %w", FormatFlagName, err)
	}
	levelStr, err := cmd.Flags().GetString(LevelFlagName)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s flag: %w", LevelFlagName, err)
	}
	output, err := cmd.Flags().GetString(OutputFlagName)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s flag: %w", OutputFlagName, err)
	}

	level, err := levelFromString(levelStr)
	if err != nil {
		return nil, err
	}

	var w io.Writer
	switch output {
	case OutputStdout:
		w = cmd.OutOrStdout()
	case OutputStderr:
		w = cmd.OutOrStderr()
	default:
		return nil, fmt.Errorf("invalid %s value %q", OutputFlagName, output)
	}

	var handler slog.Handler
	switch format {
	case FormatJSON:
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	case FormatText:
		handler = slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	default:
		return nil, fmt.Errorf("invalid %s value %q", FormatFlagName, format)
	}

	return slog.New(handler), nil
}

func levelFromString(level string) (slog.Level, error) {
	switch level {
	case LevelDebug:
		return slog.LevelDebug, nil
	case LevelInfo:
		return slog.LevelInfo, nil
	case LevelWarn:
		return slog.LevelWarn, nil
	case LevelError:
		return slog.LevelError, nil
	default:
		return slog.LevelWarn, fmt.Errorf("invalid %s value %q", LevelFlagName, level)
	}
}
