package stack

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/papercomputeco/insurag/pkg/config"
	"github.com/papercomputeco/insurag/pkg/dotdir"
	"github.com/papercomputeco/insurag/pkg/logger"
)

// LogFileName is the service log appended to inside the .insurag directory.
const LogFileName = "insurag.log"

// LoadConfig resolves the configuration of cmd. The flags named by keys
// are bound from fs, so precedence is flag > INSURAG_* env > config.toml >
// defaults.
func LoadConfig(cmd *cobra.Command, fs config.FlagSet, keys []string) (*config.Config, error) {
	configDir, _ := cmd.Flags().GetString("config-dir")

	v, err := config.InitViper(configDir)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	config.BindRegisteredFlags(v, cmd, fs, keys)
	return config.FromViper(v), nil
}

// NewLogger builds the command logger on stderr. --log-format picks the
// output; the default is colorized on a terminal and JSON lines otherwise.
func NewLogger(cmd *cobra.Command) *slog.Logger {
	debug, _ := cmd.Flags().GetBool("debug")
	tty := term.IsTerminal(int(os.Stderr.Fd()))

	raw, _ := cmd.Flags().GetString("log-format")
	format, formatErr := logger.ParseFormat(raw, tty)
	if formatErr != nil {
		format, _ = logger.ParseFormat("auto", tty)
	}

	log := logger.New(
		logger.WithDebug(debug),
		logger.WithWriters(os.Stderr),
		logger.WithFormat(format),
		logger.WithSource(debug),
	)
	if formatErr != nil {
		log.Warn("ignoring --log-format", "error", formatErr)
	}
	return log
}

// NewServiceLogger returns the command logger fanned out to JSON records
// appended to the service log under the .insurag directory. The returned
// closer closes the log file.
func NewServiceLogger(cmd *cobra.Command) (*slog.Logger, io.Closer, error) {
	configDir, _ := cmd.Flags().GetString("config-dir")
	debug, _ := cmd.Flags().GetBool("debug")

	path, err := dotdir.NewManager().Path(configDir, LogFileName)
	if err != nil {
		return nil, nil, fmt.Errorf("resolving log file: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}

	fileLogger := logger.New(
		logger.WithDebug(debug),
		logger.WithWriters(f),
		logger.WithFormat(logger.FormatJSON),
		logger.WithService(cmd.Name()),
	)

	return logger.Multi(NewLogger(cmd), fileLogger), f, nil
}

// ServerFlagKeys lists the registry flags of a server command, with
// listenKey naming its listen address flag.
func ServerFlagKeys(listenKey string) []string {
	return append([]string{listenKey}, LocalFlagKeys()...)
}

// LocalFlagKeys lists the registry flags of a command that builds the stack
// in process without serving it.
func LocalFlagKeys() []string {
	return []string{
		config.FlagStorageProvider,
		config.FlagSQLite,
		config.FlagPostgresDSN,
		config.FlagVectorStoreProv,
		config.FlagVectorStoreTgt,
		config.FlagEmbeddingProv,
		config.FlagEmbeddingTgt,
		config.FlagEmbeddingModel,
		config.FlagEmbeddingDims,
		config.FlagLLMProvider,
		config.FlagLLMTarget,
		config.FlagLLMModel,
		config.FlagEventsProvider,
		config.FlagIndexWorkers,
	}
}

// RegisterServerFlags adds the flags of ServerFlagKeys to cmd.
func RegisterServerFlags(cmd *cobra.Command, listenKey string) {
	RegisterFlags(cmd, ServerFlagKeys(listenKey))
}

// RegisterFlags adds the ServerFlags entries named by keys to cmd. Their
// values are read back through viper by LoadConfig, so the targets are not
// kept.
func RegisterFlags(cmd *cobra.Command, keys []string) {
	uintKeys := map[string]bool{
		config.FlagEmbeddingDims: true,
		config.FlagIndexWorkers:  true,
	}
	for _, key := range keys {
		if uintKeys[key] {
			config.AddUintFlag(cmd, config.ServerFlags, key, new(uint))
			continue
		}
		config.AddStringFlag(cmd, config.ServerFlags, key, new(string))
	}
}
