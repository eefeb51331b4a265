package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/hupe1980/dialogmesh/config"
	"github.com/hupe1980/dialogmesh/logging"
	"github.com/hupe1980/dialogmesh/vocabulary"
)

// app carries the global flags and the state built from them.
type app struct {
	verbose        bool
	envFile        string
	vocabularyPath string
	provider       string

	cfg    *config.Config
	logger *zap.Logger
	vocab  *vocabulary.Vocabulary
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "dialogmesh",
		Short: "Conversational assistant for trades businesses",
		Long: `dialogmesh records rapports, appointments, material and customer dossiers
from free-form German chat messages.

Without an API key the offline echo model is used; confirmations, corrections
and cancellations still work because they never need the language model.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")
	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "dotenv file with settings")
	root.PersistentFlags().StringVar(&a.vocabularyPath, "vocabulary", "", "YAML vocabulary replacing the embedded one")
	root.PersistentFlags().StringVar(&a.provider, "provider", "", "model provider: auto, openai, anthropic or echo (overrides $DIALOG_PROVIDER)")

	root.AddCommand(newChatCmd(a), newFlowCmd(a))

	return root
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(func(o *config.Options) { o.EnvFiles = []string{a.envFile} })
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if a.provider != "" {
		cfg.Provider = a.provider
	}
	a.cfg = cfg

	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(zapLevel(cfg.LogLevel))
	if a.verbose {
		zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	if a.logger, err = zc.Build(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	a.vocab = vocabulary.Default()
	if a.vocabularyPath != "" {
		f, err := os.Open(a.vocabularyPath)
		if err != nil {
			return fmt.Errorf("open vocabulary: %w", err)
		}
		defer f.Close()
		if a.vocab, err = vocabulary.Load(f); err != nil {
			return fmt.Errorf("load vocabulary %s: %w", a.vocabularyPath, err)
		}
	}

	a.logger.Debug("cli.setup", zap.String("command", cmd.Name()), zap.String("provider", cfg.ResolveProvider()))
	return nil
}

func (a *app) log() logging.Logger {
	return logging.NewZapAdapter(a.logger)
}

func zapLevel(l logging.LogLevel) zapcore.Level {
	switch l {
	case logging.LogLevelDebug:
		return zapcore.DebugLevel
	case logging.LogLevelWarn:
		return zapcore.WarnLevel
	case logging.LogLevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
