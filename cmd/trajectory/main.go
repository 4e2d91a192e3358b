package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/xaenox/trajectory-bot/internal/bot"
	"github.com/xaenox/trajectory-bot/internal/classifier"
	"github.com/xaenox/trajectory-bot/internal/clustering"
	"github.com/xaenox/trajectory-bot/internal/features"
	"github.com/xaenox/trajectory-bot/internal/naming"
	"github.com/xaenox/trajectory-bot/internal/pipeline"
	"github.com/xaenox/trajectory-bot/internal/storage"
	"github.com/xaenox/trajectory-bot/internal/trajectory"
	"github.com/xaenox/trajectory-bot/pkg/config"
	"go.uber.org/zap"
)

type app struct {
	configPath string

	cfg      *config.Config
	logger   *zap.Logger
	store    storage.Storage
	pipeline *pipeline.Pipeline
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "trajectory",
		Short: "Map human-AI conversations into relational space and cluster their paths",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd.Context())
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			a.close()
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "config.yaml", "Path to the YAML config file (empty for defaults)")

	rootCmd.AddCommand(a.botCommand(), a.runCommand())
	return rootCmd
}

func (a *app) botCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "bot",
		Short: "Serve the Telegram bot",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.cfg.Telegram.Token == "" {
				return errors.New("telegram token is not set (telegram.token or TELEGRAM_TOKEN)")
			}

			b, err := bot.New(a.cfg.Telegram.Token, a.store, a.pipeline, a.logger)
			if err != nil {
				a.logger.Error("Failed to create bot", zap.Error(err))
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a.logger.Info("Bot started")
			if err := b.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Error("Bot error", zap.Error(err))
				return err
			}
			a.logger.Info("Bot stopped")
			return nil
		},
	}
}

func (a *app) runCommand() *cobra.Command {
	var printJSON bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Cluster every stored conversation once and save the run",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			convs, err := a.store.ListConversations(ctx)
			if err != nil {
				return fmt.Errorf("failed to list conversations: %w", err)
			}

			result, err := a.pipeline.Run(ctx, convs)
			if result != nil {
				for i := range result.Annotated {
					if err := a.store.SaveConversation(ctx, &result.Annotated[i]); err != nil {
						a.logger.Error("Failed to save annotated conversation",
							zap.Error(err),
							zap.String("conversation_id", result.Annotated[i].ID))
					}
				}
			}
			if err != nil {
				return err
			}

			run := result.ToRun()
			if err := a.store.SaveRun(ctx, run); err != nil {
				return fmt.Errorf("failed to save run: %w", err)
			}

			for _, c := range run.Clusters {
				a.logger.Info("Cluster",
					zap.Int("id", c.ID),
					zap.String("name", c.Name),
					zap.Int("members", len(c.MemberIDs)))
			}
			for _, issue := range result.Issues {
				a.logger.Warn("Data-quality issue", zap.String("issue", issue.String()))
			}

			if printJSON {
				out, err := json.MarshalIndent(run, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to encode run: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(out))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&printJSON, "json", false, "Print the saved run as JSON")
	return cmd
}

func (a *app) setup(ctx context.Context) error {
	cfg, err := config.LoadConfig(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	if cfg.Log.Development {
		a.logger, err = zap.NewDevelopment()
	} else {
		a.logger, err = zap.NewProduction()
	}
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	// Initialize storage
	if cfg.Database.UseInMemory {
		a.logger.Info("Using in-memory storage")
		a.store = storage.NewMemoryStorage()
	} else {
		a.logger.Info("Using PostgreSQL storage")
		a.store, err = storage.NewPostgresStorage(cfg.Database.ToStorageConfig(), a.logger)
		if err != nil {
			a.logger.Error("Failed to initialize storage", zap.Error(err))
			return err
		}
	}

	if cfg.Database.SeedFile != "" {
		n, err := storage.Seed(ctx, a.store, cfg.Database.SeedFile)
		if err != nil {
			a.logger.Error("Failed to seed conversations",
				zap.Error(err),
				zap.String("path", cfg.Database.SeedFile))
			return err
		}
		a.logger.Info("Seeded conversations",
			zap.Int("count", n),
			zap.String("path", cfg.Database.SeedFile))
	}

	var provider classifier.Provider = classifier.NewHeuristicClassifier(cfg.Classifier.MinConfidence)
	if cfg.Classifier.UseLLM {
		if cfg.OpenAI.APIKey == "" {
			a.logger.Warn("classifier.use_llm is set but no OpenAI key is configured, using heuristics")
		} else {
			provider = classifier.NewGPTClassifier(
				cfg.OpenAI.APIKey,
				cfg.OpenAI.Model,
				cfg.OpenAI.MaxTokens,
				cfg.OpenAI.Temperature,
				provider,
				a.logger,
			)
		}
	}

	a.pipeline = pipeline.New(
		trajectory.NewSimulator(cfg.Trajectory.ToSimulatorConfig(), a.logger),
		features.NewExtractor(),
		clustering.NewEngine(cfg.Clustering.ToEngineConfig(), a.logger),
		naming.NewNamer(naming.DefaultRules(cfg.Naming.ToThresholds())),
		classifier.NewAnnotator(provider, a.logger),
		cfg.Pipeline.Workers,
		a.logger,
	)
	return nil
}

func (a *app) close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Error("Failed to close storage", zap.Error(err))
		}
	}
	if a.logger != nil {
		a.logger.Sync()
	}
}
