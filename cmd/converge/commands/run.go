package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/diagx/converge/internal/classifier"
	"github.com/diagx/converge/internal/config"
	"github.com/diagx/converge/internal/diagnosis/loopguard"
	"github.com/diagx/converge/internal/diagnosis/orchestrator"
	"github.com/diagx/converge/internal/diagnosis/router"
	"github.com/diagx/converge/internal/diagnosis/skill"
	"github.com/diagx/converge/internal/diagnosis/skills"
	"github.com/diagx/converge/internal/diagnosis/types"
	"github.com/diagx/converge/internal/embedding"
	"github.com/diagx/converge/internal/logging"
	"github.com/diagx/converge/internal/metrics"
	"github.com/diagx/converge/internal/tracing"
)

var (
	configPath   string
	scenarioPath string
)

// scenarioFile is the on-disk format for replayable troubleshooting
// sessions. Each turn feeds one user message and optionally one
// document (log snippet, command output) to the engine.
type scenarioFile struct {
	CaseID string         `yaml:"case_id"`
	Turns  []scenarioTurn `yaml:"turns"`
}

type scenarioTurn struct {
	Text     string `yaml:"text"`
	Document string `yaml:"document"`
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Replay a troubleshooting scenario through the engine",
	Long: `Replay a YAML scenario file turn by turn and print the engine's
verdict after each turn: confidence score and band, loop status, open
evidence requests and the recommended next action.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Default()
		if configPath != "" {
			loaded, err := config.Load(configPath)
			if err != nil {
				return err
			}
			cfg = loaded
		}

		// An explicit --log-level wins over the config file.
		if cmd.Flags().Changed("log-level") {
			cfg.LogLevel = logLevelFlag
		}
		logging.Initialize(cfg.LogLevel)
		logger := logging.GetLogger("run")

		scenario, err := loadScenario(scenarioPath)
		if err != nil {
			return err
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		tp, err := tracing.NewProvider(tracing.Config{
			Enabled:  cfg.Tracing.Enabled,
			Endpoint: cfg.Tracing.Endpoint,
			Insecure: cfg.Tracing.Insecure,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize tracing: %w", err)
		}
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			if err := tp.Shutdown(shutdownCtx); err != nil {
				logger.WarnWithFields("tracing shutdown failed", logging.Field("error", err.Error()))
			}
		}()

		reg := prometheus.NewRegistry()
		m := metrics.New(reg)
		if cfg.MetricsAddr != "" {
			startMetricsListener(cfg.MetricsAddr, reg, logger)
		}

		engine, err := buildEngine(cfg, m, tp)
		if err != nil {
			return err
		}

		manager := orchestrator.NewCaseManager(engine)
		state := manager.Open()
		if scenario.CaseID != "" {
			state = &types.CaseDiagnosticState{CaseID: scenario.CaseID}
			manager.Adopt(state)
		}

		logger.InfoWithFields("replaying scenario",
			logging.Field("case_id", state.CaseID),
			logging.Field("turns", len(scenario.Turns)),
		)

		for i, turn := range scenario.Turns {
			outcome, err := manager.ProcessTurn(ctx, state.CaseID, types.TurnInput{
				Text:         turn.Text,
				DocumentText: turn.Document,
			})
			if err != nil {
				return fmt.Errorf("turn %d failed: %w", i+1, err)
			}
			printOutcome(i+1, turn.Text, outcome)
		}

		return nil
	},
}

func init() {
	runCmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML configuration file")
	runCmd.Flags().StringVarP(&scenarioPath, "scenario", "s", "", "Path to YAML scenario file (required)")
	_ = runCmd.MarkFlagRequired("scenario")
}

func loadScenario(path string) (*scenarioFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario %q: %w", path, err)
	}

	var scenario scenarioFile
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, fmt.Errorf("failed to parse scenario %q: %w", path, err)
	}
	if len(scenario.Turns) == 0 {
		return nil, fmt.Errorf("scenario %q has no turns", path)
	}

	return &scenario, nil
}

// buildEngine wires classifier, skills, router and loop guard from the
// configuration.
func buildEngine(cfg *config.Config, m *metrics.Metrics, tp *tracing.Provider) (*orchestrator.Engine, error) {
	var cls classifier.Classifier
	switch cfg.Classifier.Mode {
	case config.ClassifierModeLLM:
		cls = classifier.NewLLMClassifier(classifier.LLMConfig{
			APIKey:  cfg.Classifier.APIKey,
			BaseURL: cfg.Classifier.Endpoint,
			Model:   cfg.Classifier.Model,
		})
	default:
		cls = classifier.NewKeywordClassifier()
	}

	registry := skill.NewRegistry()
	registry.Register(skills.NewPatternSkill())
	registry.Register(skills.NewHypothesisProbeSkill())
	registry.Register(skills.NewClarifySkill())

	var encoder loopguard.Encoder
	if cfg.Embedding.Endpoint != "" {
		provider := embedding.NewOpenAIProvider(embedding.OpenAIConfig{
			APIKey:  cfg.Embedding.APIKey,
			BaseURL: cfg.Embedding.Endpoint,
			Model:   cfg.Embedding.Model,
		})
		encoder = embedding.Shared(provider)
	}

	rt := router.New(
		router.WithEpsilon(cfg.Epsilon),
		router.WithMaxSkills(cfg.MaxSkills),
	)

	return orchestrator.New(cls, registry, loopguard.NewGuard(encoder), rt, orchestrator.Options{
		Budget: types.Budget{
			TimeMs: cfg.Budget.TimeMs,
			Tokens: cfg.Budget.Tokens,
			Calls:  cfg.Budget.Calls,
		},
		SkillTimeout: time.Duration(cfg.SkillTimeoutSeconds) * time.Second,
		Metrics:      m,
		Tracer:       tp.Tracer(),
	})
}

func startMetricsListener(addr string, reg *prometheus.Registry, logger *logging.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.InfoWithFields("metrics listener started", logging.Field("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.ErrorWithFields("metrics listener failed", logging.Field("error", err.Error()))
		}
	}()
}

func printOutcome(turn int, text string, outcome *orchestrator.TurnOutcome) {
	fmt.Printf("--- turn %d ---\n", turn)
	if text != "" {
		fmt.Printf("input:       %s\n", text)
	}
	fmt.Printf("confidence:  %.3f (%s)\n", outcome.Score, outcome.Band)
	fmt.Printf("loop status: %s\n", outcome.Stall)
	fmt.Printf("next action: %s\n", outcome.NextAction)
	if len(outcome.SkillsRun) > 0 {
		fmt.Printf("skills:      %v\n", outcome.SkillsRun)
	}
	for _, req := range outcome.ActiveRequests {
		fmt.Printf("  open [%s %.2f] %s\n", req.Status, req.Completeness, req.Description)
	}
	fmt.Println()
}
