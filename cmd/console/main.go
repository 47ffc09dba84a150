package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/jwebster45206/lingua-quest/internal/config"
	"github.com/jwebster45206/lingua-quest/internal/logger"
	"github.com/jwebster45206/lingua-quest/internal/services"
	"github.com/jwebster45206/lingua-quest/pkg/state"
	"github.com/jwebster45206/lingua-quest/pkg/turn"
)

var (
	targetLanguage string
	languageLevel  string
	contractName   string
	provider       string
	logFile        string
)

var rootCmd = &cobra.Command{
	Use:   "console",
	Short: "Play Lingua Quest in the terminal",
	Long: `Runs a language-learning adventure against the configured narrator.
Turns are played in-process; no api or worker is needed. Provider credentials
are read from the environment (GOOGLE_API_KEY, ANTHROPIC_API_KEY, OLLAMA_URL).`,
	SilenceUsage: true,
	RunE:         runConsole,
}

func init() {
	rootCmd.Flags().StringVarP(&targetLanguage, "language", "l", "", "Target language name or tag, e.g. Spanish or ja (default $TARGET_LANGUAGE)")
	rootCmd.Flags().StringVar(&languageLevel, "level", "", "Language level, e.g. Beginner (default $LANGUAGE_LEVEL)")
	rootCmd.Flags().StringVar(&contractName, "contract", "", "Response contract version (default $RESPONSE_CONTRACT)")
	rootCmd.Flags().StringVar(&provider, "provider", "", "LLM provider: gemini, anthropic or ollama (default $LLM_PROVIDER)")
	rootCmd.Flags().StringVar(&logFile, "log-file", "", "Write logs to this file instead of discarding them")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runConsole(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	applyFlags(cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	// The alt screen owns stdout, so logs go to a file or nowhere
	var w io.Writer = io.Discard
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		defer func() {
			_ = f.Close()
		}()
		w = f
	}
	log := logger.SetupWriter(cfg, w)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	newSession, err := sessionFactory(ctx, cfg, log)
	if err != nil {
		return err
	}

	p := tea.NewProgram(NewConsoleUI(ctx, newSession),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running program: %w", err)
	}
	return nil
}

// applyFlags lets command line flags override the environment.
func applyFlags(cfg *config.Config) {
	if targetLanguage != "" {
		cfg.TargetLanguage = targetLanguage
	}
	if languageLevel != "" {
		cfg.LanguageLevel = languageLevel
	}
	if contractName != "" {
		cfg.ResponseContract = contractName
	}
	if provider != "" {
		cfg.LLMProvider = provider
	}
}

// sessionFactory prepares the narrator once and returns a constructor for
// fresh sessions, used at start-up and on restart.
func sessionFactory(ctx context.Context, cfg *config.Config, log *slog.Logger) (func() *turn.Session, error) {
	llmService, err := services.NewLLMService(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM service: %w", err)
	}
	if err := llmService.InitModel(ctx, cfg.ModelName); err != nil {
		return nil, fmt.Errorf("failed to initialize model %q: %w", cfg.ModelName, err)
	}

	orchestrator := turn.NewOrchestrator(llmService, log, cfg.TurnOptions()...)
	seed := cfg.Seed()
	return func() *turn.Session {
		return turn.NewSession(orchestrator, state.NewGameState(seed, cfg.ResponseContract))
	}, nil
}
