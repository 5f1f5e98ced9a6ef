package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/bdougie/streamwatch/internal/config"
	"github.com/bdougie/streamwatch/internal/media"
	"github.com/bdougie/streamwatch/internal/models"
	"github.com/bdougie/streamwatch/internal/processor"
	"github.com/bdougie/streamwatch/internal/session"
	"github.com/bdougie/streamwatch/internal/stream"
	"github.com/bdougie/streamwatch/internal/transcribe"
	"github.com/bdougie/streamwatch/internal/vision"
)

var (
	flagURL      string
	flagPhrases  string
	flagOutput   string
	flagInterval time.Duration
	flagThresh   float64
	flagVision   string
	flagVerbose  bool
)

var rootCmd = &cobra.Command{
	Use:   "streamwatch --url URL [--phrases \"a,b,c\"]",
	Short: "Watch a YouTube video or live stream for target phrases",
	Long: `streamwatch transcribes a YouTube video or live stream in fixed
chunks, scans for target phrases with fuzzy matching, and captures and
analyzes a video frame for every hit.`,
	Example: `  streamwatch --url "https://www.youtube.com/watch?v=dQw4w9WgXcQ" \
      --phrases "breaking news,urgent" --output newsroom_run`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context())
	},
}

func init() {
	rootCmd.Flags().StringVar(&flagURL, "url", "", "YouTube video or live stream URL (required)")
	rootCmd.Flags().StringVar(&flagPhrases, "phrases", "", "comma-separated phrases to detect")
	rootCmd.Flags().StringVar(&flagOutput, "output", "livestream_analysis", "output directory")
	rootCmd.Flags().DurationVar(&flagInterval, "interval", 30*time.Second, "chunk duration")
	rootCmd.Flags().Float64Var(&flagThresh, "threshold", 0.8, "fuzzy match threshold (0-1)")
	rootCmd.Flags().StringVar(&flagVision, "vision-backend", "gemini", "vision backend: gemini or ollama")
	rootCmd.Flags().BoolVar(&flagVerbose, "verbose", false, "debug logging")
	rootCmd.MarkFlagRequired("url")
}

func run(ctx context.Context) error {
	level := slog.LevelInfo
	if flagVerbose {
		level = slog.LevelDebug
	}
	logger := slog.New(
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:      level,
			TimeFormat: "15:04:05",
		}),
	)
	slog.SetDefault(logger)

	cfg := config.Default()
	cfg.URL = flagURL
	cfg.TargetPhrases = config.ParsePhrases(flagPhrases)
	cfg.OutputDir = flagOutput
	cfg.ChunkInterval = flagInterval
	cfg.MatchThreshold = flagThresh
	cfg.VisionBackend = flagVision
	cfg.Verbose = flagVerbose
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	persister, err := session.NewPersister(models.Session{
		URL:           cfg.URL,
		TargetPhrases: cfg.TargetPhrases,
		OutputDir:     cfg.OutputDir,
		StartedAt:     time.Now(),
	}, logger.With("component", "session"))
	if err != nil {
		return err
	}

	acquirer := stream.NewAcquirer(logger.With("component", "stream"),
		stream.NewYtdlpStrategy(),
		stream.NewStreamlinkStrategy(),
		stream.NewDataAPIStrategy(cfg.YouTubeAPIKey),
	)

	extractor, err := media.NewExtractor("", logger.With("component", "media"))
	if err != nil {
		return err
	}
	capturer, err := media.NewCapturer(persister.ScreenshotsDir(), logger.With("component", "media"))
	if err != nil {
		return err
	}

	chain := transcribe.NewChain(logger.With("component", "transcribe"),
		transcribe.NewDeepgramBackend(cfg.DeepgramAPIKey, cfg.DeepgramModel),
		transcribe.NewWhisperBackend(cfg.OpenAIAPIKey),
	)

	backend, err := visionBackend(ctx, cfg, logger.With("component", "vision"))
	if err != nil {
		return err
	}
	analyzer := vision.NewAnalyzer(backend, logger.With("component", "vision"))

	proc := processor.New(processor.Options{
		URL:            cfg.URL,
		TargetPhrases:  cfg.TargetPhrases,
		ChunkInterval:  cfg.ChunkInterval,
		MatchThreshold: cfg.MatchThreshold,
		ContextTokens:  cfg.ContextTokens,
	}, acquirer, extractor, chain, capturer, analyzer, persister, logger.With("component", "processor"))

	summary, err := proc.Run(ctx)
	printSummary(summary)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func visionBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) (vision.Backend, error) {
	switch cfg.VisionBackend {
	case "ollama":
		return vision.NewOllamaBackend(ctx, logger, cfg.OllamaHost, cfg.OllamaPort, cfg.OllamaModel)
	default:
		return vision.NewGeminiBackend(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	}
}

func printSummary(s session.Summary) {
	fmt.Println()
	fmt.Println("Session summary")
	fmt.Printf("  chunks processed: %d (%d failed)\n", s.Chunks, s.FailedChunks)
	fmt.Printf("  phrase matches:   %d\n", s.Matches)
	fmt.Printf("  analysis entries: %d\n", s.Records)
	fmt.Printf("  output directory: %s\n", s.OutputDir)
}

func main() {
	// .env is optional; real environments set the keys directly.
	godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
