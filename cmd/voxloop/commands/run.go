package commands

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/voxloop/voxloop/cmd/voxloop/console"
	pipeline "github.com/voxloop/voxloop/core"
	"github.com/voxloop/voxloop/core/audio/miniaudio"
	"github.com/voxloop/voxloop/core/audio/portaudio"
	"github.com/voxloop/voxloop/core/events"
	"github.com/voxloop/voxloop/core/llms/gemini"
	"github.com/voxloop/voxloop/core/llms/openai"
	deepgramstt "github.com/voxloop/voxloop/core/speechtotext/deepgram"
	deepgramtts "github.com/voxloop/voxloop/core/texttospeech/deepgram"
)

var (
	runConfigFile string
	runConsole    bool
)

var runCmd = &cobra.Command{
	Use:   "run -f <file>",
	Short: "Run a spoken conversation session",
	Long: `Run a spoken conversation session described by a YAML config file.

The session listens on the default input device and plays responses on
the default output device. Speaking over a response interrupts it.

Without --console, events are logged to stderr and lines typed on stdin
are sent to the session as text prompts. With --console, an interactive
terminal UI shows the conversation, turn state and stage errors.

Examples:
  voxloop run -f session.yaml
  voxloop run -f session.yaml --console`,
	RunE: runSession,
}

func init() {
	runCmd.Flags().StringVarP(&runConfigFile, "file", "f", "", "session config YAML file")
	runCmd.Flags().BoolVar(&runConsole, "console", false, "show the interactive debug console")
	rootCmd.AddCommand(runCmd)
}

func runSession(cmd *cobra.Command, args []string) error {
	if runConfigFile == "" {
		return fmt.Errorf("flag -f is required")
	}

	cfg, err := LoadConfig(runConfigFile)
	if err != nil {
		return err
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	opts, err := buildSessionOptions(cfg)
	if err != nil {
		return err
	}

	sessionCfg := pipeline.SessionConfig{
		Greeting:                cfg.Greeting,
		SystemPrompt:            cfg.SystemPrompt,
		MinSpeechFrames:         cfg.MinSpeechFrames,
		MinSilenceFrames:        cfg.MinSilenceFrames,
		MaxHistoryTurns:         cfg.MaxHistoryTurns,
		HistoryTruncationPolicy: pipeline.TruncationPolicy(cfg.HistoryTruncation),
		FailureThreshold:        cfg.FailureThreshold,
	}

	if runConsole {
		return runWithConsole(ctx, sessionCfg, opts)
	}
	return runHeadless(ctx, sessionCfg, opts)
}

func runHeadless(ctx context.Context, cfg pipeline.SessionConfig, opts []pipeline.SessionOption) error {
	logger := slog.Default()

	opts = append(opts, pipeline.WithObserver(loggingObserver(logger)))
	session, err := pipeline.NewSession(cfg, opts...)
	if err != nil {
		return err
	}

	if err := session.Start(ctx); err != nil {
		return err
	}
	logger.Info("Session started, speak into the microphone (Ctrl+C to stop)")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("Shutting down...")
		session.Stop()
	}()

	// Lines typed on stdin become text prompts.
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			if text := strings.TrimSpace(scanner.Text()); text != "" {
				session.SendPrompt(text)
			}
		}
	}()

	return session.Wait()
}

func runWithConsole(ctx context.Context, cfg pipeline.SessionConfig, opts []pipeline.SessionOption) error {
	model := console.NewModel()
	program := tea.NewProgram(model, tea.WithAltScreen())

	opts = append(opts, pipeline.WithObserver(console.NewEventAdapter(program)))
	session, err := pipeline.NewSession(cfg, opts...)
	if err != nil {
		return err
	}
	model.AttachSession(session)

	if err := session.Start(ctx); err != nil {
		return err
	}
	go func() {
		program.Send(console.SessionEndedMsg{Err: session.Wait()})
	}()

	_, runErr := program.Run()
	session.Stop()
	if runErr != nil {
		return runErr
	}
	return session.Err()
}

func buildSessionOptions(cfg *Config) ([]pipeline.SessionOption, error) {
	var opts []pipeline.SessionOption

	transcriber, err := buildTranscriber(cfg.Transcriber)
	if err != nil {
		return nil, err
	}
	opts = append(opts, pipeline.WithTranscriber(transcriber))

	generator, err := buildGenerator(cfg.Generator)
	if err != nil {
		return nil, err
	}
	opts = append(opts, pipeline.WithResponseGenerator(generator))

	synthesizer, err := buildSynthesizer(cfg.Synthesizer)
	if err != nil {
		return nil, err
	}
	opts = append(opts, pipeline.WithSynthesizer(synthesizer))

	switch cfg.Audio.Driver {
	case "miniaudio":
		device, err := miniaudio.NewClient()
		if err != nil {
			return nil, fmt.Errorf("failed to initialize miniaudio: %w", err)
		}
		opts = append(opts, pipeline.WithFrameSource(device), pipeline.WithSink(device))
	case "portaudio":
		device, err := portaudio.NewClient(cfg.Audio.BufferSize)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize portaudio: %w", err)
		}
		opts = append(opts, pipeline.WithFrameSource(device), pipeline.WithSink(device))
	default:
		return nil, fmt.Errorf("unknown audio driver %q", cfg.Audio.Driver)
	}

	return opts, nil
}

func buildTranscriber(cfg TranscriberConfig) (pipeline.Transcriber, error) {
	switch cfg.Provider {
	case "deepgram":
		var opts []deepgramstt.ClientOption
		if cfg.APIKey != "" {
			opts = append(opts, deepgramstt.WithAPIKey(cfg.APIKey))
		}
		if cfg.Model != "" {
			opts = append(opts, deepgramstt.WithModel(cfg.Model))
		}
		if cfg.Language != "" {
			opts = append(opts, deepgramstt.WithLanguage(cfg.Language))
		}
		return deepgramstt.NewClient(opts...)
	default:
		return nil, fmt.Errorf("unknown transcriber provider %q", cfg.Provider)
	}
}

func buildGenerator(cfg GeneratorConfig) (pipeline.ResponseGenerator, error) {
	switch cfg.Provider {
	case "openai":
		var opts []openai.ClientOption
		if cfg.APIKey != "" {
			opts = append(opts, openai.WithAPIKey(cfg.APIKey))
		}
		if cfg.Model != "" {
			opts = append(opts, openai.WithModel(cfg.Model))
		}
		return openai.NewClient(opts...)
	case "gemini":
		var opts []gemini.ClientOption
		if cfg.APIKey != "" {
			opts = append(opts, gemini.WithAPIKey(cfg.APIKey))
		}
		if cfg.Model != "" {
			opts = append(opts, gemini.WithModel(cfg.Model))
		}
		return gemini.NewClient(opts...)
	default:
		return nil, fmt.Errorf("unknown generator provider %q", cfg.Provider)
	}
}

func buildSynthesizer(cfg SynthesizerConfig) (pipeline.Synthesizer, error) {
	switch cfg.Provider {
	case "deepgram":
		var opts []deepgramtts.ClientOption
		if cfg.APIKey != "" {
			opts = append(opts, deepgramtts.WithAPIKey(cfg.APIKey))
		}
		switch cfg.Voice {
		case "":
		case "aura-asteria-en":
			opts = append(opts, deepgramtts.WithVoice(deepgramtts.VoiceAuraAsteria))
		case "aura-luna-en":
			opts = append(opts, deepgramtts.WithVoice(deepgramtts.VoiceAuraLuna))
		case "aura-orion-en":
			opts = append(opts, deepgramtts.WithVoice(deepgramtts.VoiceAuraOrion))
		default:
			return nil, fmt.Errorf("unknown deepgram voice %q", cfg.Voice)
		}
		return deepgramtts.NewClient(opts...)
	default:
		return nil, fmt.Errorf("unknown synthesizer provider %q", cfg.Provider)
	}
}

func loggingObserver(logger *slog.Logger) pipeline.Observer {
	return pipeline.ObserverFunc(func(event events.Event) {
		switch e := event.(type) {
		case events.TurnStateChanged:
			logger.Debug("Turn state changed", "from", e.Old, "to", e.New)
		case events.UserTranscriptInterim:
			logger.Debug("Interim transcript", "transcript", e.Transcript)
		case events.UserTranscriptFinal:
			logger.Info("User said", "transcript", e.Transcript)
		case events.AssistantResponseFinal:
			logger.Info("Assistant responded", "response", e.Response)
		case events.AssistantPlaybackEnded:
			logger.Debug("Playback ended", "spoken", e.Transcript)
		case events.InterruptionDetected:
			logger.Info("Interrupted", "at", e.At)
		case events.UserSegmentDiscarded:
			logger.Debug("Segment discarded", "frames", e.Frames)
		case events.StageError:
			logger.Warn("Stage error", "stage", e.Stage, "error", e.Err)
		case events.SessionFatal:
			logger.Error("Session fatal", "stage", e.Stage, "error", e.Err)
		default:
			logger.Debug("Event", "namespace", event.Kind().Namespace(), "kind", event.Kind())
		}
	})
}
