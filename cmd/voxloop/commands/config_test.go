package commands

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "session.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoadConfigParsesSessionFields(t *testing.T) {
	path := writeConfig(t, `
greeting: "Hi there!"
system_prompt: "You are a concise voice assistant."
min_speech_frames: 5
min_silence_frames: 30
max_history_turns: 20
history_truncation: summarize
failure_threshold: 4
transcriber:
  provider: deepgram
  model: nova-2
  language: en-US
generator:
  provider: gemini
  model: gemini-2.0-flash
synthesizer:
  provider: deepgram
  voice: aura-luna-en
audio:
  driver: portaudio
  buffer_size: 1024
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Greeting != "Hi there!" || cfg.SystemPrompt != "You are a concise voice assistant." {
		t.Fatalf("expected greeting and system prompt to parse, got %+v", cfg)
	}
	if cfg.MinSpeechFrames != 5 || cfg.MinSilenceFrames != 30 {
		t.Fatalf("expected frame tuning to parse, got %+v", cfg)
	}
	if cfg.MaxHistoryTurns != 20 || cfg.HistoryTruncation != "summarize" || cfg.FailureThreshold != 4 {
		t.Fatalf("expected history settings to parse, got %+v", cfg)
	}
	if cfg.Transcriber.Model != "nova-2" || cfg.Transcriber.Language != "en-US" {
		t.Fatalf("expected transcriber settings to parse, got %+v", cfg.Transcriber)
	}
	if cfg.Generator.Provider != "gemini" || cfg.Generator.Model != "gemini-2.0-flash" {
		t.Fatalf("expected generator settings to parse, got %+v", cfg.Generator)
	}
	if cfg.Synthesizer.Voice != "aura-luna-en" {
		t.Fatalf("expected synthesizer settings to parse, got %+v", cfg.Synthesizer)
	}
	if cfg.Audio.Driver != "portaudio" || cfg.Audio.BufferSize != 1024 {
		t.Fatalf("expected audio settings to parse, got %+v", cfg.Audio)
	}
}

func TestLoadConfigAppliesProviderDefaults(t *testing.T) {
	path := writeConfig(t, "greeting: hello\n")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Transcriber.Provider != "deepgram" {
		t.Fatalf("expected the default transcriber provider, got %q", cfg.Transcriber.Provider)
	}
	if cfg.Generator.Provider != "openai" {
		t.Fatalf("expected the default generator provider, got %q", cfg.Generator.Provider)
	}
	if cfg.Synthesizer.Provider != "deepgram" {
		t.Fatalf("expected the default synthesizer provider, got %q", cfg.Synthesizer.Provider)
	}
	if cfg.Audio.Driver != "miniaudio" || cfg.Audio.BufferSize != 512 {
		t.Fatalf("expected the default audio settings, got %+v", cfg.Audio)
	}
}

func TestLoadConfigReportsMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected a missing config file to error")
	}
}

func TestLoadConfigReportsInvalidYAML(t *testing.T) {
	path := writeConfig(t, "greeting: [unclosed\n")

	if _, err := LoadConfig(path); err == nil {
		t.Fatalf("expected invalid YAML to error")
	}
}
