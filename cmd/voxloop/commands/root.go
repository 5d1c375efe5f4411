package commands

import (
	"github.com/spf13/cobra"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "voxloop",
	Short: "Real-time spoken conversation pipeline",
	Long: `voxloop - a real-time spoken conversation pipeline.

Captures microphone audio, detects speech, transcribes it, generates a
response with an LLM and speaks it back, with barge-in interruption.

Sessions are described by a YAML config file:

  greeting: "Hi! How can I help?"
  system_prompt: "You are a concise voice assistant."
  transcriber:
    provider: deepgram
    model: nova-2
  generator:
    provider: openai
    model: gpt-4o-mini
  synthesizer:
    provider: deepgram
    voice: aura-asteria-en
  audio:
    driver: miniaudio

API keys are read from the config file or from the environment
(DEEPGRAM_API_KEY, OPENAI_API_KEY, GEMINI_API_KEY).

Examples:
  voxloop run -f session.yaml
  voxloop run -f session.yaml --console`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
