package llms

// BaseOptions carries prompt inputs shared by all prompt styles.
type BaseOptions struct {
	Instructions string
	History      []Utterance
}

type GeneralPromptOptions struct {
	BaseOptions
	Tools []Tool
}

type StreamingPromptOptions struct {
	GeneralPromptOptions
}

type GeneralPromptOption interface {
	ApplyToGeneral(*GeneralPromptOptions)
}

type StreamingPromptOption interface {
	ApplyToStreaming(*StreamingPromptOptions)
}

type instructionsOption string

func (o instructionsOption) ApplyToGeneral(opts *GeneralPromptOptions) {
	opts.Instructions = string(o)
}

func (o instructionsOption) ApplyToStreaming(opts *StreamingPromptOptions) {
	opts.Instructions = string(o)
}

// WithInstructions sets the system instructions for the prompt.
func WithInstructions(instructions string) instructionsOption {
	return instructionsOption(instructions)
}

type historyOption []Utterance

func (o historyOption) ApplyToGeneral(opts *GeneralPromptOptions) {
	opts.History = []Utterance(o)
}

func (o historyOption) ApplyToStreaming(opts *StreamingPromptOptions) {
	opts.History = []Utterance(o)
}

// WithHistory sets the prior conversation the prompt continues. The caller
// must pass a snapshot; the slice is not copied.
func WithHistory(history []Utterance) historyOption {
	return historyOption(history)
}

type toolsOption []Tool

func (o toolsOption) ApplyToGeneral(opts *GeneralPromptOptions) {
	opts.Tools = append(opts.Tools, []Tool(o)...)
}

func (o toolsOption) ApplyToStreaming(opts *StreamingPromptOptions) {
	opts.Tools = append(opts.Tools, []Tool(o)...)
}

// WithTools exposes tools to the model for this prompt.
func WithTools(tools ...Tool) toolsOption {
	return toolsOption(tools)
}
