package engine

// Defaults applied when a request leaves a knob unset. Temperature and top_p
// follow the OpenAI contract; seed and the repetition penalty follow the
// server's historical values.
const (
	DefaultTemperature   = 1.0
	DefaultTopP          = 1.0
	DefaultSeed          = 299792458
	DefaultRepeatPenalty = 1.1
	DefaultRepeatLastN   = 64
)

// Request is a fully resolved generation request. The protocol layer builds
// it from Options so every field carries a usable value.
type Request struct {
	Prompt string

	// MaxTokens bounds the number of generated tokens; 0 means bounded only
	// by the context window.
	MaxTokens int

	Temperature   float64
	TopP          float64
	Seed          int64
	RepeatPenalty float64
	RepeatLastN   int

	// Stop strings end generation when they appear in the output; the
	// matched string is excluded from the returned text.
	Stop []string
}

// Options mirrors Request with pointer fields so unset can be told apart
// from zero.
type Options struct {
	Prompt        string
	MaxTokens     *int
	Temperature   *float64
	TopP          *float64
	Seed          *int64
	RepeatPenalty *float64
	RepeatLastN   *int
	Stop          []string
}

// Resolve fills in defaults for every unset option.
func Resolve(opts Options) Request {
	req := Request{
		Prompt:        opts.Prompt,
		MaxTokens:     0,
		Temperature:   DefaultTemperature,
		TopP:          DefaultTopP,
		Seed:          DefaultSeed,
		RepeatPenalty: DefaultRepeatPenalty,
		RepeatLastN:   DefaultRepeatLastN,
		Stop:          opts.Stop,
	}
	if opts.MaxTokens != nil {
		req.MaxTokens = *opts.MaxTokens
	}
	if opts.Temperature != nil {
		req.Temperature = *opts.Temperature
	}
	if opts.TopP != nil {
		req.TopP = *opts.TopP
	}
	if opts.Seed != nil {
		req.Seed = *opts.Seed
	}
	if opts.RepeatPenalty != nil {
		req.RepeatPenalty = *opts.RepeatPenalty
	}
	if opts.RepeatLastN != nil {
		req.RepeatLastN = *opts.RepeatLastN
	}
	return req
}
