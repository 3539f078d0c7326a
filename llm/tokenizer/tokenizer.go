// Package tokenizer provides token counting for prompt budget checks and
// usage accounting fallback when a provider omits usage in its response.
package tokenizer

// Tokenizer is the unified token counting interface.
type Tokenizer interface {
	// CountTokens returns the token count of the given text.
	CountTokens(text string) (int, error)

	// CountMessages returns the total token count of a message list,
	// including per-message overhead (role markers, separators).
	CountMessages(messages []Message) (int, error)

	// MaxTokens returns the model's maximum context length.
	MaxTokens() int

	// Name returns the tokenizer's name.
	Name() string
}

// Message is a lightweight message shape used by this package to avoid a
// dependency cycle with the llm package.
type Message struct {
	Role    string
	Content string
}

// ForModel returns the best tokenizer for the given model: exact tiktoken
// counting where the encoding is available, falling back to the
// character-ratio estimator when it is not (tiktoken may need to fetch
// encoding data on first use).
func ForModel(model string) Tokenizer {
	tk, err := NewTiktokenTokenizer(model)
	if err != nil {
		return NewEstimatorTokenizer(model, 0)
	}
	return &fallbackTokenizer{
		primary: tk,
		backup:  NewEstimatorTokenizer(model, tk.MaxTokens()),
	}
}

// fallbackTokenizer tries the primary tokenizer and degrades to the backup
// when the primary errors.
type fallbackTokenizer struct {
	primary Tokenizer
	backup  Tokenizer
}

func (f *fallbackTokenizer) CountTokens(text string) (int, error) {
	if n, err := f.primary.CountTokens(text); err == nil {
		return n, nil
	}
	return f.backup.CountTokens(text)
}

func (f *fallbackTokenizer) CountMessages(messages []Message) (int, error) {
	if n, err := f.primary.CountMessages(messages); err == nil {
		return n, nil
	}
	return f.backup.CountMessages(messages)
}

func (f *fallbackTokenizer) MaxTokens() int { return f.primary.MaxTokens() }

func (f *fallbackTokenizer) Name() string { return f.primary.Name() }
