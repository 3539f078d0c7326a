package tokenizer

import (
	"unicode/utf8"
)

// EstimatorTokenizer is a character-count-based token estimator. It
// distinguishes CJK and ASCII characters for better accuracy than a naive
// len/4 approach.
type EstimatorTokenizer struct {
	model     string
	maxTokens int
}

// NewEstimatorTokenizer creates a generic estimator.
func NewEstimatorTokenizer(model string, maxTokens int) *EstimatorTokenizer {
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &EstimatorTokenizer{
		model:     model,
		maxTokens: maxTokens,
	}
}

func (e *EstimatorTokenizer) CountTokens(text string) (int, error) {
	if text == "" {
		return 0, nil
	}

	totalChars := utf8.RuneCountInString(text)
	cjkCount := 0
	for _, r := range text {
		if isCJK(r) {
			cjkCount++
		}
	}

	// CJK characters ~1.5 chars/token, ASCII ~4 chars/token.
	cjkTokens := float64(cjkCount) / 1.5
	asciiTokens := float64(totalChars-cjkCount) / 4.0
	estimated := int(cjkTokens + asciiTokens)

	if estimated == 0 {
		estimated = 1
	}
	return estimated, nil
}

func (e *EstimatorTokenizer) CountMessages(messages []Message) (int, error) {
	total := 0
	for _, msg := range messages {
		tokens, err := e.CountTokens(msg.Content)
		if err != nil {
			return 0, err
		}
		// Each message has ~4 tokens of overhead.
		total += tokens + 4
	}
	return total, nil
}

func (e *EstimatorTokenizer) MaxTokens() int { return e.maxTokens }

func (e *EstimatorTokenizer) Name() string { return "estimator" }

func isCJK(r rune) bool {
	switch {
	case r >= 0x4E00 && r <= 0x9FFF: // CJK Unified Ideographs
		return true
	case r >= 0x3400 && r <= 0x4DBF: // CJK Extension A
		return true
	case r >= 0x3040 && r <= 0x30FF: // Hiragana, Katakana
		return true
	case r >= 0xAC00 && r <= 0xD7AF: // Hangul Syllables
		return true
	default:
		return false
	}
}
