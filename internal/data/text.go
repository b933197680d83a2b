package data

import (
	"github.com/pkg/errors"
	"github.com/pkoukk/tiktoken-go"
)

// DefaultEncoding is the tiktoken encoding used by NewTokenFeaturizer when
// none is given.
const DefaultEncoding = "cl100k_base"

// TokenFeaturizer maps text to binary visible vectors: the text is split into
// BPE tokens and unit (token mod width) is switched on for every token seen.
type TokenFeaturizer struct {
	encoding *tiktoken.Tiktoken
	name     string
	width    int
}

// NewTokenFeaturizer loads a tiktoken encoding ("cl100k_base", "p50k_base",
// "r50k_base") and hashes its tokens into width visible units.
func NewTokenFeaturizer(encodingName string, width int) (*TokenFeaturizer, error) {
	if width <= 0 {
		return nil, errors.Errorf("data: featurizer width must be positive, got %d", width)
	}
	if encodingName == "" {
		encodingName = DefaultEncoding
	}
	encoding, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load tiktoken encoding %q", encodingName)
	}
	return &TokenFeaturizer{encoding: encoding, name: encodingName, width: width}, nil
}

// Name returns the encoding name.
func (f *TokenFeaturizer) Name() string {
	return f.name
}

// Width returns the number of visible units produced per text.
func (f *TokenFeaturizer) Width() int {
	return f.width
}

// Tokens returns the token IDs of text.
func (f *TokenFeaturizer) Tokens(text string) []int {
	return f.encoding.Encode(text, nil, nil)
}

// Features returns the binary bag-of-tokens vector of text.
func (f *TokenFeaturizer) Features(text string) []float32 {
	out := make([]float32, f.width)
	for _, tok := range f.Tokens(text) {
		out[tok%f.width] = 1
	}
	return out
}

// NewTextDataset featurizes texts into an in-memory dataset.
func NewTextDataset(f *TokenFeaturizer, texts []string, labels []int32) (*InMemory, error) {
	if len(texts) != len(labels) {
		return nil, errors.Errorf("data: %d texts but %d labels", len(texts), len(labels))
	}
	features := make([][]float32, len(texts))
	for i, text := range texts {
		features[i] = f.Features(text)
	}
	return NewInMemory(features, labels)
}
