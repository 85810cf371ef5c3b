package secrets

import (
	"crypto/rand"
	"errors"
	"math/big"

	"github.com/goliatone/go-enroll/pkg/types"
)

// DefaultLength is the fixed strength for batch-provisioned secrets.
const DefaultLength = 12

const defaultAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz23456789!@#$%&*"

// Generator draws temporary secrets from crypto/rand. A single instance is
// shared across a batch; it holds no state and is safe for concurrent use.
type Generator struct {
	length   int
	alphabet string
}

// Option customizes generator construction.
type Option func(*Generator)

// WithLength overrides the secret length. Values below 1 are ignored.
func WithLength(length int) Option {
	return func(g *Generator) {
		if length > 0 {
			g.length = length
		}
	}
}

// WithAlphabet overrides the symbol set.
func WithAlphabet(alphabet string) Option {
	return func(g *Generator) {
		if alphabet != "" {
			g.alphabet = alphabet
		}
	}
}

// NewGenerator constructs a Generator with the default mixed alphanumeric and
// symbol alphabet.
func NewGenerator(opts ...Option) *Generator {
	g := &Generator{
		length:   DefaultLength,
		alphabet: defaultAlphabet,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

var _ types.SecretGenerator = (*Generator)(nil)

// Generate returns a new random secret. Each call draws fresh entropy; two
// rows never share a secret except by astronomically unlikely collision.
func (g *Generator) Generate() (string, error) {
	if g == nil || g.length <= 0 || g.alphabet == "" {
		return "", errors.New("secrets: generator not configured")
	}
	max := big.NewInt(int64(len(g.alphabet)))
	out := make([]byte, g.length)
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = g.alphabet[n.Int64()]
	}
	return string(out), nil
}
