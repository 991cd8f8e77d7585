// Package idgen generates short URL-safe identifiers for builder sessions and blocks.
package idgen

import (
	"fmt"

	nanoid "github.com/matoous/go-nanoid/v2"
)

const (
	Alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	Length   = 12

	PrefixTimerSession  = "tmr_"
	PrefixWidgetSession = "wgt_"
	PrefixBlock         = "blk_"
)

// Generator produces prefixed nanoid identifiers.
type Generator struct {
	prefix string
}

// NewGenerator returns a Generator that prepends prefix to every identifier.
func NewGenerator(prefix string) *Generator {
	return &Generator{prefix: prefix}
}

// NewID returns a fresh identifier.
func (generator *Generator) NewID() (string, error) {
	return GenerateWithPrefix(generator.prefix)
}

// GenerateWithPrefix returns a new identifier with the given prefix.
func GenerateWithPrefix(prefix string) (string, error) {
	identifier, err := nanoid.Generate(Alphabet, Length)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return prefix + identifier, nil
}
