package idgen

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGeneratorUsesPrefixAndAlphabet(t *testing.T) {
	generator := NewGenerator(PrefixBlock)
	pattern := regexp.MustCompile(`^` + regexp.QuoteMeta(PrefixBlock) + `[a-zA-Z0-9]{12}$`)

	seen := make(map[string]struct{}, 1000)
	for iteration := 0; iteration < 1000; iteration++ {
		identifier, err := generator.NewID()
		require.NoError(t, err)
		require.Regexp(t, pattern, identifier)
		_, duplicate := seen[identifier]
		require.False(t, duplicate, identifier)
		seen[identifier] = struct{}{}
	}
}
