package main

import (
	"flag"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/urfave/cli/v2"

	"github.com/citable/quotefind/core"
)

func runSetupLogger(t *testing.T, level string) error {
	t.Helper()
	set := flag.NewFlagSet("test", flag.ContinueOnError)
	set.String("log-level", level, "")
	return setupLogger(cli.NewContext(cli.NewApp(), set, nil))
}

func TestSetupLogger(t *testing.T) {
	t.Run("accepts known levels", func(t *testing.T) {
		for _, level := range []string{"debug", "info", "warn", "error", "WARN"} {
			assert.NoError(t, runSetupLogger(t, level), level)
		}
	})

	t.Run("rejects unknown levels", func(t *testing.T) {
		err := runSetupLogger(t, "verbose")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "invalid log level")
	})
}

func TestFormatResult(t *testing.T) {
	doc := &core.Document{Path: "papers/smith.txt"}

	t.Run("structural hit with line range", func(t *testing.T) {
		line := formatResult(&core.SearchResult{
			Similarity: 0.912,
			Document:   doc,
			StartLine:  12,
			EndLine:    14,
			Method:     core.MethodFuzzy,
		})
		assert.Equal(t, "papers/smith.txt:12-14 [fuzzy 0.912]", line)
	})

	t.Run("single line collapses the range", func(t *testing.T) {
		line := formatResult(&core.SearchResult{
			Similarity: 1.0,
			Document:   doc,
			StartLine:  7,
			EndLine:    7,
			Method:     core.MethodExact,
		})
		assert.Equal(t, "papers/smith.txt:7 [exact 1.000]", line)
	})

	t.Run("semantic hit has no line info", func(t *testing.T) {
		line := formatResult(&core.SearchResult{
			Similarity: 0.97,
			Document:   doc,
			Method:     core.MethodEmbedding,
		})
		assert.Equal(t, "papers/smith.txt [embedding 0.970]", line)
	})
}
