package search_test

import (
	"testing"

	"github.com/fwojciec/trawl"
	"github.com/fwojciec/trawl/search"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyze_SpellCorrection(t *testing.T) {
	t.Parallel()

	t.Run("corrects misspelled technical terms", func(t *testing.T) {
		t.Parallel()

		a := search.Analyze("java concurency tutoral")
		assert.Equal(t, []string{"java", "concurrency", "tutorial"}, a.Terms)
		assert.Equal(t, "java concurrency tutorial", a.Corrected)
	})

	t.Run("leaves correct queries untouched", func(t *testing.T) {
		t.Parallel()

		a := search.Analyze("java concurrency tutorial")
		assert.Equal(t, []string{"java", "concurrency", "tutorial"}, a.Terms)
		assert.Empty(t, a.Corrected)
	})

	t.Run("short tokens are never corrected", func(t *testing.T) {
		t.Parallel()

		a := search.Analyze("goo api")
		assert.Equal(t, []string{"goo", "api"}, a.Terms)
		assert.Empty(t, a.Corrected)
	})

	t.Run("distant words stay as typed", func(t *testing.T) {
		t.Parallel()

		a := search.Analyze("xylophone lessons")
		assert.Equal(t, []string{"xylophone", "lessons"}, a.Terms)
	})

	t.Run("normalizes case and whitespace", func(t *testing.T) {
		t.Parallel()

		a := search.Analyze("  Java   CONCURRENCY  ")
		assert.Equal(t, []string{"java", "concurrency"}, a.Terms)
	})
}

func TestAnalyze_Synonyms(t *testing.T) {
	t.Parallel()

	a := search.Analyze("java concurrency tutorial")
	assert.Contains(t, a.Synonyms, "jvm")
	assert.Contains(t, a.Synonyms, "jdk")
	assert.Contains(t, a.Synonyms, "multithreading")
	assert.Contains(t, a.Synonyms, "parallel")
	assert.Contains(t, a.Synonyms, "guide")
}

func TestAnalyze_Entities(t *testing.T) {
	t.Parallel()

	a := search.Analyze("python 2024 v1.22.3 release")
	require.Len(t, a.Entities, 3)
	assert.Equal(t, search.Entity{Text: "python", Kind: "language"}, a.Entities[0])
	assert.Equal(t, search.Entity{Text: "2024", Kind: "year"}, a.Entities[1])
	assert.Equal(t, search.Entity{Text: "v1.22.3", Kind: "version"}, a.Entities[2])
}

func TestAnalyze_SiteOperator(t *testing.T) {
	t.Parallel()

	t.Run("extracts the domain and drops the operator from the terms", func(t *testing.T) {
		t.Parallel()

		a := search.Analyze("goroutine leak site:go.dev")
		assert.Equal(t, []string{"goroutine", "leak"}, a.Terms)
		require.Len(t, a.Entities, 1)
		assert.Equal(t, search.Entity{Text: "go.dev", Kind: "domain"}, a.Entities[0])
	})

	t.Run("a bare operator contributes nothing", func(t *testing.T) {
		t.Parallel()

		a := search.Analyze("golang site:")
		assert.Equal(t, []string{"golang"}, a.Terms)
		assert.Empty(t, a.Entities)
	})
}

func TestAnalyze_Intent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		query string
		want  trawl.QueryIntent
	}{
		{"how to install go", trawl.IntentQuestion},
		{"what is a goroutine?", trawl.IntentQuestion},
		{"java concurrency tutorial", trawl.IntentTutorial},
		{"learn rust", trawl.IntentTutorial},
		{"net/http api reference", trawl.IntentDocumentation},
		{"fix nil pointer panic", trawl.IntentTroubleshooting},
		{"golang channels", trawl.IntentGeneral},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, search.Analyze(tt.query).Intent)
		})
	}
}
