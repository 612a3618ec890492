package corpus

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCorpusFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "documentation.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoader_Load(t *testing.T) {
	t.Run("loads valid passages", func(t *testing.T) {
		path := writeCorpusFile(t, `[
			{"id": "kb-1", "category": "account", "question": "How do I reset my password?", "answer": "Go to Settings > Security.", "tags": ["password", "security"]},
			{"id": "kb-2", "category": "billing", "question": "How do I update my card?", "answer": "Open Billing and edit the payment method.", "tags": ["billing"]}
		]`)

		passages, err := NewLoader(path, nil).Load()
		require.NoError(t, err)
		require.Len(t, passages, 2)
		assert.Equal(t, "kb-1", passages[0].ID)
		assert.Equal(t, path, passages[0].Source)
	})

	t.Run("skips records with missing required fields", func(t *testing.T) {
		path := writeCorpusFile(t, `[
			{"id": "kb-1", "category": "account", "question": "q", "answer": "a", "tags": []},
			{"id": "kb-2", "category": "billing", "question": "", "answer": "a", "tags": []}
		]`)

		passages, err := NewLoader(path, nil).Load()
		require.NoError(t, err)
		require.Len(t, passages, 1)
		assert.Equal(t, "kb-1", passages[0].ID)
	})

	t.Run("rejects duplicate ids", func(t *testing.T) {
		path := writeCorpusFile(t, `[
			{"id": "kb-1", "category": "account", "question": "q", "answer": "a", "tags": []},
			{"id": "kb-1", "category": "billing", "question": "q2", "answer": "a2", "tags": []}
		]`)

		_, err := NewLoader(path, nil).Load()
		assert.ErrorContains(t, err, "duplicate passage id")
	})

	t.Run("empty corpus returns ErrNoPassages", func(t *testing.T) {
		path := writeCorpusFile(t, `[]`)

		_, err := NewLoader(path, nil).Load()
		assert.ErrorIs(t, err, ErrNoPassages)
	})

	t.Run("missing file returns error", func(t *testing.T) {
		_, err := NewLoader(filepath.Join(t.TempDir(), "missing.json"), nil).Load()
		assert.Error(t, err)
	})
}

func TestPassage_Text(t *testing.T) {
	p := Passage{
		Category: "account",
		Question: "How do I reset my password?",
		Answer:   "Go to Settings > Security.",
		Tags:     []string{"password", "security"},
	}

	assert.Equal(t,
		"Category: account\nQuestion: How do I reset my password?\nAnswer: Go to Settings > Security.\nTags: password, security",
		p.Text())
}
