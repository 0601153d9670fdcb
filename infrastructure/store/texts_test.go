package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeDataset(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "psychological_abuse.sqlite")
	db, err := sqlx.Connect("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	db.MustExec(`CREATE TABLE communications (
		id INTEGER PRIMARY KEY,
		text TEXT NOT NULL,
		context TEXT,
		language TEXT NOT NULL,
		source_id TEXT,
		translation_of INTEGER,
		created_at TIMESTAMP
	)`)
	db.MustExec(`INSERT INTO communications (id, text, context, language) VALUES
		(1, 'Si me dejas, no vas a encontrar a nadie.', 'Pareja de cinco años', 'es'),
		(2, 'You never do anything right.', NULL, 'en'),
		(3, '¿Dónde estabas? Contéstame ya.', NULL, 'es')`)
	return path
}

func TestSQLiteTexts(t *testing.T) {
	path := writeDataset(t)

	t.Run("all", func(t *testing.T) {
		texts, err := NewSQLiteTexts(path, TextFilter{}).Texts(context.Background())
		require.NoError(t, err)
		require.Len(t, texts, 3)
		assert.Equal(t, "1", texts[0].ID)
		assert.Equal(t, "Pareja de cinco años", texts[0].Context)
		assert.Empty(t, texts[1].Context, "NULL context reads as empty")
	})

	t.Run("language and limit", func(t *testing.T) {
		texts, err := NewSQLiteTexts(path, TextFilter{Language: "ES", Limit: 1}).Texts(context.Background())
		require.NoError(t, err)
		require.Len(t, texts, 1)
		assert.Equal(t, "1", texts[0].ID)
	})

	t.Run("ids", func(t *testing.T) {
		texts, err := NewSQLiteTexts(path, TextFilter{IDs: []string{"3"}}).Texts(context.Background())
		require.NoError(t, err)
		require.Len(t, texts, 1)
		assert.Equal(t, "es", texts[0].Language)
	})
}

func TestYAMLTexts(t *testing.T) {
	write := func(t *testing.T, content string) string {
		t.Helper()
		path := filepath.Join(t.TempDir(), "texts.yaml")
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		return path
	}

	t.Run("valid", func(t *testing.T) {
		path := write(t, `
- id: a
  text: "Nadie más te va a querer."
  language: es
- id: b
  text: "I'm only saying this because I care."
  context: "Long-distance relationship"
  language: en
`)
		texts, err := NewYAMLTexts(path, TextFilter{Language: "en"}).Texts(context.Background())
		require.NoError(t, err)
		require.Len(t, texts, 1)
		assert.Equal(t, "b", texts[0].ID)
		assert.Equal(t, "Long-distance relationship", texts[0].Context)
	})

	t.Run("duplicate id", func(t *testing.T) {
		path := write(t, "- {id: a, text: x}\n- {id: a, text: y}\n")
		_, err := NewYAMLTexts(path, TextFilter{}).Texts(context.Background())
		assert.ErrorContains(t, err, "duplicate id")
	})

	t.Run("missing text", func(t *testing.T) {
		path := write(t, "- {id: a}\n")
		_, err := NewYAMLTexts(path, TextFilter{}).Texts(context.Background())
		assert.ErrorContains(t, err, "required")
	})
}
