package store

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/jmoiron/sqlx"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-tourney/internal/domain"
	"github.com/ahrav/go-tourney/internal/ports"
)

// TextFilter narrows the texts a source returns.
type TextFilter struct {
	// Language keeps only texts in this language when set.
	Language string

	// IDs keeps only these ids when non-empty.
	IDs []string

	// Limit caps the number of texts. Zero means no cap.
	Limit int
}

func (f TextFilter) apply(texts []domain.Text) []domain.Text {
	out := texts[:0]
	for _, t := range texts {
		if f.Language != "" && !strings.EqualFold(t.Language, f.Language) {
			continue
		}
		if len(f.IDs) > 0 && !slices.Contains(f.IDs, t.ID) {
			continue
		}
		out = append(out, t)
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out
}

// SQLiteTexts reads the communications table of a dataset database.
type SQLiteTexts struct {
	path   string
	filter TextFilter
}

var _ ports.TextSource = (*SQLiteTexts)(nil)

// NewSQLiteTexts reads texts from the database at path.
func NewSQLiteTexts(path string, filter TextFilter) *SQLiteTexts {
	return &SQLiteTexts{path: path, filter: filter}
}

// Texts returns the matching communications ordered by id.
func (s *SQLiteTexts) Texts(ctx context.Context) ([]domain.Text, error) {
	db, err := sqlx.ConnectContext(ctx, "sqlite3", "file:"+s.path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("opening dataset %s: %w", s.path, err)
	}
	defer db.Close()

	var texts []domain.Text
	err = db.SelectContext(ctx, &texts, `
		SELECT CAST(id AS TEXT) AS id, text, COALESCE(context, '') AS context, language
		FROM communications
		ORDER BY communications.id
	`)
	if err != nil {
		return nil, fmt.Errorf("reading communications: %w", err)
	}
	return s.filter.apply(texts), nil
}

// YAMLTexts reads a list of texts from a YAML file:
//
//	- id: "1"
//	  text: "..."
//	  context: "..."
//	  language: es
type YAMLTexts struct {
	path   string
	filter TextFilter
}

var _ ports.TextSource = (*YAMLTexts)(nil)

// NewYAMLTexts reads texts from the file at path.
func NewYAMLTexts(path string, filter TextFilter) *YAMLTexts {
	return &YAMLTexts{path: path, filter: filter}
}

// Texts decodes the file. Every entry needs an id and a text, and ids must
// be unique.
func (y *YAMLTexts) Texts(_ context.Context) ([]domain.Text, error) {
	data, err := os.ReadFile(y.path)
	if err != nil {
		return nil, fmt.Errorf("reading texts file: %w", err)
	}

	var texts []domain.Text
	if err := yaml.Unmarshal(data, &texts); err != nil {
		return nil, fmt.Errorf("parsing texts file: %w", err)
	}

	seen := make(map[string]bool, len(texts))
	for i, t := range texts {
		if t.ID == "" || strings.TrimSpace(t.Body) == "" {
			return nil, fmt.Errorf("text %d: id and text are required", i)
		}
		if seen[t.ID] {
			return nil, fmt.Errorf("text %d: duplicate id %q", i, t.ID)
		}
		seen[t.ID] = true
	}
	return y.filter.apply(texts), nil
}
