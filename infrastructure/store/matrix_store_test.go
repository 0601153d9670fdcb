package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-tourney/internal/domain"
	"github.com/ahrav/go-tourney/internal/ports"
)

func sampleMatrix(t *testing.T) *domain.ScoreMatrix {
	t.Helper()
	roster, err := domain.NewRoster("openai/a", "openai/b", "google/c")
	require.NoError(t, err)
	m := domain.NewScoreMatrix(roster)
	require.NoError(t, m.Record("openai/a", "openai/b", domain.VerdictLeftWins))
	require.NoError(t, m.Record("openai/a", "google/c", domain.VerdictTie))
	require.NoError(t, m.Record("openai/b", "google/c", domain.VerdictUnparseable))
	return m
}

func TestSafeFileName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"openai/gpt-4.1", "openai_gpt-4.1"},
		{`a<b>c:d"e/f\g|h?i*j`, "a_b_c_d_e_f_g_h_i_j"},
		{"plain", "plain"},
		{"ollama//llama3:8b", "ollama_llama3_8b"},
		{`a<>:"/\|?*b`, "a_b"},
		{" .hidden. ", "hidden"},
		{"..a/b..", "a_b"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SafeFileName(tt.in))
	}
}

func TestMatrixStore_SaveLoad(t *testing.T) {
	ctx := context.Background()
	s, err := NewMatrixStore(t.TempDir())
	require.NoError(t, err)

	t.Run("missing matrix", func(t *testing.T) {
		m, ok, err := s.Load(ctx, "42", "openai/judge")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Nil(t, m)
	})

	t.Run("round trip", func(t *testing.T) {
		want := sampleMatrix(t)
		require.NoError(t, s.Save(ctx, "42", "openai/judge", want))

		got, ok, err := s.Load(ctx, "42", "openai/judge")
		require.NoError(t, err)
		require.True(t, ok)
		assert.True(t, want.Equal(got))
		assert.FileExists(t, filepath.Join(s.dir, "df.42.openai_judge.json"))
	})

	t.Run("save replaces", func(t *testing.T) {
		m := sampleMatrix(t)
		require.NoError(t, m.Record("openai/b", "google/c", domain.VerdictRightWins))
		require.NoError(t, s.Save(ctx, "42", "openai/judge", m))

		got, _, err := s.Load(ctx, "42", "openai/judge")
		require.NoError(t, err)
		cell, err := got.At("google/c", "openai/b")
		require.NoError(t, err)
		assert.Equal(t, domain.OutcomeWin, cell)
	})

	t.Run("corrupt file", func(t *testing.T) {
		require.NoError(t, os.WriteFile(s.Path("bad", "j"), []byte("{"), 0o644))
		_, _, err := s.Load(ctx, "bad", "j")

		var se *ports.StoreError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, "load", se.Operation)
		assert.ErrorIs(t, err, ports.ErrCacheCorrupted)
	})

	t.Run("incomplete file", func(t *testing.T) {
		require.NoError(t, os.WriteFile(s.Path("half", "j"), []byte(`{"text_id":"half"}`), 0o644))
		_, _, err := s.Load(ctx, "half", "j")

		assert.ErrorIs(t, err, ports.ErrCacheCorrupted)
	})
}

func TestMatrixStore_LoadAll(t *testing.T) {
	ctx := context.Background()
	s, err := NewMatrixStore(t.TempDir())
	require.NoError(t, err)

	m := sampleMatrix(t)
	require.NoError(t, s.Save(ctx, "1", "openai/a", m))
	require.NoError(t, s.Save(ctx, "1", "google/c", m))
	require.NoError(t, s.Save(ctx, "2", "openai/a", m))
	require.NoError(t, os.WriteFile(filepath.Join(s.dir, "notes.txt"), []byte("ignored"), 0o644))

	results, err := s.LoadAll(ctx)
	require.NoError(t, err)

	assert.Equal(t, []string{"1", "2"}, results.TextIDs())
	assert.Equal(t, []string{"google/c", "openai/a"}, results.JudgeIDs("1"), "ids survive file name escaping")
	assert.True(t, m.Equal(results["2"]["openai/a"]))
}

func TestMatrixStore_Lock(t *testing.T) {
	ctx := context.Background()
	s, err := NewMatrixStore(t.TempDir())
	require.NoError(t, err)
	s.lockRetry = 5 * time.Millisecond

	// Given a held lock
	unlock, err := s.Lock(ctx, "1", "openai/a")
	require.NoError(t, err)

	// When another holder tries with a short deadline
	short, cancel := context.WithTimeout(ctx, 30*time.Millisecond)
	defer cancel()
	_, err = s.Lock(short, "1", "openai/a")

	// Then it gives up with ErrLockUnavailable
	assert.ErrorIs(t, err, ports.ErrLockUnavailable)

	// And other pairs are unaffected
	other, err := s.Lock(ctx, "1", "google/c")
	require.NoError(t, err)
	require.NoError(t, other())

	// And the lock is available again once released
	require.NoError(t, unlock())
	again, err := s.Lock(ctx, "1", "openai/a")
	require.NoError(t, err)
	require.NoError(t, again())
}
