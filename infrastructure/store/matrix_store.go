// Package store persists tournament state on local disk: one JSON file
// per (text, judge) score matrix, a SQLite cache of competitor responses
// and the text datasets the tournament runs over.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/gofrs/flock"

	"github.com/ahrav/go-tourney/internal/domain"
	"github.com/ahrav/go-tourney/internal/ports"
)

const (
	matrixPrefix = "df."
	matrixSuffix = ".json"
	lockSuffix   = ".lock"
)

// DefaultLockRetry is how often a blocked Lock polls the file lock.
const DefaultLockRetry = 100 * time.Millisecond

// matrixFile is the on-disk envelope. File names are escaped, so the ids
// are stored alongside the matrix.
type matrixFile struct {
	TextID  string              `json:"text_id"`
	JudgeID string              `json:"judge_id"`
	SavedAt time.Time           `json:"saved_at"`
	Matrix  *domain.ScoreMatrix `json:"matrix"`
}

// MatrixStore keeps score matrices as JSON files under a directory.
type MatrixStore struct {
	dir       string
	lockRetry time.Duration
}

var _ ports.MatrixStore = (*MatrixStore)(nil)

// NewMatrixStore creates dir if needed.
func NewMatrixStore(dir string) (*MatrixStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating matrix dir: %w", err)
	}
	return &MatrixStore{dir: dir, lockRetry: DefaultLockRetry}, nil
}

// Path returns the file a pair's matrix lives in.
func (s *MatrixStore) Path(textID, judgeID string) string {
	return filepath.Join(s.dir, matrixPrefix+SafeFileName(textID)+"."+SafeFileName(judgeID)+matrixSuffix)
}

// Load reads the matrix for the pair.
func (s *MatrixStore) Load(ctx context.Context, textID, judgeID string) (*domain.ScoreMatrix, bool, error) {
	mf, err := readMatrixFile(s.Path(textID, judgeID))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, ports.NewStoreError(textID, judgeID, "load", err)
	}
	clog.FromContext(ctx).Debugf("loaded matrix for text %s judge %s", textID, judgeID)
	return mf.Matrix, true, nil
}

// Save writes the matrix through a temporary file and a rename, so readers
// never observe a partial file.
func (s *MatrixStore) Save(_ context.Context, textID, judgeID string, m *domain.ScoreMatrix) error {
	data, err := json.MarshalIndent(matrixFile{
		TextID:  textID,
		JudgeID: judgeID,
		SavedAt: time.Now().UTC(),
		Matrix:  m,
	}, "", "  ")
	if err != nil {
		return ports.NewStoreError(textID, judgeID, "encode", err)
	}

	path := s.Path(textID, judgeID)
	tmp, err := os.CreateTemp(s.dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return ports.NewStoreError(textID, judgeID, "save", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return ports.NewStoreError(textID, judgeID, "save", err)
	}
	if err := tmp.Close(); err != nil {
		return ports.NewStoreError(textID, judgeID, "save", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return ports.NewStoreError(textID, judgeID, "save", err)
	}
	return nil
}

// Lock takes the pair's file lock, polling until ctx is done.
func (s *MatrixStore) Lock(ctx context.Context, textID, judgeID string) (func() error, error) {
	fl := flock.New(s.Path(textID, judgeID) + lockSuffix)
	locked, err := fl.TryLockContext(ctx, s.lockRetry)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ports.NewStoreError(textID, judgeID, "lock", fmt.Errorf("%w: %w", ports.ErrLockUnavailable, err))
		}
		return nil, ports.NewStoreError(textID, judgeID, "lock", err)
	}
	if !locked {
		return nil, ports.NewStoreError(textID, judgeID, "lock", ports.ErrLockUnavailable)
	}
	return fl.Unlock, nil
}

// LoadAll reads every matrix file in the directory. Unreadable files are
// reported rather than skipped.
func (s *MatrixStore) LoadAll(ctx context.Context) (domain.Results, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("listing matrix dir: %w", err)
	}

	results := make(domain.Results)
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, matrixPrefix) || !strings.HasSuffix(name, matrixSuffix) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		mf, err := readMatrixFile(filepath.Join(s.dir, name))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", name, err)
		}
		results.Put(mf.TextID, mf.JudgeID, mf.Matrix)
	}
	clog.FromContext(ctx).Infof("loaded %d stored matrices from %s", len(results.Matrices()), s.dir)
	return results, nil
}

func readMatrixFile(path string) (*matrixFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var mf matrixFile
	if err := json.Unmarshal(data, &mf); err != nil {
		return nil, fmt.Errorf("decoding matrix: %w: %w", ports.ErrCacheCorrupted, err)
	}
	if mf.Matrix == nil || mf.TextID == "" || mf.JudgeID == "" {
		return nil, fmt.Errorf("decoding matrix: %w: incomplete file", ports.ErrCacheCorrupted)
	}
	return &mf, nil
}

var unsafeFileChars = regexp.MustCompile(`[<>:"/\\|?*]+`)

// SafeFileName replaces each run of characters that are invalid in file
// names on common platforms with one underscore, then trims leading and
// trailing dots and spaces.
func SafeFileName(name string) string {
	return strings.Trim(unsafeFileChars.ReplaceAllString(name, "_"), ". ")
}
