package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/linkenthegreat/docex/internal/domain"
)

// FileStore persists one JSON file per job under a local directory. It is the
// default store: simple, debuggable, and crash-isolated per record. Writes go
// to a temp file in the same directory followed by a rename, so a crash
// mid-write leaves either the old or the new version readable.
type FileStore struct {
	dir    string
	logger zerolog.Logger
}

// NewFileStore initializes a FileStore rooted at dir, creating it if needed.
func NewFileStore(dir string, logger zerolog.Logger) (*FileStore, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, errors.New("store: directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: ensure directory: %w", err)
	}
	return &FileStore{dir: dir, logger: logger}, nil
}

func (s *FileStore) Save(ctx context.Context, job *domain.Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	name, err := recordName(job.ID)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(job, "", "  ")
	if err != nil {
		return fmt.Errorf("store: encode job %s: %w", job.ID, err)
	}

	tmp, err := os.CreateTemp(s.dir, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("store: create temp: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("store: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("store: sync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("store: close temp: %w", err)
	}
	if err := os.Rename(tmpName, filepath.Join(s.dir, name)); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("store: replace record: %w", err)
	}
	return nil
}

func (s *FileStore) Load(ctx context.Context, id string) (*domain.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name, err := recordName(id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("store: read record: %w", err)
	}
	var job domain.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("store: decode record %s: %w", id, err)
	}
	return &job, nil
}

// LoadAll reads every persisted record. A record that fails to parse is
// logged and skipped so one corrupt file never blocks startup recovery.
func (s *FileStore) LoadAll(ctx context.Context) ([]*domain.Job, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("store: read directory: %w", err)
	}
	var jobs []*domain.Job
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			s.logger.Warn().Err(err).Str("file", entry.Name()).Msg("store: skipping unreadable record")
			continue
		}
		var job domain.Job
		if err := json.Unmarshal(data, &job); err != nil {
			s.logger.Warn().Err(err).Str("file", entry.Name()).Msg("store: skipping corrupt record")
			continue
		}
		if job.ID == "" {
			s.logger.Warn().Str("file", entry.Name()).Msg("store: skipping record without id")
			continue
		}
		jobs = append(jobs, &job)
	}
	return jobs, nil
}

func (s *FileStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	name, err := recordName(id)
	if err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("store: delete record: %w", err)
	}
	return nil
}

// recordName maps a job id onto a file name, refusing ids that could escape
// the storage directory.
func recordName(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", errors.New("store: id is required")
	}
	if strings.ContainsAny(id, "/\\") || strings.Contains(id, "..") {
		return "", fmt.Errorf("store: invalid id %q", id)
	}
	return id + ".json", nil
}

var _ domain.JobStore = (*FileStore)(nil)
