package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// fileStore keeps the record set in a single YAML document, one key per
// actor with an active cooldown. The file is rewritten wholesale on every
// save via a temp file and rename, so readers never see a partial write.
type fileStore struct {
	path string
}

func NewFile(path string) (Store, error) {
	if strings.TrimSpace(path) == "" {
		path = "cooldowns.yml"
	}
	return &fileStore{path: path}, nil
}

func (s *fileStore) Init(_ context.Context) error {
	dir := filepath.Dir(s.path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create data directory: %w", err)
		}
	}
	if _, err := os.Stat(s.path); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return err
		}
		if err := os.WriteFile(s.path, []byte{}, 0o644); err != nil {
			return fmt.Errorf("create cooldown file: %w", err)
		}
	}
	return nil
}

func (s *fileStore) Load(_ context.Context) (map[string]int64, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]int64{}, nil
		}
		return nil, err
	}
	records := make(map[string]int64)
	if len(strings.TrimSpace(string(data))) == 0 {
		return records, nil
	}
	if err := yaml.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode cooldown file: %w", err)
	}
	return records, nil
}

func (s *fileStore) Save(_ context.Context, records map[string]int64) error {
	var data []byte
	if len(records) > 0 {
		var err error
		data, err = yaml.Marshal(records)
		if err != nil {
			return err
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

func (s *fileStore) Close() error {
	return nil
}
