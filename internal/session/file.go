package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/uncleJim21/pullthatupjamie/internal/quota"
)

// FileStore is a Store persisted to a TOML file so a sign-in survives restarts.
// Every write rewrites the file with 0600 permissions.
type FileStore struct {
	mem  Memory
	path string
}

var _ Store = (*FileStore)(nil)

type fileRecord struct {
	Token string `toml:"token"`
	Tier  string `toml:"tier"`
}

// OpenFile loads the session at path. A missing or unreadable file yields an
// anonymous session; the file is created on the first write.
func OpenFile(path string) (*FileStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("session path is empty")
	}
	fs := &FileStore{path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fs, nil
		}
		return nil, fmt.Errorf("read session: %w", err)
	}

	var rec fileRecord
	if err := toml.Unmarshal(data, &rec); err != nil {
		// A corrupt session file is treated as signed out.
		return fs, nil
	}
	_ = fs.mem.SetCredentials(rec.Token, quota.ParseTier(rec.Tier))
	return fs, nil
}

// Path returns the backing file.
func (f *FileStore) Path() string { return f.path }

func (f *FileStore) Token() string    { return f.mem.Token() }
func (f *FileStore) Tier() quota.Tier { return f.mem.Tier() }

func (f *FileStore) SetCredentials(token string, tier quota.Tier) error {
	_ = f.mem.SetCredentials(token, tier)
	return f.save()
}

func (f *FileStore) SetTier(tier quota.Tier) error {
	_ = f.mem.SetTier(tier)
	return f.save()
}

// Clear drops the credentials in memory first so no request can pick up the
// stale token even if the file write fails.
func (f *FileStore) Clear() error {
	_ = f.mem.Clear()
	return f.save()
}

func (f *FileStore) save() error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	data, err := toml.Marshal(fileRecord{Token: f.mem.Token(), Tier: string(f.mem.Tier())})
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := os.WriteFile(f.path, data, 0o600); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}
