package data

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"

	"tesla-sdk/internal/apperr"
	"tesla-sdk/internal/auth"
)

const (
	cacheFileMode = 0o640
	cacheDirMode  = 0o700
)

// FileCache is the JSON token cache: one object keyed by account identity.
// Records of other identities are written back untouched.
type FileCache struct {
	fs     afero.Fs
	path   string
	logger *slog.Logger

	mu sync.Mutex
}

var _ auth.TokenCache = (*FileCache)(nil)

// NewFileCache creates a cache stored at path on fsys.
func NewFileCache(fsys afero.Fs, path string, logger *slog.Logger) *FileCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileCache{
		fs:     fsys,
		path:   path,
		logger: logger.With("cache", path),
	}
}

// Path returns the cache file location.
func (c *FileCache) Path() string { return c.path }

// Load returns the record of identity. A missing, unreadable or malformed
// cache is reported as not found and the cache directory is created so that
// the next Save can succeed.
func (c *FileCache) Load(identity string) (auth.CacheRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries, err := c.readAll()
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			c.logger.Debug("cache file not found")
		} else {
			c.logger.Warn("cache unreadable, ignoring", "error", err)
		}
		c.ensureDir()
		return auth.CacheRecord{}, false
	}

	raw, ok := entries[identity]
	if !ok {
		return auth.CacheRecord{}, false
	}
	rec, err := decodeRecord(raw)
	if err != nil {
		c.logger.Warn("cache entry invalid, ignoring", "identity", identity, "error", err)
		return auth.CacheRecord{}, false
	}
	return rec, true
}

// Save writes record for identity. The file is replaced atomically, so a
// failed write leaves the previous contents in place.
func (c *FileCache) Save(identity string, record auth.CacheRecord) error {
	const op = "save cache"

	c.mu.Lock()
	defer c.mu.Unlock()

	entries, err := c.readAll()
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			c.logger.Warn("replacing unreadable cache", "error", err)
		}
		entries = make(map[string]json.RawMessage)
	}

	raw, err := json.Marshal(record)
	if err != nil {
		return apperr.Cache(op, err)
	}
	entries[identity] = raw

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return apperr.Cache(op, err)
	}
	if err := c.writeFile(data); err != nil {
		return apperr.Cache(op, err)
	}

	c.logger.Debug("cache updated", "identity", identity)
	return nil
}

func (c *FileCache) readAll() (map[string]json.RawMessage, error) {
	data, err := afero.ReadFile(c.fs, c.path)
	if err != nil {
		return nil, err
	}

	var entries map[string]json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse %s: %w", c.path, err)
	}
	if entries == nil {
		return nil, fmt.Errorf("parse %s: not an object", c.path)
	}
	return entries, nil
}

func (c *FileCache) writeFile(data []byte) error {
	dir := filepath.Dir(c.path)
	if err := c.fs.MkdirAll(dir, cacheDirMode); err != nil {
		return err
	}

	tmp, err := afero.TempFile(c.fs, dir, filepath.Base(c.path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	_, werr := tmp.Write(data)
	if cerr := tmp.Close(); werr == nil {
		werr = cerr
	}
	if werr == nil {
		werr = c.fs.Chmod(tmpName, cacheFileMode)
	}
	if werr == nil {
		werr = c.fs.Rename(tmpName, c.path)
	}
	if werr != nil {
		_ = c.fs.Remove(tmpName)
		return werr
	}
	return nil
}

func (c *FileCache) ensureDir() {
	if err := c.fs.MkdirAll(filepath.Dir(c.path), cacheDirMode); err != nil {
		c.logger.Warn("cannot create cache directory", "error", err)
	}
}

// decodeRecord requires an sso object; the url may be absent.
func decodeRecord(raw json.RawMessage) (auth.CacheRecord, error) {
	var entry struct {
		URL string      `json:"url"`
		SSO *auth.Token `json:"sso"`
	}
	if err := json.Unmarshal(raw, &entry); err != nil {
		return auth.CacheRecord{}, err
	}
	if entry.SSO == nil {
		return auth.CacheRecord{}, errors.New("missing sso token")
	}
	return auth.CacheRecord{URL: entry.URL, SSO: *entry.SSO}, nil
}
