// Package datastore persists a single JSON document to disk with atomic writes.
package datastore

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// DataStore owns one JSON file. Save is skipped when the encoded document is unchanged.
type DataStore struct {
	file         string
	mu           sync.Mutex
	lastChecksum string
}

// New prepares a DataStore for filePath, creating the parent directory.
func New(filePath string) (*DataStore, error) {
	if filePath == "" {
		return nil, fmt.Errorf("file path cannot be empty")
	}

	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	return &DataStore{file: filePath}, nil
}

// Path returns the backing file.
func (ds *DataStore) Path() string { return ds.file }

// Load decodes the file into v. It returns false without error when the file does not exist.
func (ds *DataStore) Load(v any) (bool, error) {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	data, err := os.ReadFile(ds.file)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read file: %w", err)
	}

	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("invalid JSON format: %w", err)
	}

	ds.lastChecksum = calculateChecksum(data)
	return true, nil
}

// Save encodes v and atomically replaces the file.
func (ds *DataStore) Save(v any) error {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	checksum := calculateChecksum(data)
	if checksum == ds.lastChecksum {
		return nil
	}

	if err := WriteFileAtomic(ds.file, data); err != nil {
		return err
	}

	if err := verifyFile(ds.file, data); err != nil {
		return fmt.Errorf("file verification failed: %w", err)
	}

	ds.lastChecksum = checksum
	return nil
}

// WriteFileAtomic writes data next to path and renames it into place. On any failure
// the temporary file is removed and path is left untouched.
func WriteFileAtomic(path string, data []byte) error {
	tmpFile := path + ".tmp"

	f, err := os.OpenFile(tmpFile, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpFile)
		return fmt.Errorf("failed to write to temp file: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpFile)
		return fmt.Errorf("failed to sync temp file: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpFile)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpFile, path); err != nil {
		os.Remove(tmpFile)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

func verifyFile(path string, expectedData []byte) error {
	actualData, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file for verification: %w", err)
	}

	if calculateChecksum(actualData) != calculateChecksum(expectedData) {
		return fmt.Errorf("file checksum mismatch")
	}

	return nil
}

func calculateChecksum(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}
