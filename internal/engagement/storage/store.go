// NotifyRank - Notification Engagement Scoring
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notifyrank

package storage

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding"
	"encoding/gob"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/goccy/go-json"
)

var (
	// ErrModelNotFound is returned when no artifact exists for a name.
	ErrModelNotFound = errors.New("model not found")

	// ErrChecksumMismatch is returned when an artifact fails verification.
	ErrChecksumMismatch = errors.New("model checksum mismatch")

	// ErrInvalidName is returned for names that are not safe file stems.
	ErrInvalidName = errors.New("invalid model name")
)

var validName = regexp.MustCompile(`^[a-z0-9][a-z0-9_]*$`)

// Metadata describes a stored model. It is written both inside the artifact
// and as a JSON file beside it so it can be read without decoding the model.
type Metadata struct {
	Name           string             `json:"name"`
	ModelType      string             `json:"model_type"`
	TrainedAt      time.Time          `json:"trained_at"`
	SavedAt        time.Time          `json:"saved_at"`
	NumUsers       int                `json:"num_users"`
	TotalSamples   int                `json:"total_samples"`
	SamplesPerUser map[int64]int      `json:"samples_per_user,omitempty"`
	Metrics        map[string]float64 `json:"metrics,omitempty"`
	Checksum       string             `json:"checksum"`
	SizeBytes      int64              `json:"size_bytes"`
}

// storedFile is the on-disk format for model files.
type storedFile struct {
	Metadata       Metadata
	CompressedData []byte
}

// Store persists model artifacts under a directory as
// <name>.gob.gz plus <name>_metadata.json.
type Store struct {
	baseDir string
	mu      sync.RWMutex
}

// NewStore creates a new model store at the given directory.
func NewStore(baseDir string) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0o750); err != nil { //nolint:gosec // 0750 is acceptable for model storage
		return nil, fmt.Errorf("create storage directory: %w", err)
	}
	return &Store{baseDir: baseDir}, nil
}

// Dir returns the storage directory.
func (s *Store) Dir() string {
	return s.baseDir
}

// ModelPath returns the artifact path for name.
func (s *Store) ModelPath(name string) string {
	return filepath.Join(s.baseDir, name+".gob.gz")
}

// MetadataPath returns the metadata path for name.
func (s *Store) MetadataPath(name string) string {
	return filepath.Join(s.baseDir, name+"_metadata.json")
}

// Save writes model and its metadata as one unit. Both files are staged as
// temporaries in the same directory before either is renamed into place. If
// the metadata rename fails, the previous model file is restored from a hard
// link backup, so a failed save never changes what Load returns. The stored
// metadata (with checksum and size) is returned.
//
//nolint:gocritic // meta passed by value is acceptable for this write operation
func (s *Store) Save(ctx context.Context, name string, model encoding.BinaryMarshaler, meta Metadata) (Metadata, error) {
	if !validName.MatchString(name) {
		return Metadata{}, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if err := ctx.Err(); err != nil {
		return Metadata{}, err
	}

	rawData, err := model.MarshalBinary()
	if err != nil {
		return Metadata{}, fmt.Errorf("encode model: %w", err)
	}

	hash := sha256.Sum256(rawData)
	meta.Checksum = hex.EncodeToString(hash[:])

	var compressed bytes.Buffer
	gzw := gzip.NewWriter(&compressed)
	if _, err := gzw.Write(rawData); err != nil {
		return Metadata{}, fmt.Errorf("compress model: %w", err)
	}
	if err := gzw.Close(); err != nil {
		return Metadata{}, fmt.Errorf("finalize compression: %w", err)
	}

	meta.Name = name
	meta.SizeBytes = int64(compressed.Len())
	meta.SavedAt = time.Now().UTC()

	var artifact bytes.Buffer
	if err := gob.NewEncoder(&artifact).Encode(storedFile{Metadata: meta, CompressedData: compressed.Bytes()}); err != nil {
		return Metadata{}, fmt.Errorf("encode model file: %w", err)
	}
	metaJSON, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return Metadata{}, fmt.Errorf("encode metadata: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	modelPath, metaPath := s.ModelPath(name), s.MetadataPath(name)
	modelTmp, err := writeTemp(s.baseDir, modelPath, artifact.Bytes())
	if err != nil {
		return Metadata{}, fmt.Errorf("write model file: %w", err)
	}
	defer removeQuietly(modelTmp)

	metaTmp, err := writeTemp(s.baseDir, metaPath, metaJSON)
	if err != nil {
		return Metadata{}, fmt.Errorf("write metadata file: %w", err)
	}
	defer removeQuietly(metaTmp)

	if err := commitPair(modelTmp, modelPath, metaTmp, metaPath); err != nil {
		return Metadata{}, err
	}
	return meta, nil
}

// commitPair renames the staged model and metadata into place. The previous
// model file is hard linked to <model>.bak first and restored from it when
// the metadata rename fails. The backup never outlives the call.
func commitPair(modelTmp, modelPath, metaTmp, metaPath string) error {
	backup := modelPath + ".bak"
	removeQuietly(backup)

	hadPrevious := true
	if err := os.Link(modelPath, backup); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("back up model file: %w", err)
		}
		hadPrevious = false
	}
	defer removeQuietly(backup)

	if err := os.Rename(modelTmp, modelPath); err != nil {
		return fmt.Errorf("write model file: %w", err)
	}
	if err := os.Rename(metaTmp, metaPath); err != nil {
		if hadPrevious {
			if restoreErr := os.Rename(backup, modelPath); restoreErr != nil {
				return fmt.Errorf("write metadata file: %w (restore previous model: %w)", err, restoreErr)
			}
		} else {
			removeQuietly(modelPath)
		}
		return fmt.Errorf("write metadata file: %w", err)
	}
	return nil
}

// Load decodes the artifact for name into target after verifying its checksum.
func (s *Store) Load(ctx context.Context, name string, target encoding.BinaryUnmarshaler) (Metadata, error) {
	if !validName.MatchString(name) {
		return Metadata{}, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if err := ctx.Err(); err != nil {
		return Metadata{}, err
	}

	s.mu.RLock()
	data, err := os.ReadFile(s.ModelPath(name))
	s.mu.RUnlock()
	if errors.Is(err, fs.ErrNotExist) {
		return Metadata{}, fmt.Errorf("%w: %s", ErrModelNotFound, name)
	}
	if err != nil {
		return Metadata{}, fmt.Errorf("read model file: %w", err)
	}

	var sf storedFile
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&sf); err != nil {
		return Metadata{}, fmt.Errorf("decode model file: %w", err)
	}

	gzr, err := gzip.NewReader(bytes.NewReader(sf.CompressedData))
	if err != nil {
		return Metadata{}, fmt.Errorf("decompress model: %w", err)
	}
	defer func() { _ = gzr.Close() }() //nolint:errcheck // error on gzip close after read is not actionable

	rawData, err := io.ReadAll(gzr)
	if err != nil {
		return Metadata{}, fmt.Errorf("read decompressed data: %w", err)
	}

	hash := sha256.Sum256(rawData)
	if checksum := hex.EncodeToString(hash[:]); checksum != sf.Metadata.Checksum {
		return Metadata{}, fmt.Errorf("%w: expected %s, got %s", ErrChecksumMismatch, sf.Metadata.Checksum, checksum)
	}

	if err := target.UnmarshalBinary(rawData); err != nil {
		return Metadata{}, fmt.Errorf("decode model: %w", err)
	}
	return sf.Metadata, nil
}

// LoadMetadata reads the JSON metadata for name without touching the model.
func (s *Store) LoadMetadata(name string) (Metadata, error) {
	if !validName.MatchString(name) {
		return Metadata{}, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	s.mu.RLock()
	data, err := os.ReadFile(s.MetadataPath(name))
	s.mu.RUnlock()
	if errors.Is(err, fs.ErrNotExist) {
		return Metadata{}, fmt.Errorf("%w: %s", ErrModelNotFound, name)
	}
	if err != nil {
		return Metadata{}, fmt.Errorf("read metadata file: %w", err)
	}

	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return Metadata{}, fmt.Errorf("decode metadata: %w", err)
	}
	return meta, nil
}

// Exists reports whether an artifact exists for name.
func (s *Store) Exists(name string) bool {
	if !validName.MatchString(name) {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, err := os.Stat(s.ModelPath(name))
	return err == nil
}

// Delete removes the artifact and metadata for name. Missing files are ignored.
func (s *Store) Delete(name string) error {
	if !validName.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, path := range []string{s.ModelPath(name), s.MetadataPath(name)} {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("delete %s: %w", filepath.Base(path), err)
		}
	}
	return nil
}

// writeTemp writes data to a synced temp file in dir named after path and
// returns its name. The temp file is removed on any failure.
func writeTemp(dir, path string, data []byte) (name string, err error) {
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return "", err
	}
	name = tmp.Name()
	defer func() {
		if err != nil {
			removeQuietly(name)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close() //nolint:errcheck // write error takes precedence
		return "", err
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close() //nolint:errcheck // sync error takes precedence
		return "", err
	}
	if err = tmp.Close(); err != nil {
		return "", err
	}
	return name, nil
}

// removeQuietly removes path, ignoring errors. Used for temp and backup
// files that may already be gone.
func removeQuietly(path string) {
	_ = os.Remove(path) //nolint:errcheck // best-effort cleanup
}
