package store

import (
	"bufio"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"

	"github.com/ironsheep/dot-tracker-mcp/internal/pipeline"
)

// trakMagic starts every .trak file.
var trakMagic = []byte("DOTTRAK\x01")

// FileStore keeps each snapshot in a .trak file beside its source.
type FileStore struct{}

// NewFileStore returns a FileStore.
func NewFileStore() *FileStore {
	return &FileStore{}
}

// Save writes snap to TrakPath(key). The file is written to a temporary name
// and renamed, so a failed save never leaves a truncated snapshot behind.
func (s *FileStore) Save(ctx context.Context, key string, snap *pipeline.Snapshot) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path := TrakPath(key)
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("save snapshot: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := encodeSnapshot(tmp, snap); err != nil {
		tmp.Close()
		return "", fmt.Errorf("save snapshot %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("save snapshot %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("save snapshot %s: %w", path, err)
	}
	return path, nil
}

// Load reads the snapshot at TrakPath(key).
func (s *FileStore) Load(ctx context.Context, key string) (*pipeline.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := TrakPath(key)
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	defer f.Close()

	snap, err := decodeSnapshot(f)
	if err != nil {
		return nil, fmt.Errorf("load snapshot %s: %w", path, err)
	}
	return snap, nil
}

func encodeSnapshot(w io.Writer, snap *pipeline.Snapshot) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.Write(trakMagic); err != nil {
		return err
	}
	zw := gzip.NewWriter(bw)
	if err := gob.NewEncoder(zw).Encode(snap); err != nil {
		return err
	}
	if err := zw.Close(); err != nil {
		return err
	}
	return bw.Flush()
}

func decodeSnapshot(r io.Reader) (*pipeline.Snapshot, error) {
	br := bufio.NewReader(r)
	magic := make([]byte, len(trakMagic))
	if _, err := io.ReadFull(br, magic); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if string(magic) != string(trakMagic) {
		return nil, fmt.Errorf("not a .trak file")
	}
	zr, err := gzip.NewReader(br)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	var snap pipeline.Snapshot
	if err := gob.NewDecoder(zr).Decode(&snap); err != nil {
		return nil, err
	}
	return &snap, nil
}
