package repository

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/iliyamo/lot-map/internal/model"
	"github.com/iliyamo/lot-map/internal/normalize"
)

// CSVStore keeps the canonical dataset in a single CSV file.  Every
// update rewrites the whole file.  Within one process reads and writes
// are serialized by mu and the file is replaced through a rename, so a
// reader never sees a half-written file; writers in other processes
// still race and the last rename wins.
type CSVStore struct {
	path   string
	format normalize.NumberFormat
	clock  Clock
	log    *zap.Logger

	mu sync.RWMutex
}

// NewCSVStore constructs a CSVStore for the file at path.  The file is
// not opened until the first call.
func NewCSVStore(path string, format normalize.NumberFormat, clock Clock, log *zap.Logger) *CSVStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &CSVStore{path: path, format: format, clock: clock, log: log}
}

// Path returns the file backing the store.
func (s *CSVStore) Path() string { return s.path }

func (s *CSVStore) load() (*csvTable, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, storageErr("open csv", err)
	}
	defer f.Close()
	t, err := readCSVTable(f)
	if err != nil {
		return nil, storageErr("read csv", err)
	}
	return t, nil
}

// List returns every well-formed lot sorted by block then lot number.
// Rows without a block or lot number are dropped.
func (s *CSVStore) List(ctx context.Context) ([]model.Lot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	t, err := s.load()
	s.mu.RUnlock()
	if err != nil {
		return nil, err
	}
	lots, _, skipped := t.lots(s.format)
	if skipped > 0 {
		s.log.Debug("csv rows skipped", zap.String("path", s.path), zap.Int("skipped", skipped))
	}
	SortLots(lots)
	if lots == nil {
		lots = []model.Lot{}
	}
	return lots, nil
}

// UpdateByID patches the first row whose derived id matches and rewrites
// the file.  It returns ErrLotNotFound without touching the file when no
// row matches.
func (s *CSVStore) UpdateByID(ctx context.Context, id string, patch model.LotPatch) (*model.Lot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key := normalize.NormalizeID(id)

	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.load()
	if err != nil {
		return nil, err
	}
	lots, index, _ := t.lots(s.format)
	row, ok := index[key]
	if !ok {
		return nil, ErrLotNotFound
	}
	var lot model.Lot
	for _, l := range lots {
		if l.ID == key {
			lot = l
			break
		}
	}

	patch.ApplyTo(&lot)
	lot.Condicion = normalize.NormalizeStatus(string(lot.Condicion))
	lot.UltimaModificacion = s.clock.Stamp()
	t.putLot(row, lot)

	if err := s.replace(t); err != nil {
		return nil, err
	}
	return &lot, nil
}

// replace writes t to a sibling temp file and renames it over the
// original.
func (s *CSVStore) replace(t *csvTable) error {
	var buf bytes.Buffer
	if err := t.write(&buf); err != nil {
		return storageErr("encode csv", err)
	}
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return storageErr("create temp csv", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		cleanup()
		return storageErr("write csv", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return storageErr("close csv", err)
	}
	if info, err := os.Stat(s.path); err == nil {
		_ = os.Chmod(tmpName, info.Mode().Perm())
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		cleanup()
		return storageErr("rename csv", err)
	}
	return nil
}
