package repository

import (
	"context"
	"sort"
	"time"

	"github.com/iliyamo/lot-map/internal/model"
)

// LotStore is the contract every canonical backend implements.  The
// server picks exactly one implementation from configuration.
type LotStore interface {
	// List returns every well-formed lot sorted by block then lot number.
	List(ctx context.Context) ([]model.Lot, error)
	// UpdateByID applies patch to the lot whose id matches (trimmed,
	// case-insensitive), stamps UltimaModificacion and returns the
	// stored record.  It returns ErrLotNotFound when nothing matches.
	UpdateByID(ctx context.Context, id string, patch model.LotPatch) (*model.Lot, error)
}

// BulkUpserter is implemented by stores that accept idempotent batched
// upserts keyed by id.  Only the seed command uses it.
type BulkUpserter interface {
	UpsertLots(ctx context.Context, lots []model.Lot) error
}

// TimestampLayout is the display format of UltimaModificacion.  It is a
// human oriented string and is not meant to be sorted.
const TimestampLayout = "02/01/2006 15:04:05"

// Clock stamps modification times.  Stores default to time.Now in the
// configured location; tests inject a fixed sequence.
type Clock func() time.Time

// Stamp formats the current clock value for UltimaModificacion.
func (c Clock) Stamp() string {
	if c == nil {
		return time.Now().Format(TimestampLayout)
	}
	return c().Format(TimestampLayout)
}

// LocalClock returns a Clock that reports wall time in loc.
func LocalClock(loc *time.Location) Clock {
	if loc == nil {
		loc = time.UTC
	}
	return func() time.Time { return time.Now().In(loc) }
}

// SortLots orders lots by block then lot number, in place.
func SortLots(lots []model.Lot) {
	sort.SliceStable(lots, func(i, j int) bool {
		if lots[i].Mz != lots[j].Mz {
			return lots[i].Mz < lots[j].Mz
		}
		return lots[i].Lote < lots[j].Lote
	})
}
