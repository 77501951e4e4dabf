// Package seed bulk loads the canonical CSV into a database backend using
// the same parsing and identifier rules as the live CSV store.
package seed

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/lot-map/internal/normalize"
	"github.com/iliyamo/lot-map/internal/repository"
)

// DefaultBatchSize is the number of rows per upsert statement.
const DefaultBatchSize = 200

// Options tunes a seed run.
type Options struct {
	BatchSize   int
	Concurrency int // batches in flight, 1 when unset
	Format      normalize.NumberFormat
}

// Result summarizes a run.
type Result struct {
	Lots    int `json:"lots"`
	Batches int `json:"batches"`
}

// Run parses r and upserts every lot into dst in batches.  Upserts are
// keyed by id, so running the same file twice leaves the table unchanged.
// The first failing batch cancels the rest.
func Run(ctx context.Context, r io.Reader, dst repository.BulkUpserter, opts Options, log *zap.Logger) (Result, error) {
	if log == nil {
		log = zap.NewNop()
	}
	size := opts.BatchSize
	if size <= 0 {
		size = DefaultBatchSize
	}
	workers := opts.Concurrency
	if workers <= 0 {
		workers = 1
	}

	lots, err := repository.ParseLotsCSV(r, opts.Format)
	if err != nil {
		return Result{}, fmt.Errorf("parse csv: %w", err)
	}

	res := Result{Lots: len(lots)}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for start := 0; start < len(lots); start += size {
		end := min(start+size, len(lots))
		batch := lots[start:end]
		n := res.Batches + 1
		res.Batches++
		g.Go(func() error {
			if err := dst.UpsertLots(gctx, batch); err != nil {
				return fmt.Errorf("batch %d: %w", n, err)
			}
			log.Debug("seed: batch upserted", zap.Int("batch", n), zap.Int("rows", len(batch)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return res, err
	}
	log.Info("seed: done", zap.Int("lots", res.Lots), zap.Int("batches", res.Batches))
	return res, nil
}
