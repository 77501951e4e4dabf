package seed

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/lot-map/internal/database"
	"github.com/iliyamo/lot-map/internal/model"
	"github.com/iliyamo/lot-map/internal/normalize"
	"github.com/iliyamo/lot-map/internal/repository"
)

type recorder struct {
	mu      sync.Mutex
	batches [][]model.Lot
	fail    int // batch size that triggers an error, 0 never
}

func (r *recorder) UpsertLots(_ context.Context, lots []model.Lot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail > 0 && len(lots) == r.fail {
		return errors.New("boom")
	}
	r.batches = append(r.batches, lots)
	return nil
}

func bigCSV(n int) string {
	var b strings.Builder
	b.WriteString("MZ;LOTE;AREA;PRECIO;CONDICION\n")
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&b, "a;%d;120,50;45.000,00;vendido\n", i)
	}
	b.WriteString("a;1;1;1;libre\n") // duplicate id, first wins
	b.WriteString(";5;1;1;libre\n")  // no block
	return b.String()
}

func TestRun_Batches(t *testing.T) {
	rec := &recorder{}
	res, err := Run(context.Background(), strings.NewReader(bigCSV(450)), rec, Options{Concurrency: 3, Format: normalize.DecimalComma}, nil)
	require.NoError(t, err)
	assert.Equal(t, Result{Lots: 450, Batches: 3}, res)

	total := 0
	for _, b := range rec.batches {
		assert.LessOrEqual(t, len(b), DefaultBatchSize)
		total += len(b)
		for _, l := range b {
			assert.Equal(t, normalize.ToLoteID("A", l.Lote), l.ID)
			assert.Equal(t, model.StatusVendido, l.Condicion)
			assert.Equal(t, 45000.0, *l.Price)
			assert.Equal(t, 120.5, *l.AreaM2)
		}
	}
	assert.Equal(t, 450, total)
}

func TestRun_FailingBatch(t *testing.T) {
	rec := &recorder{fail: 50}
	_, err := Run(context.Background(), strings.NewReader(bigCSV(250)), rec, Options{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "batch 2")
}

func TestRun_BadCSV(t *testing.T) {
	_, err := Run(context.Background(), strings.NewReader("FOO,BAR\n1,2\n"), &recorder{}, Options{}, nil)
	assert.Error(t, err)
}

func TestRun_SQLiteIdempotent(t *testing.T) {
	db, err := database.Open(database.Options{
		Driver:     database.DriverSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "lotes.db"),
		Migrate:    true,
	})
	require.NoError(t, err)
	defer db.Close()
	store := repository.NewSQLStore(db, nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := Run(ctx, strings.NewReader(bigCSV(230)), store, Options{Format: normalize.DecimalComma}, nil)
		require.NoError(t, err)
	}
	lots, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, lots, 230)
	assert.Equal(t, "A-01", lots[0].ID)
}
