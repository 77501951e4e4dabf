package override

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"github.com/iliyamo/lot-map/internal/model"
)

func canonical() []model.Lot {
	return []model.Lot{
		{ID: "A-01", Mz: "A", Lote: 1, Price: model.Float(30000), Condicion: model.StatusLibre},
		{ID: "A-02", Mz: "A", Lote: 2, Price: model.Float(32000), Condicion: model.StatusLibre, Cliente: "Ana"},
	}
}

func TestApply_ShadowsOnlyMatchingFields(t *testing.T) {
	sep := model.StatusSeparado
	lots := canonical()
	before := canonical()

	got := Apply(lots, Map{
		"A-02": {Condicion: &sep, Price: model.Float(31000)},
		"Z-99": {Cliente: model.String("nadie")},
	})

	assert.Len(t, got, 2)
	assert.Equal(t, model.StatusSeparado, got[1].Condicion)
	assert.Equal(t, 31000.0, *got[1].Price)
	assert.Equal(t, "Ana", got[1].Cliente)
	assert.Equal(t, lots[0], got[0])

	if diff := cmp.Diff(before, lots); diff != "" {
		t.Fatalf("input mutated (-want +got):\n%s", diff)
	}
}

func TestApply_EmptyOverrides(t *testing.T) {
	lots := canonical()
	assert.Equal(t, lots, Apply(lots, nil))
	assert.Empty(t, Apply(nil, Map{"A-01": {Cliente: model.String("x")}}))
}

func TestPatchMerge(t *testing.T) {
	vend := model.StatusVendido
	p := Patch{Price: model.Float(10)}.Merge(Patch{Condicion: &vend})
	assert.Equal(t, 10.0, *p.Price)
	assert.Equal(t, model.StatusVendido, *p.Condicion)
	assert.Nil(t, p.Cliente)
	assert.True(t, Patch{}.Empty())
	assert.False(t, p.Empty())
}
