package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriceInput_UnmarshalJSON(t *testing.T) {
	var body struct {
		Price PriceInput `json:"price"`
	}

	require.NoError(t, json.Unmarshal([]byte(`{}`), &body))
	assert.False(t, body.Price.Set)

	require.NoError(t, json.Unmarshal([]byte(`{"price": null}`), &body))
	assert.True(t, body.Price.Set)
	assert.Nil(t, body.Price.Value)
	assert.Empty(t, body.Price.Text)

	require.NoError(t, json.Unmarshal([]byte(`{"price": 45000.5}`), &body))
	require.NotNil(t, body.Price.Value)
	assert.Equal(t, 45000.5, *body.Price.Value)

	require.NoError(t, json.Unmarshal([]byte(`{"price": "S/ 45,000"}`), &body))
	assert.Nil(t, body.Price.Value)
	assert.Equal(t, "S/ 45,000", body.Price.Text)

	require.NoError(t, json.Unmarshal([]byte(`{"price": true}`), &body))
	assert.True(t, body.Price.Set)
	assert.Nil(t, body.Price.Value)
	assert.Empty(t, body.Price.Text)
}

func TestTextInput_UnmarshalJSON(t *testing.T) {
	cases := []struct {
		body string
		set  bool
		text string
	}{
		{`{}`, false, ""},
		{`{"v": null}`, false, ""},
		{`{"v": " Ana "}`, true, " Ana "},
		{`{"v": 5}`, true, "5"},
		{`{"v": -1.5}`, true, "-1.5"},
		{`{"v": true}`, true, "true"},
		{`{"v": {"x": 1}}`, false, ""},
		{`{"v": ["a"]}`, false, ""},
	}
	for _, tc := range cases {
		var body struct {
			V TextInput `json:"v"`
		}
		require.NoError(t, json.Unmarshal([]byte(tc.body), &body), tc.body)
		assert.Equal(t, tc.set, body.V.Set, tc.body)
		assert.Equal(t, tc.text, body.V.Text, tc.body)
	}
	assert.Nil(t, TextInput{}.Ptr())
	assert.Equal(t, "x", *TextInput{Set: true, Text: "x"}.Ptr())
}

func TestLotPatch_ApplyTo(t *testing.T) {
	st := StatusVendido
	l := Lot{ID: "A-07", Price: Float(100), Cliente: "x"}

	LotPatch{}.ApplyTo(&l)
	require.NotNil(t, l.Price)
	assert.Equal(t, 100.0, *l.Price)

	p := LotPatch{PriceSet: true, Condicion: &st, Cliente: String("Ana")}
	assert.False(t, p.Empty())
	p.ApplyTo(&l)
	assert.Nil(t, l.Price)
	assert.Equal(t, StatusVendido, l.Condicion)
	assert.Equal(t, "Ana", l.Cliente)
	assert.True(t, LotPatch{}.Empty())
}

func TestLot_Clone(t *testing.T) {
	l := Lot{ID: "A-01", Price: Float(10)}
	c := l.Clone()
	*c.Price = 20
	assert.Equal(t, 10.0, *l.Price)
}
