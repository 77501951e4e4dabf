package handler_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/lot-map/internal/broadcast"
	"github.com/iliyamo/lot-map/internal/config"
	"github.com/iliyamo/lot-map/internal/handler"
	"github.com/iliyamo/lot-map/internal/middleware"
	"github.com/iliyamo/lot-map/internal/model"
	"github.com/iliyamo/lot-map/internal/normalize"
	"github.com/iliyamo/lot-map/internal/override"
	"github.com/iliyamo/lot-map/internal/pricing"
	"github.com/iliyamo/lot-map/internal/repository"
	"github.com/iliyamo/lot-map/internal/router"
	"github.com/iliyamo/lot-map/internal/service"
)

const fixture = "MZ,LOTE,AREA,PRECIO,CONDICION,ASESOR,CLIENTE,COMENTARIO,ULTIMA_MODIFICACION\n" +
	"A,7,120.50,45000,libre,,,,\n" +
	"B,12,90,\"38,500\",VENDIDO,Rosa,Luis,,\n" +
	"C,,80,1000,libre,,,,\n"

type env struct {
	e         *echo.Echo
	path      string
	bus       *broadcast.Local
	session   *override.Session
	overrides override.Store
}

func newEnv(t *testing.T, store repository.LotStore) *env {
	t.Helper()
	return buildEnv(t, store, nil)
}

// newCachedEnv wires a Redis response cache on the lot list the way the
// server does.
func newCachedEnv(t *testing.T) *env {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	cfg := config.CacheConfig{
		Enabled:     true,
		Methods:     map[string]bool{http.MethodGet: true},
		TTL:         time.Minute,
		KeyStrategy: "route_query",
		Prefix:      "lotes:cache",
	}
	return buildEnv(t, nil, middleware.NewResponseCache(cfg, rdb, nil))
}

func buildEnv(t *testing.T, store repository.LotStore, cache *middleware.ResponseCache) *env {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lotes.csv")
	require.NoError(t, os.WriteFile(path, []byte(fixture), 0o644))
	if store == nil {
		store = repository.NewCSVStore(path, normalize.ThousandsComma, nil, nil)
	}

	bus := broadcast.NewLocal()
	ctx := context.Background()
	overrides := override.NewMemoryStore()
	session, err := override.NewSession(ctx, overrides, override.NewRing(0), bus, nil)
	require.NoError(t, err)

	lots := service.NewLotService(store, bus, nil, nil)
	routes := router.Routes{
		Lots:      handler.NewLotHandler(lots, session, normalize.ThousandsComma, nil),
		Quotes:    handler.NewQuoteHandler(lots, pricing.DefaultPolicy(), nil),
		Overrides: handler.NewOverrideHandler(session, lots, normalize.ThousandsComma, nil),
		Events:    handler.NewEventsHandler(bus, nil),
	}
	if cache != nil {
		lots.OnChange(cache.Purge)
		session.OnChange(cache.Purge)
		routes.Cache = cache.Middleware()
	}
	e := echo.New()
	router.RegisterRoutes(e, routes)
	return &env{e: e, path: path, bus: bus, session: session, overrides: overrides}
}

func (v *env) do(method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	v.e.ServeHTTP(rec, req)
	return rec
}

type listBody struct {
	Items     []model.Lot `json:"items"`
	UpdatedAt string      `json:"updatedAt"`
}

type itemBody struct {
	Item    model.Lot `json:"item"`
	SavedAt string    `json:"savedAt"`
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestListLots(t *testing.T) {
	v := newEnv(t, nil)
	rec := v.do(http.MethodGet, "/api/lotes", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode[listBody](t, rec)
	require.Len(t, body.Items, 2, "row without LOTE is dropped")
	assert.Equal(t, "A-07", body.Items[0].ID)
	assert.Equal(t, "B-12", body.Items[1].ID)
	assert.Equal(t, 38500.0, *body.Items[1].Price)
	_, err := time.Parse(time.RFC3339, body.UpdatedAt)
	assert.NoError(t, err)
}

func TestUpdateLot_RoundTrip(t *testing.T) {
	v := newEnv(t, nil)
	rec := v.do(http.MethodPut, "/api/lotes/%20a-07%20", `{"estado":"separado","cliente":" Juan Perez ","price":"S/ 47,500"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decode[itemBody](t, rec)
	assert.Equal(t, model.StatusSeparado, body.Item.Condicion)
	assert.Equal(t, "Juan Perez", body.Item.Cliente)
	assert.Equal(t, 47500.0, *body.Item.Price)
	assert.NotEmpty(t, body.Item.UltimaModificacion)
	assert.NotEmpty(t, body.SavedAt)

	list := decode[listBody](t, v.do(http.MethodGet, "/api/lotes", ""))
	assert.Equal(t, model.StatusSeparado, list.Items[0].Condicion)
	assert.Equal(t, "Juan Perez", list.Items[0].Cliente)
}

func TestUpdateLot_PriceLeniency(t *testing.T) {
	v := newEnv(t, nil)

	body := decode[itemBody](t, v.do(http.MethodPut, "/api/lotes/B-12", `{"price":-10}`))
	assert.Nil(t, body.Item.Price)

	body = decode[itemBody](t, v.do(http.MethodPut, "/api/lotes/B-12", `{"price":52000}`))
	assert.Equal(t, 52000.0, *body.Item.Price)

	body = decode[itemBody](t, v.do(http.MethodPut, "/api/lotes/B-12", `{"price":"sin precio"}`))
	assert.Nil(t, body.Item.Price)

	body = decode[itemBody](t, v.do(http.MethodPut, "/api/lotes/B-12", `{"asesor":"Rosa M."}`))
	assert.Nil(t, body.Item.Price, "absent price leaves the column alone")
	assert.Equal(t, "Rosa M.", body.Item.Asesor)
}

func TestUpdateLot_NotFoundLeavesFile(t *testing.T) {
	v := newEnv(t, nil)
	before, err := os.ReadFile(v.path)
	require.NoError(t, err)

	rec := v.do(http.MethodPut, "/api/lotes/Z-99", `{"cliente":"x"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"lote no encontrado"}`, rec.Body.String())

	after, err := os.ReadFile(v.path)
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))
}

func TestUpdateLot_BadJSON(t *testing.T) {
	v := newEnv(t, nil)
	assert.Equal(t, http.StatusBadRequest, v.do(http.MethodPut, "/api/lotes/A-07", `{"cliente":`).Code)
}

func TestUpdateLot_OddFieldTypesAreNormalized(t *testing.T) {
	v := newEnv(t, nil)
	rec := v.do(http.MethodPut, "/api/lotes/A-07", `{"estado":5,"asesor":42,"cliente":null,"comentario":{"x":1}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decode[itemBody](t, rec)
	assert.Equal(t, model.StatusLibre, body.Item.Condicion, "unknown status closes to LIBRE")
	assert.Equal(t, "42", body.Item.Asesor)
	assert.Empty(t, body.Item.Cliente)
	assert.Empty(t, body.Item.Comentario)

	rec = v.do(http.MethodPut, "/api/overrides/A-07", `{"condicion":7,"cliente":true}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

type brokenStore struct{}

func (brokenStore) List(context.Context) ([]model.Lot, error) {
	return nil, fmt.Errorf("%w: read csv: %w", repository.ErrStorage, os.ErrPermission)
}

func (brokenStore) UpdateByID(context.Context, string, model.LotPatch) (*model.Lot, error) {
	return nil, fmt.Errorf("%w: write csv: %w", repository.ErrStorage, os.ErrPermission)
}

func TestStorageFailureIs500(t *testing.T) {
	v := newEnv(t, brokenStore{})

	rec := v.do(http.MethodGet, "/api/lotes", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "permission")

	rec = v.do(http.MethodPut, "/api/lotes/A-07", `{"cliente":"x"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"no se pudo guardar el lote"}`, rec.Body.String())
}

func TestMethodMismatch(t *testing.T) {
	v := newEnv(t, nil)
	cases := []struct {
		method, target, allow string
	}{
		{http.MethodPost, "/api/lotes", http.MethodGet},
		{http.MethodDelete, "/api/lotes", http.MethodGet},
		{http.MethodGet, "/api/lotes/A-07", http.MethodPut},
		{http.MethodPatch, "/api/lotes/A-07", http.MethodPut},
	}
	for _, tc := range cases {
		rec := v.do(tc.method, tc.target, "")
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code, "%s %s", tc.method, tc.target)
		assert.Equal(t, tc.allow, rec.Header().Get(echo.HeaderAllow))
	}
}

func TestMergedView(t *testing.T) {
	v := newEnv(t, nil)
	rec := v.do(http.MethodPut, "/api/overrides/a-07", `{"condicion":"vendido","price":"44,000"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	merged := decode[listBody](t, v.do(http.MethodGet, "/api/lotes?view=merged", ""))
	assert.Equal(t, model.StatusVendido, merged.Items[0].Condicion)
	assert.Equal(t, 44000.0, *merged.Items[0].Price)
	assert.Len(t, merged.Items, 2)

	canonical := decode[listBody](t, v.do(http.MethodGet, "/api/lotes", ""))
	assert.Equal(t, model.StatusLibre, canonical.Items[0].Condicion)
}

func TestMergedView_CachedListFollowsOverrides(t *testing.T) {
	v := newCachedEnv(t)
	const merged = "/api/lotes?view=merged"

	first := v.do(http.MethodGet, merged, "")
	assert.Equal(t, model.StatusLibre, decode[listBody](t, first).Items[0].Condicion)
	hit := v.do(http.MethodGet, merged, "")
	require.Equal(t, "HIT", hit.Header().Get("X-Cache"))

	require.Equal(t, http.StatusOK, v.do(http.MethodPut, "/api/overrides/A-07", `{"condicion":"VENDIDO"}`).Code)
	after := v.do(http.MethodGet, merged, "")
	assert.Equal(t, "MISS", after.Header().Get("X-Cache"))
	assert.Equal(t, model.StatusVendido, decode[listBody](t, after).Items[0].Condicion)

	require.Equal(t, http.StatusNoContent, v.do(http.MethodDelete, "/api/overrides/A-07", "").Code)
	cleared := v.do(http.MethodGet, merged, "")
	assert.Equal(t, model.StatusLibre, decode[listBody](t, cleared).Items[0].Condicion)
}

func TestMergedView_SiblingOverrideRefreshesCache(t *testing.T) {
	v := newCachedEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		v.session.Wait()
	})
	require.NoError(t, v.session.Start(ctx))
	const merged = "/api/lotes?view=merged"

	v.do(http.MethodGet, merged, "")
	require.Equal(t, "HIT", v.do(http.MethodGet, merged, "").Header().Get("X-Cache"))

	// another replica writes the shared override map and signals
	sibling, err := override.NewSession(ctx, v.overrides, nil, v.bus, nil)
	require.NoError(t, err)
	sold := model.StatusVendido
	_, err = sibling.Set(ctx, "A-07", override.Patch{Condicion: &sold})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		var body listBody
		rec := v.do(http.MethodGet, merged, "")
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || len(body.Items) == 0 {
			return false
		}
		return body.Items[0].Condicion == model.StatusVendido
	}, 2*time.Second, 20*time.Millisecond)
}

func TestOverrides(t *testing.T) {
	v := newEnv(t, nil)

	assert.Equal(t, http.StatusNotFound, v.do(http.MethodPut, "/api/overrides/Z-99", `{"cliente":"x"}`).Code)

	require.Equal(t, http.StatusOK, v.do(http.MethodPut, "/api/overrides/B-12", `{"cliente":"Ana"}`).Code)
	list := decode[map[string]map[string]override.Patch](t, v.do(http.MethodGet, "/api/overrides", ""))
	assert.Equal(t, "Ana", *list["items"]["B-12"].Cliente)

	audit := decode[map[string][]string](t, v.do(http.MethodGet, "/api/overrides/audit", ""))
	require.Len(t, audit["entries"], 1)
	assert.Contains(t, audit["entries"][0], " B-12 ")

	assert.Equal(t, http.StatusNoContent, v.do(http.MethodDelete, "/api/overrides/B-12", "").Code)
	assert.Empty(t, v.session.Snapshot())
}

func TestQuote(t *testing.T) {
	v := newEnv(t, nil)

	rec := v.do(http.MethodPost, "/api/cotizaciones", `{"loteId":"a-07","descuentoPct":50,"editado":"descuentoPct","inicial":1000,"cuotas":10}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body struct {
		Lote           model.Lot `json:"lote"`
		Promo          string    `json:"precioPromocional"`
		Inicial        string    `json:"inicial"`
		SaldoFinanciar string    `json:"saldoFinanciar"`
		Cronograma     []any     `json:"cronograma"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "A-07", body.Lote.ID)
	assert.Equal(t, "22500", body.Promo)
	assert.Equal(t, "6000", body.Inicial)
	assert.Equal(t, "16500", body.SaldoFinanciar)
	assert.Len(t, body.Cronograma, 10)

	assert.Equal(t, http.StatusNotFound, v.do(http.MethodPost, "/api/cotizaciones", `{"loteId":"Z-99"}`).Code)
	assert.Equal(t, http.StatusBadRequest, v.do(http.MethodPost, "/api/cotizaciones", `{}`).Code)
	assert.Equal(t, http.StatusOK, v.do(http.MethodPost, "/api/cotizaciones", `{"precioRegular":30000}`).Code)
}

func TestHealth(t *testing.T) {
	v := newEnv(t, nil)
	rec := v.do(http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestEventsStream(t *testing.T) {
	v := newEnv(t, nil)
	srv := httptest.NewServer(v.e)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/events", nil)
	require.NoError(t, err)
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, "text/event-stream", res.Header.Get(echo.HeaderContentType))

	lines := make(chan string, 16)
	go func() {
		buf := make([]byte, 4096)
		for {
			n, err := res.Body.Read(buf)
			if n > 0 {
				lines <- string(buf[:n])
			}
			if err != nil {
				close(lines)
				return
			}
		}
	}()

	// wait until the handler has subscribed
	require.Eventually(t, func() bool { return v.bus.Subscribers() == 1 }, 2*time.Second, 10*time.Millisecond)
	require.Equal(t, http.StatusOK, v.do(http.MethodPut, "/api/lotes/A-07", `{"comentario":"visita"}`).Code)

	var got strings.Builder
	deadline := time.After(2 * time.Second)
	for !strings.Contains(got.String(), "event: lot.updated") {
		select {
		case chunk, ok := <-lines:
			if !ok {
				t.Fatalf("stream closed: %q", got.String())
			}
			got.WriteString(chunk)
		case <-deadline:
			t.Fatalf("no event received: %q", got.String())
		}
	}
	assert.Contains(t, got.String(), `"lotId":"A-07"`)
}
