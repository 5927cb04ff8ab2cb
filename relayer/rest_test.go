package relayer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forkedfinance/relayer/lib/config"
	"github.com/forkedfinance/relayer/lib/store"
)

func newTestRelayer(t *testing.T, db store.DB) (*Relayer, *fakeSource) {
	t.Helper()

	src := newFakeSource()

	r, err := New(config.Default(), src, &fakeLookup{resp: []response{{body: "1"}}}, &fakeSetter{}, db, nil)
	require.NoError(t, err)

	return r, src
}

func get(t *testing.T, r *Relayer, url string) (int, Response, string) {
	t.Helper()

	rec := httptest.NewRecorder()
	r.router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, url, nil))

	body := rec.Body.String()

	var res Response
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	}

	return rec.Code, res, body
}

func TestHome(t *testing.T) {
	r, _ := newTestRelayer(t, nil)

	code, res, _ := get(t, r, "/")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Oracle relayer running!", res.Body)
}

func TestHealth(t *testing.T) {
	r, src := newTestRelayer(t, nil)
	fill(t, r.q, 2)

	code, res, _ := get(t, r, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, map[string]interface{}{"listening": false, "queue": 2.0}, res.Body)

	require.NoError(t, r.ls.Install(context.Background()))
	defer r.ls.Uninstall()

	code, res, _ = get(t, r, "/health")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, map[string]interface{}{"listening": true, "queue": 2.0}, res.Body)
	assert.Equal(t, len(Events), src.running())
}

func TestOutcomes(t *testing.T) {
	r, _ := newTestRelayer(t, nil)

	code, res, _ := get(t, r, "/outcomes/"+userAddr.Hex())
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, ErrNoStore.Error(), res.Error)

	db := &fakeDB{}
	r, _ = newTestRelayer(t, db)

	for i, a := range []string{userAddr.Hex(), otherAddr.Hex(), userAddr.Hex()} {
		require.NoError(t, db.SaveOutcome(store.Outcome{ID: string(rune('a' + i)), Address: a, Status: store.Written,
			Time: time.Now()}))
	}

	code, res, _ = get(t, r, "/outcomes/"+strings.ToLower(userAddr.Hex()))
	require.Equal(t, http.StatusOK, code)

	outs, ok := res.Body.([]interface{})
	require.True(t, ok)
	require.Len(t, outs, 2)
	assert.Equal(t, "c", outs[0].(map[string]interface{})["id"])

	code, res, _ = get(t, r, "/outcomes/"+userAddr.Hex()+"?limit=1")
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, res.Body, 1)

	code, _, _ = get(t, r, "/outcomes/"+userAddr.Hex()+"?limit=x")
	assert.Equal(t, http.StatusBadRequest, code)

	code, _, _ = get(t, r, "/outcomes/0x1234")
	assert.Equal(t, http.StatusBadRequest, code)

	code, res, _ = get(t, r, "/outcomes/0x90F79bf6EB2c4f870365E785982E1f101E93b906")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, store.ErrDataNotFound.Error(), res.Error)
}

func TestMetricsEndpoint(t *testing.T) {
	r, _ := newTestRelayer(t, nil)
	r.m.Shed.Inc()

	code, _, body := get(t, r, "/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "relayer_items_shed_total 1")
	assert.Contains(t, body, "go_goroutines")
}
