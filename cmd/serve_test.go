package cmd

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danmaku-sim/danmaku-sim/danmaku"
	"github.com/danmaku-sim/danmaku-sim/danmaku/render"
	"github.com/danmaku-sim/danmaku-sim/danmaku/workload"
)

func newTestServer(t *testing.T) (*overlayServer, *replayClock) {
	t.Helper()
	clock := &replayClock{}
	srv, err := newOverlayServer(danmaku.DefaultConfig(), clock)
	require.NoError(t, err)
	t.Cleanup(srv.engine.Close)
	return srv, clock
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestOverlayServer_ForcesLiveModeAndPlays(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := get(t, srv.routes(), "/healthz")

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, true, body["playing"])
	assert.Equal(t, danmaku.ModeLive, srv.engine.Config().Mode)
}

func TestOverlayServer_VisibleAndState_ReflectPlacedItems(t *testing.T) {
	// GIVEN a submitted item and two ticks
	srv, clock := newTestServer(t)
	srv.engine.Submit(&danmaku.Item{ID: "a", Kind: danmaku.KindTop, Text: "hello"}, false)
	for _, now := range []float64{1, 1.2} {
		clock.set(now, false)
		srv.engine.Step()
		srv.engine.Wait()
	}
	h := srv.routes()

	// WHEN /visible and /state are read
	visibleRec := get(t, h, "/visible")
	stateRec := get(t, h, "/state")

	// THEN both show the item
	require.Equal(t, http.StatusOK, visibleRec.Code)
	assert.Equal(t, "application/json", visibleRec.Header().Get("Content-Type"))
	var cells []render.CellState
	require.NoError(t, json.Unmarshal(visibleRec.Body.Bytes(), &cells))
	require.Len(t, cells, 1)
	assert.Equal(t, "hello", cells[0].Text)

	require.Equal(t, http.StatusOK, stateRec.Code)
	var snap danmaku.EngineSnapshot
	require.NoError(t, json.Unmarshal(stateRec.Body.Bytes(), &snap))
	require.Len(t, snap.Visible, 1)
	assert.Equal(t, "a", snap.Visible[0].Item.ID)
	assert.Equal(t, danmaku.KindTop, snap.Visible[0].Item.Kind)
}

func TestOverlayServer_Metrics_ExposesEngineAndRuntime(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := get(t, srv.routes(), "/metrics")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "danmaku_pending_items")
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestOverlayServer_Ingest_SubmitsStream(t *testing.T) {
	srv, _ := newTestServer(t)
	stream := `{"id":"a","kind":"transit","text":"one"}
{"kind":"bottom","text":"two","forced":true}
`

	srv.ingest(context.Background(), strings.NewReader(stream))
	srv.engine.Wait()

	assert.Equal(t, 2, srv.engine.Metrics().Snapshot().Ingested)
}

func TestOverlayServer_UnknownRoute_NotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := get(t, srv.routes(), "/streams")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReadEntries_SkipsFramingAndMalformedLines(t *testing.T) {
	input := strings.Join([]string{
		`{"id":"a","time":1,"kind":"transit","text":"hello"}`,
		``,
		`# comment`,
		`data: {"text":"sse","kind":"ft","forced":true}`,
		`not json`,
		`{"kind":"spiral","text":"bad kind"}`,
		`data: [DONE]`,
	}, "\n")
	var got []workload.Entry

	n, err := readEntries(context.Background(), strings.NewReader(input), func(e workload.Entry) {
		got = append(got, e)
	})

	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "hello", got[0].Text)
	assert.Equal(t, danmaku.KindTop, got[1].Kind)
	assert.True(t, got[1].Forced)
	assert.NotEmpty(t, got[1].ID)
}

func TestReadEntries_CanceledContext_Stops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	n, err := readEntries(ctx, strings.NewReader("{\"text\":\"x\"}\n"), func(workload.Entry) {
		t.Error("submit called after cancel")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, n)
}
