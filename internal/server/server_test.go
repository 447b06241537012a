package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"gamecenter/config"
	"gamecenter/internal/bracket"
	"gamecenter/internal/checkout"
	"gamecenter/internal/events"
	"gamecenter/internal/gamecenter"
	"gamecenter/internal/settings"
	"gamecenter/internal/station"
	"gamecenter/internal/store"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	srv   *Server
	app   *gamecenter.App
	mem   *store.Memory
	clock *clockwork.FakeClock
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	mem := store.NewMemory()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC))
	app := gamecenter.New(mem,
		gamecenter.WithClock(clock),
		gamecenter.WithLocation(time.UTC),
		gamecenter.WithBilling(settings.Billing{DefaultRate: 3600}),
	)
	require.NoError(t, app.Open(context.Background()))
	srv := NewServer(&config.ServerConfig{Port: "0", AllowedOrigins: []string{"*"}}, app)
	t.Cleanup(func() {
		_ = srv.Shutdown(context.Background())
		_ = app.Close(context.Background())
	})
	return fixture{srv: srv, app: app, mem: mem, clock: clock}
}

func (f fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (f fixture) tick(t *testing.T, kind station.Kind, id string, n int) {
	t.Helper()
	reg, err := f.app.Registry(kind)
	require.NoError(t, err)
	for i := 0; i < n; i++ {
		st, err := reg.Get(id)
		require.NoError(t, err)
		want := st.ElapsedSeconds + 1
		f.clock.Advance(time.Second)
		require.Eventually(t, func() bool {
			st, err := reg.Get(id)
			return err == nil && st.ElapsedSeconds == want
		}, time.Second, time.Millisecond)
	}
}

func TestDocumentEndpoint(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/db", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/db?key=nothingHere", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "null", strings.TrimSpace(rec.Body.String()))

	rec = f.do(t, http.MethodPost, "/api/db", map[string]any{"key": "notes"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/db", map[string]any{"key": "my notes!", "data": map[string]int{"a": 1}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())

	rec = f.do(t, http.MethodGet, "/api/db?key=mynotes", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"a":1}`, rec.Body.String())
}

func TestTimerCardOverHTTP(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/stations/timer", map[string]string{"title": "PC 1"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	card := decodeBody[station.Station](t, rec)

	rec = f.do(t, http.MethodPost, "/api/stations/timer/"+card.ID+"/start", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decodeBody[station.Station](t, rec).IsRunning)

	f.tick(t, station.KindTimer, card.ID, 4)

	rec = f.do(t, http.MethodPost, "/api/stations/timer/"+card.ID+"/stop", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	draft := decodeBody[station.StopDraft](t, rec)
	assert.EqualValues(t, 4, draft.ElapsedSeconds)
	assert.EqualValues(t, 4, draft.TotalCost)

	rec = f.do(t, http.MethodPost, "/api/stations/timer/"+card.ID+"/stop", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "null", strings.TrimSpace(rec.Body.String()))

	rec = f.do(t, http.MethodPost, "/api/checkout", map[string]any{
		"draft":    draft,
		"customer": map[string]string{"fullName": "Ali Rezaei", "phoneNumber": "0912"},
		"payment":  map[string]any{"paidAmount": 1},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	item := decodeBody[checkout.PlayHistoryItem](t, rec)
	assert.EqualValues(t, 1, item.PaidAmount)
	assert.EqualValues(t, 3, item.RemainingAmount)
	assert.Equal(t, "Ali", item.FirstName)

	rec = f.do(t, http.MethodPost, "/api/history/"+item.ID+"/payments", map[string]any{"amount": 10})
	require.Equal(t, http.StatusOK, rec.Code)
	paid := decodeBody[checkout.PlayHistoryItem](t, rec)
	assert.True(t, paid.PaidFully)
	assert.EqualValues(t, 4, paid.PaidAmount)

	rec = f.do(t, http.MethodGet, "/api/customers/suggest?q=al", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]checkout.Suggestion](t, rec), 1)
}

func TestErrorMapping(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/stations/arcade", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeBody[map[string]string](t, rec)["error"], "unknown station kind")

	rec = f.do(t, http.MethodPost, "/api/stations/timer/missing/start", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodDelete, "/api/history/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/stations/timer/missing/checkout", map[string]any{})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodPatch, "/api/settings/app", map[string]string{"costPerHour": "abc"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPatch, "/api/settings/app", map[string]string{"darkVeilEnabled": "yes"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodDelete, "/api/settings", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "method not allowed", decodeBody[map[string]string](t, rec)["error"])

	rec = f.do(t, http.MethodGet, "/api/reports/weekly", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not found", decodeBody[map[string]string](t, rec)["error"])
}

func TestTableAsksCustomerOnStart(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPut, "/api/settings/table/snooker/timing", map[string]string{"timing": "start"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodGet, "/api/stations/table", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var snooker station.Station
	for _, st := range decodeBody[[]station.Station](t, rec) {
		if st.TableKind == station.Snooker {
			snooker = st
		}
	}
	require.NotEmpty(t, snooker.ID)

	rec = f.do(t, http.MethodPost, "/api/stations/table/"+snooker.ID+"/start", map[string]any{})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/stations/table/"+snooker.ID+"/start", map[string]any{"customerFullName": "Sara Ahmadi"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	started := decodeBody[station.Station](t, rec)
	assert.Equal(t, "Sara Ahmadi", started.CustomerFullName)
	assert.NotEmpty(t, started.SessionCode)

	rec = f.do(t, http.MethodPost, "/api/stations/table/"+snooker.ID+"/checkout", map[string]any{
		"payment": map[string]any{"paidFully": true},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "Sara", decodeBody[checkout.PlayHistoryItem](t, rec).FirstName)

	rec = f.do(t, http.MethodPost, "/api/stations/table/"+snooker.ID+"/checkout", map[string]any{})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestStableClientOverHTTP(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/clients", map[string]any{"firstName": "Reza", "lastName": "Karimi", "stable": true})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeBody[addClientResponse](t, rec)
	require.NotNil(t, created.Seat)
	assert.Equal(t, created.Client.ID, created.Seat.ClientID)
	assert.Equal(t, "Reza Karimi", created.Seat.Title)

	rec = f.do(t, http.MethodGet, "/api/stations/stable?q=reza&byName=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]station.Station](t, rec), 1)

	rec = f.do(t, http.MethodGet, "/api/clients/match?name=reza", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, created.Client.ID, decodeBody[checkout.Client](t, rec).ID)

	rec = f.do(t, http.MethodDelete, "/api/clients/"+created.Client.ID, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/stations/stable", nil)
	assert.Empty(t, decodeBody[[]station.Station](t, rec))
}

func TestTournamentOverHTTP(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/tournaments", map[string]any{
		"name":       "Friday Cup",
		"entryPrice": "1000",
		"players":    []string{"A", "B"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	tour := decodeBody[bracket.Tournament](t, rec)
	winner := "/api/tournaments/" + tour.ID + "/rounds/0/matches/0/winner"

	rec = f.do(t, http.MethodPut, winner, map[string]string{"winner": "C"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPut, winner, map[string]string{"winner": "A"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	done := decodeBody[bracket.Tournament](t, rec)
	assert.True(t, done.Completed)
	assert.Equal(t, "A", done.Winner)

	rec = f.do(t, http.MethodPut, winner, map[string]string{"winner": "B"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/tournaments/"+tour.ID+"/standings", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	standings := decodeBody[standingsResponse](t, rec)
	assert.Equal(t, "A", standings.Podium.Champion)
	assert.EqualValues(t, 2000, standings.Prizes.Pool)
	assert.Equal(t, []string{"Final"}, standings.RoundNames)

	rec = f.do(t, http.MethodDelete, winner, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decodeBody[bracket.Tournament](t, rec).Completed)

	rec = f.do(t, http.MethodGet, "/api/tournaments/"+tour.ID+"/rounds/x/matches/0/winner", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = f.do(t, http.MethodDelete, "/api/tournaments/"+tour.ID, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = f.do(t, http.MethodGet, "/api/tournaments/"+tour.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBackupOverHTTP(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/api/stations/timer", map[string]string{"title": "PC 1"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/backup?format=csv", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "Type,Name,Time,Status,Created\n"))
	assert.Contains(t, rec.Body.String(), "Game Card,PC 1,0,Stopped,")

	rec = f.do(t, http.MethodGet, "/api/backup", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	exported := rec.Body.Bytes()

	rec = f.do(t, http.MethodGet, "/api/backup?format=xml", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/backup", bytes.NewReader([]byte(`{"gameCards":[],"settings":{"gameCenterName":"Arena","costPerHour":5000}}`)))
	imp := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(imp, req)
	require.Equal(t, http.StatusOK, imp.Code, imp.Body.String())
	cards, err := f.app.Stations(station.KindTimer)
	require.NoError(t, err)
	assert.Empty(t, cards)
	assert.Equal(t, "5000", f.app.Settings.App().CostPerHour)

	req = httptest.NewRequest(http.MethodPost, "/api/backup", bytes.NewReader(exported))
	imp = httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(imp, req)
	require.Equal(t, http.StatusOK, imp.Code)
	cards, err = f.app.Stations(station.KindTimer)
	require.NoError(t, err)
	assert.Len(t, cards, 1)
}

func TestLiveFeed(t *testing.T) {
	f := newFixture(t)
	ts := httptest.NewServer(f.srv.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?ticks=false"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer ws.Close()
	require.Eventually(t, func() bool { return f.srv.hub.Connections() == 1 }, time.Second, time.Millisecond)

	rec := f.do(t, http.MethodPost, "/api/stations/timer", map[string]string{"title": "PC 9"})
	require.Equal(t, http.StatusCreated, rec.Code)

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev events.Event
	require.NoError(t, ws.ReadJSON(&ev))
	assert.Equal(t, events.StationAdded, ev.Type)

	f.srv.hub.Close()
	assert.Zero(t, f.srv.hub.Connections())
}
