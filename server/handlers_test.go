package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Daskott/luna/server/fakecall"
	"github.com/Daskott/luna/server/mailer"
	"github.com/Daskott/luna/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type emailRecorder struct {
	mu   sync.Mutex
	sent []string
	done chan struct{}
}

func (e *emailRecorder) SendEmail(ctx context.Context, to, subject, body string) mailer.Result {
	e.mu.Lock()
	e.sent = append(e.sent, to)
	e.mu.Unlock()

	if e.done != nil {
		e.done <- struct{}{}
	}
	return mailer.Result{OK: true}
}

func testConfig(t *testing.T) shared.ServerConfig {
	return shared.ServerConfig{
		Luna: shared.LunaConfig{
			StaticDir: t.TempDir(),
			Cron:      shared.CronConfig{TimeZone: "UTC", StatsSchedule: "*/1 * * * *"},
			Listener:  shared.ListenerConfig{Port: 5003},
			Watcher: shared.WatcherConfig{
				Tick:            time.Second,
				DeliveryTimeout: time.Second,
				Workers:         2,
				QueueSize:       16,
			},
		},
	}
}

func newTestApp(t *testing.T) (*App, *fakeClock, *emailRecorder) {
	clock := &fakeClock{now: time.Date(2022, 1, 1, 12, 0, 0, 0, time.UTC)}
	email := &emailRecorder{}

	app, err := NewApp(testConfig(t), Dependencies{Clock: clock.Now, Email: email})
	require.Nil(t, err)

	return app, clock, email
}

func doRequest(t *testing.T, app *App, method, path, body string) (int, map[string]interface{}) {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	rec := httptest.NewRecorder()

	app.Router().ServeHTTP(rec, req)

	payload := map[string]interface{}{}
	if rec.Body.Len() > 0 {
		require.Nil(t, json.Unmarshal(rec.Body.Bytes(), &payload), rec.Body.String())
	}
	return rec.Code, payload
}

func TestSaveLocation(t *testing.T) {
	app, _, _ := newTestApp(t)

	code, payload := doRequest(t, app, "POST", "/api/location",
		`{"user_id":"u1","latitude":43.65,"longitude":"-79.38"}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, payload["ok"])
	assert.Equal(t, map[string]interface{}{"latitude": 43.65, "longitude": -79.38}, payload["saved"])

	code, payload = doRequest(t, app, "GET", "/api/location/u1", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, map[string]interface{}{"latitude": 43.65, "longitude": -79.38}, payload["location"])

	code, payload = doRequest(t, app, "POST", "/api/location", `{"user_id":"u1","latitude":"north","longitude":1}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, false, payload["ok"])
	assert.Equal(t, "latitude/longitude must be numbers", payload["error"])

	code, _ = doRequest(t, app, "POST", "/api/location", `{"user_id":"u1","latitude":1}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = doRequest(t, app, "GET", "/api/location/nobody", "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestSetContacts(t *testing.T) {
	app, _, _ := newTestApp(t)

	code, payload := doRequest(t, app, "POST", "/api/contacts",
		`{"user_id":"u1","contacts":[{"name":"A","email":" a@x.com "},{"name":"B","email":""},"not-an-object"]}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, payload["ok"])
	assert.Equal(t, float64(1), payload["count"])
	assert.Equal(t, []interface{}{map[string]interface{}{"name": "A", "email": "a@x.com"}}, payload["contacts"])

	code, payload = doRequest(t, app, "GET", "/api/contacts/u1", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(1), payload["count"])

	code, payload = doRequest(t, app, "POST", "/api/contacts", `{"user_id":"u1","contacts":"mom@x.com"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "contacts must be a list", payload["error"])

	code, payload = doRequest(t, app, "GET", "/api/contacts/nobody", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, []interface{}{}, payload["contacts"])
}

func TestManualSos(t *testing.T) {
	app, _, email := newTestApp(t)

	code, payload := doRequest(t, app, "POST", "/api/sos", `{"user_id":"u1"}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, map[string]interface{}{"ok": false, "error": "no last location saved"}, payload)

	doRequest(t, app, "POST", "/api/location", `{"user_id":"u1","latitude":1.5,"longitude":2.5}`)
	doRequest(t, app, "POST", "/api/contacts", `{"user_id":"u1","contacts":[{"name":"A","email":"a@x.com"}]}`)

	code, payload = doRequest(t, app, "POST", "/api/sos", `{"user_id":"u1"}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, payload["ok"])
	assert.Equal(t, "https://www.google.com/maps/search/?api=1&query=1.5,2.5", payload["maps_link"])
	assert.Equal(t, "[SOS] (manual) Location: https://www.google.com/maps/search/?api=1&query=1.5,2.5", payload["message"])
	assert.Len(t, payload["contacts"], 1)
	assert.Empty(t, email.sent, "Manual SOS should not email contacts")
}

func TestStartTimerValidation(t *testing.T) {
	app, _, _ := newTestApp(t)

	cases := []struct {
		body          string
		expectedError string
	}{
		{`{"user_id":"u1","seconds":4}`, "seconds must be >= 5"},
		{`{"user_id":"u1"}`, "seconds must be >= 5"},
		{`{"user_id":"u1","seconds":"soon"}`, "seconds must be an integer"},
		{`{"user_id":"u1","seconds":"4.5"}`, "seconds must be an integer"},
		{`{"user_id":"u1","seconds":null}`, "seconds must be an integer"},
		{`{"user_id":"u1","seconds":[5]}`, "seconds must be an integer"},
		{`{"user_id":"u1","seconds":1e20}`, "seconds must be an integer"},
	}

	for _, tcase := range cases {
		t.Run(tcase.body, func(t *testing.T) {
			code, payload := doRequest(t, app, "POST", "/start-timer", tcase.body)
			assert.Equal(t, http.StatusBadRequest, code)
			assert.Equal(t, false, payload["ok"])
			assert.Equal(t, tcase.expectedError, payload["error"])
		})
	}

	code, _ := doRequest(t, app, "GET", "/timer-status/u1", "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestTimerLifecycle(t *testing.T) {
	app, clock, _ := newTestApp(t)

	code, payload := doRequest(t, app, "POST", "/start-timer", `{"user_id":"u1","seconds":"30"}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, payload["ok"])
	assert.Equal(t, unixSeconds(clock.Now().Add(30*time.Second)), payload["ends_at"])

	clock.Advance(10 * time.Second)
	code, payload = doRequest(t, app, "GET", "/timer-status/u1", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, map[string]interface{}{"ok": true, "remaining_seconds": float64(20), "active": true}, payload)

	code, payload = doRequest(t, app, "POST", "/cancel-timer", `{"user_id":"u1"}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, map[string]interface{}{"ok": true}, payload)

	code, _ = doRequest(t, app, "POST", "/cancel-timer", `{"user_id":"u1"}`)
	assert.Equal(t, http.StatusOK, code)
	code, _ = doRequest(t, app, "POST", "/cancel-timer", `{"user_id":"nobody"}`)
	assert.Equal(t, http.StatusOK, code)

	_, payload = doRequest(t, app, "GET", "/timer-status/u1", "")
	assert.Equal(t, map[string]interface{}{"ok": true, "remaining_seconds": float64(0), "active": false}, payload)
}

func TestUserIDDefaultsAndNumbers(t *testing.T) {
	app, _, _ := newTestApp(t)

	code, _ := doRequest(t, app, "POST", "/start-timer", `{"seconds":10.9}`)
	assert.Equal(t, http.StatusOK, code)
	_, payload := doRequest(t, app, "GET", "/timer-status/demo", "")
	assert.Equal(t, float64(10), payload["remaining_seconds"], "Fractional seconds are truncated")

	code, _ = doRequest(t, app, "POST", "/start-timer", `{"user_id":42,"seconds":5}`)
	assert.Equal(t, http.StatusOK, code)
	code, _ = doRequest(t, app, "GET", "/timer-status/42", "")
	assert.Equal(t, http.StatusOK, code)
}

func TestInvalidJsonBody(t *testing.T) {
	app, _, _ := newTestApp(t)

	code, payload := doRequest(t, app, "POST", "/start-timer", `{"seconds":`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, false, payload["ok"])

	code, _ = doRequest(t, app, "POST", "/api/contacts", `["not","an","object"]`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestTimerExpiryEmailsContacts(t *testing.T) {
	app, clock, email := newTestApp(t)
	email.done = make(chan struct{}, 4)

	require.Nil(t, app.workerPool.Start())
	defer app.workerPool.Stop()

	doRequest(t, app, "POST", "/api/location", `{"user_id":"u1","latitude":1,"longitude":2}`)
	doRequest(t, app, "POST", "/api/contacts",
		`{"user_id":"u1","contacts":[{"name":"A","email":"a@x.com"},{"name":"B","email":"b@x.com"}]}`)
	code, _ := doRequest(t, app, "POST", "/start-timer", `{"user_id":"u1","seconds":5}`)
	require.Equal(t, http.StatusOK, code)

	for i := 0; i < 6; i++ {
		clock.Advance(time.Second)
		app.watcher.Step(clock.Now())
	}

	for i := 0; i < 2; i++ {
		select {
		case <-email.done:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for alert emails")
		}
	}

	email.mu.Lock()
	assert.ElementsMatch(t, []string{"a@x.com", "b@x.com"}, email.sent)
	email.mu.Unlock()

	_, payload := doRequest(t, app, "GET", "/timer-status/u1", "")
	assert.Equal(t, false, payload["active"])
}

func TestGetClosestRequiresLocation(t *testing.T) {
	app, _, _ := newTestApp(t)

	code, payload := doRequest(t, app, "POST", "/get_closest", `{}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "No location received", payload["error"])

	code, payload = doRequest(t, app, "POST", "/get_closest", `{"lat":1,"lng":1}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Data Error", payload["closest_point"], "No help points file is configured")
	assert.Equal(t, "N/A", payload["travel_time"])
}

func TestFakeCallFallsBackWithoutApiKey(t *testing.T) {
	app, _, _ := newTestApp(t)

	code, payload := doRequest(t, app, "POST", "/fake-call", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Fake call generated", payload["status"])
	assert.Equal(t, fakecall.FallbackPath, payload["audio"])
}

func TestStaticAndHealth(t *testing.T) {
	app, _, _ := newTestApp(t)
	staticDir := app.config.Luna.StaticDir

	code, _ := doRequest(t, app, "GET", "/health", "")
	assert.Equal(t, http.StatusOK, code)

	code, _ = doRequest(t, app, "GET", "/", "")
	assert.Equal(t, http.StatusNotFound, code)

	require.Nil(t, os.WriteFile(filepath.Join(staticDir, "index.html"), []byte("<h1>luna</h1>"), 0600))
	req := httptest.NewRequest("GET", "/", nil)
	rec := httptest.NewRecorder()
	app.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "luna")

	require.Nil(t, os.WriteFile(filepath.Join(staticDir, "alarm.mp3"), []byte("beep"), 0600))
	req = httptest.NewRequest("GET", "/static/alarm.mp3", nil)
	rec = httptest.NewRecorder()
	app.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "beep", rec.Body.String())
}

func TestRecoveryMiddleware(t *testing.T) {
	handler := recoveryMiddleware(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		panic("unexpected nil location")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"ok":false,"error":"unexpected nil location"}`, rec.Body.String())
}

func TestValidateConfig(t *testing.T) {
	config := testConfig(t)
	assert.Nil(t, ValidateConfig(&config))

	config.Luna.Cron.TimeZone = "Mars/Olympus_Mons"
	assert.NotNil(t, ValidateConfig(&config))

	config = testConfig(t)
	config.Luna.Watcher.Workers = 0
	assert.NotNil(t, ValidateConfig(&config))

	config = testConfig(t)
	config.Twilio.AccountSid = "AC123"
	assert.NotNil(t, ValidateConfig(&config), "Twilio account requires a token & messaging service")
}
