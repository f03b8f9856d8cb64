package server

import (
	"errors"
	"net/http"
	"path/filepath"

	"github.com/Daskott/luna/server/fakecall"
	"github.com/Daskott/luna/server/metrics"
	"github.com/Daskott/luna/server/notify"
	"github.com/Daskott/luna/server/registry"
	"github.com/Daskott/luna/server/timer"
	"github.com/Daskott/luna/utils"
	"github.com/gorilla/mux"
)

type ResponsePayload map[string]interface{}

func (app *App) saveLocation(rw http.ResponseWriter, r *http.Request) {
	data, ok := decodeBody(rw, r)
	if !ok {
		return
	}

	latitude, latErr := registry.ParseCoordinate(data["latitude"])
	longitude, lngErr := registry.ParseCoordinate(data["longitude"])
	if latErr != nil || lngErr != nil {
		writeError(rw, registry.ErrInvalidNumber.Error(), http.StatusBadRequest)
		return
	}

	saved, err := app.registry.SaveLocation(userIDFrom(data), latitude, longitude)
	if err != nil {
		writeError(rw, err.Error(), http.StatusBadRequest)
		return
	}

	writeResponse(rw, ResponsePayload{"ok": true, "saved": saved}, http.StatusOK)
}

func (app *App) getLocation(rw http.ResponseWriter, r *http.Request) {
	location, err := app.registry.GetLocation(mux.Vars(r)["user_id"])
	if errors.Is(err, registry.ErrNotFound) {
		writeError(rw, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		writeError(rw, err.Error(), http.StatusInternalServerError)
		return
	}

	writeResponse(rw, ResponsePayload{"ok": true, "location": location}, http.StatusOK)
}

func (app *App) setContacts(rw http.ResponseWriter, r *http.Request) {
	data, ok := decodeBody(rw, r)
	if !ok {
		return
	}

	entries := []interface{}{}
	if raw, present := data["contacts"]; present {
		list, isList := raw.([]interface{})
		if !isList {
			writeError(rw, "contacts must be a list", http.StatusBadRequest)
			return
		}
		entries = list
	}

	cleaned := app.registry.SetContacts(userIDFrom(data), entries)
	writeResponse(rw, ResponsePayload{"ok": true, "count": len(cleaned), "contacts": cleaned}, http.StatusOK)
}

func (app *App) getContacts(rw http.ResponseWriter, r *http.Request) {
	contacts := app.registry.GetContacts(mux.Vars(r)["user_id"])
	writeResponse(rw, ResponsePayload{"ok": true, "count": len(contacts), "contacts": contacts}, http.StatusOK)
}

// manualSos only logs the alert; contacts are emailed by the timer watcher alone.
func (app *App) manualSos(rw http.ResponseWriter, r *http.Request) {
	data, ok := decodeBody(rw, r)
	if !ok {
		return
	}

	result := app.dispatcher.SendSOS(userIDFrom(data), notify.REASON_MANUAL)
	if !result.OK {
		writeResponse(rw, ResponsePayload{"ok": false, "error": result.Error}, http.StatusOK)
		return
	}

	writeResponse(rw, ResponsePayload{
		"ok":        true,
		"maps_link": result.MapsLink,
		"contacts":  result.Contacts,
		"message":   result.Message,
	}, http.StatusOK)
}

func (app *App) startTimer(rw http.ResponseWriter, r *http.Request) {
	data, ok := decodeBody(rw, r)
	if !ok {
		return
	}

	seconds, err := parseSeconds(data)
	if err != nil {
		writeError(rw, err.Error(), http.StatusBadRequest)
		return
	}

	if err = validate.Var(seconds, "min=5"); err != nil {
		writeError(rw, timer.ErrInvalidDuration.Error(), http.StatusBadRequest)
		return
	}

	endsAt, err := app.timers.Start(userIDFrom(data), seconds)
	if errors.Is(err, timer.ErrInvalidDuration) {
		writeError(rw, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		writeError(rw, err.Error(), http.StatusInternalServerError)
		return
	}

	metrics.TimersStarted.Inc()
	writeResponse(rw, ResponsePayload{"ok": true, "ends_at": unixSeconds(endsAt)}, http.StatusOK)
}

func (app *App) cancelTimer(rw http.ResponseWriter, r *http.Request) {
	data, ok := decodeBody(rw, r)
	if !ok {
		return
	}

	app.timers.Cancel(userIDFrom(data))
	metrics.TimersCancelled.Inc()

	writeResponse(rw, ResponsePayload{"ok": true}, http.StatusOK)
}

func (app *App) timerStatus(rw http.ResponseWriter, r *http.Request) {
	status, err := app.timers.Status(mux.Vars(r)["user_id"])
	if errors.Is(err, timer.ErrNotFound) {
		writeError(rw, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		writeError(rw, err.Error(), http.StatusInternalServerError)
		return
	}

	writeResponse(rw, ResponsePayload{
		"ok":                true,
		"remaining_seconds": status.RemainingSeconds,
		"active":            status.Active,
	}, http.StatusOK)
}

func (app *App) fakeCallAudio(rw http.ResponseWriter, r *http.Request) {
	audioPath := app.fakeCall.Generate(r.Context(), fakecall.Script)

	writeResponse(rw, ResponsePayload{
		"status": "Fake call generated",
		"audio":  audioPath,
	}, http.StatusOK)
}

func (app *App) closestHelpPoint(rw http.ResponseWriter, r *http.Request) {
	data, ok := decodeBody(rw, r)
	if !ok {
		return
	}

	if len(data) == 0 {
		writeResponse(rw, ResponsePayload{"error": "No location received"}, http.StatusBadRequest)
		return
	}

	lat, latErr := registry.ParseCoordinate(data["lat"])
	lng, lngErr := registry.ParseCoordinate(data["lng"])
	if latErr != nil || lngErr != nil {
		writeResponse(rw, ResponsePayload{"error": "lat/lng must be numbers"}, http.StatusBadRequest)
		return
	}

	result := app.finder.Closest(r.Context(), lat, lng)
	writeResponse(rw, ResponsePayload{
		"closest_point": result.Name,
		"travel_time":   result.Time,
	}, http.StatusOK)
}

func (app *App) health(rw http.ResponseWriter, r *http.Request) {
	writeResponse(rw, ResponsePayload{"ok": true}, http.StatusOK)
}

func (app *App) index(rw http.ResponseWriter, r *http.Request) {
	indexPath := filepath.Join(app.config.Luna.StaticDir, "index.html")
	if !utils.FileExist(indexPath) {
		writeError(rw, "not found", http.StatusNotFound)
		return
	}

	http.ServeFile(rw, r, indexPath)
}
