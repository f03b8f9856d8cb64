package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Daskott/luna/server/logger"
	"github.com/Daskott/luna/shared"
	"github.com/go-playground/validator"
)

const DEFAULT_USER_ID = "demo"

var (
	logg     = logger.NewLogger()
	validate = validator.New()

	errSecondsNotInteger = errors.New("seconds must be an integer")
)

func init() {
	if err := RegisterValidators(validate); err != nil {
		logg.Panic(err)
	}
}

// ---------------------------------------------------------------------------------//
// Handler Helper functions
// --------------------------------------------------------------------------------//

func writeResponse(rw http.ResponseWriter, payLoad ResponsePayload, statusCode int) {
	if statusCode >= http.StatusInternalServerError {
		logg.Error(payLoad["error"])
	} else if statusCode >= http.StatusBadRequest {
		logg.Info(payLoad["error"])
	}

	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(statusCode)
	json.NewEncoder(rw).Encode(payLoad)
}

func writeError(rw http.ResponseWriter, errMsg string, statusCode int) {
	writeResponse(rw, ResponsePayload{"ok": false, "error": errMsg}, statusCode)
}

// decodeBody reads a JSON object body. An empty body is an empty object.
func decodeBody(rw http.ResponseWriter, r *http.Request) (map[string]interface{}, bool) {
	data := make(map[string]interface{})

	err := json.NewDecoder(r.Body).Decode(&data)
	if errors.Is(err, io.EOF) {
		return map[string]interface{}{}, true
	}
	if err != nil {
		writeError(rw, fmt.Sprintf("invalid JSON body: %v", err), http.StatusBadRequest)
		return nil, false
	}

	if data == nil {
		data = map[string]interface{}{}
	}
	return data, true
}

// userIDFrom returns the request's user_id as a string, "demo" when absent.
func userIDFrom(data map[string]interface{}) string {
	value, ok := data["user_id"]
	if !ok || value == nil {
		return DEFAULT_USER_ID
	}

	switch v := value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// parseSeconds accepts a JSON number (truncated) or an integer string.
// A missing value is 0.
func parseSeconds(data map[string]interface{}) (int, error) {
	value, ok := data["seconds"]
	if !ok {
		return 0, nil
	}

	switch v := value.(type) {
	case float64:
		if math.IsNaN(v) || math.Abs(v) > math.MaxInt32 {
			return 0, errSecondsNotInteger
		}
		return int(v), nil
	case string:
		seconds, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || seconds > math.MaxInt32 || seconds < math.MinInt32 {
			return 0, errSecondsNotInteger
		}
		return seconds, nil
	default:
		return 0, errSecondsNotInteger
	}
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

// ---------------------------------------------------------------------------------//
// Validation Helper functions
// --------------------------------------------------------------------------------//

func RegisterValidators(validate *validator.Validate) error {
	return validate.RegisterValidation("time_zone", func(fl validator.FieldLevel) bool {
		_, err := time.LoadLocation(fl.Field().String())
		return err == nil
	})
}

// ValidateConfig checks a loaded config for missing or malformed values.
func ValidateConfig(config *shared.ServerConfig) error {
	err := validate.Struct(config)
	if err == nil {
		return nil
	}

	return fmt.Errorf("invalid server config: %v", strings.ReplaceAll(err.Error(), "\n", "; "))
}

// ---------------------------------------------------------------------------------//
// Server Helper functions
// --------------------------------------------------------------------------------//

func serve(server *http.Server) {
	logg.Infof("Luna server is listening on port%v", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Fatal(err)
	}
}

func cleanup(app *App, server *http.Server) {
	// Stop the watcher, periodic jobs & workers
	app.Stop()

	// Shutdown server gracefully
	ctxShutDown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctxShutDown); err != nil {
		logg.Fatalf("Luna server shutdown failed:%+s", err)
	}

	logg.Infof("Luna server stopped properly")
}

func fatalOnError(err error) {
	if err != nil {
		logg.Fatal(err)
	}
}
