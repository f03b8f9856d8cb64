package server

import (
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/Daskott/luna/server/metrics"
	"github.com/fatih/color"
)

var (
	redColor    = color.New(color.FgRed).SprintFunc()
	yellowColor = color.New(color.FgYellow).SprintFunc()
	greenColor  = color.New(color.FgGreen).SprintFunc()
)

type ResponseWriterWithStatus struct {
	http.ResponseWriter
	Status int
}

func (r *ResponseWriterWithStatus) WriteHeader(status int) {
	r.Status = status
	r.ResponseWriter.WriteHeader(status)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		responseWriter := &ResponseWriterWithStatus{
			ResponseWriter: w,
			Status:         200,
		}

		defer func() {
			elapsed := time.Since(start)
			metrics.HttpRequests.WithLabelValues(r.Method, strconv.Itoa(responseWriter.Status)).Inc()
			metrics.HttpDuration.Observe(elapsed.Seconds())

			responseStatus := greenColor(responseWriter.Status)
			if responseWriter.Status >= 400 {
				responseStatus = redColor(responseWriter.Status)
			}

			log.Println(
				r.Method,
				r.RequestURI,
				responseStatus,
				yellowColor(fmt.Sprintf("[%v]", elapsed)))
		}()

		next.ServeHTTP(responseWriter, r)
	})
}

// recoveryMiddleware turns a panicking handler into a 500 response.
func recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				writeError(w, fmt.Sprint(rec), http.StatusInternalServerError)
			}
		}()

		next.ServeHTTP(w, r)
	})
}
