package server

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Daskott/luna/server/gstorage"
	"github.com/Daskott/luna/server/mailer"
	"github.com/Daskott/luna/server/twilio"
	"github.com/Daskott/luna/shared"
	"github.com/Daskott/luna/utils"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Start runs the luna server until the process receives SIGINT or SIGTERM.
func Start(config *shared.ServerConfig) {
	fatalOnError(ValidateConfig(config))
	fatalOnError(utils.CreateDirIfNotExist(config.Luna.StaticDir))

	deps, err := productionDependencies(config)
	fatalOnError(err)

	app, err := NewApp(*config, deps)
	fatalOnError(err)
	fatalOnError(app.Start())

	server := &http.Server{
		Addr:    fmt.Sprintf(":%v", config.Luna.Listener.Port),
		Handler: app.Router(),
	}

	go serve(server)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	cleanup(app, server)
}

// Router returns the HTTP routes served by app.
func (app *App) Router() *mux.Router {
	router := mux.NewRouter()
	router.Use(loggingMiddleware, recoveryMiddleware)

	router.HandleFunc("/", app.index).Methods("GET")
	router.HandleFunc("/health", app.health).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	router.PathPrefix("/static/").Handler(
		http.StripPrefix("/static/", http.FileServer(http.Dir(app.config.Luna.StaticDir))))

	apiRouter := router.PathPrefix("/api").Subrouter()
	apiRouter.HandleFunc("/location", app.saveLocation).Methods("POST")
	apiRouter.HandleFunc("/location/{user_id}", app.getLocation).Methods("GET")
	apiRouter.HandleFunc("/contacts", app.setContacts).Methods("POST")
	apiRouter.HandleFunc("/contacts/{user_id}", app.getContacts).Methods("GET")
	apiRouter.HandleFunc("/sos", app.manualSos).Methods("POST")

	router.HandleFunc("/start-timer", app.startTimer).Methods("POST")
	router.HandleFunc("/cancel-timer", app.cancelTimer).Methods("POST")
	router.HandleFunc("/timer-status/{user_id}", app.timerStatus).Methods("GET")

	router.HandleFunc("/fake-call", app.fakeCallAudio).Methods("POST")
	router.HandleFunc("/get_closest", app.closestHelpPoint).Methods("POST")

	return router
}

func productionDependencies(config *shared.ServerConfig) (Dependencies, error) {
	email := mailer.New(config.Smtp)
	deps := Dependencies{Email: email}

	if !email.Configured() {
		logg.Warn("SMTP is not configured, alert emails will not be delivered")
	}

	// A nil *ClientWrapper must not end up in the SmsSender interface
	if sms := twilio.NewClient(config.Twilio); sms != nil {
		deps.Sms = sms
	}

	if config.Google.Storage.Bucket != "" {
		storage, err := gstorage.NewGStorage(
			config.Google.ApplicationCredentials,
			config.Google.Storage.Bucket,
			config.Google.Storage.Prefix,
		)
		if err != nil {
			return deps, err
		}
		deps.Uploader = storage
	}

	return deps, nil
}
