package server

import (
	"net/http"
	"time"

	"github.com/Daskott/luna/server/fakecall"
	"github.com/Daskott/luna/server/helppoint"
	"github.com/Daskott/luna/server/httpclient"
	"github.com/Daskott/luna/server/notify"
	"github.com/Daskott/luna/server/registry"
	"github.com/Daskott/luna/server/timer"
	"github.com/Daskott/luna/server/watcher"
	"github.com/Daskott/luna/server/work"
	"github.com/Daskott/luna/shared"
)

// Dependencies are the collaborators App talks to outside the process.
type Dependencies struct {
	Clock      func() time.Time
	Email      notify.EmailSender
	Sms        notify.SmsSender
	Uploader   fakecall.Uploader
	HttpClient *http.Client
}

// App owns all in-memory state of a running server. Its lifetime is the process
// lifetime; tests build a fresh one per case.
type App struct {
	config     shared.ServerConfig
	timers     *timer.Store
	registry   *registry.Registry
	dispatcher *notify.Dispatcher
	workerPool *work.WorkerPoolAdapter
	watcher    *watcher.Watcher
	finder     *helppoint.Finder
	fakeCall   *fakecall.Generator
}

func NewApp(config shared.ServerConfig, deps Dependencies) (*App, error) {
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.HttpClient == nil {
		deps.HttpClient = httpclient.New(config.Luna.Watcher.DeliveryTimeout)
	}

	app := &App{
		config:   config,
		timers:   timer.NewStore(deps.Clock),
		registry: registry.New(),
		workerPool: work.NewWorkerAdapter(
			config.Luna.Cron.TimeZone,
			config.Luna.Watcher.Workers,
			config.Luna.Watcher.QueueSize,
		),
	}

	app.dispatcher = notify.NewDispatcher(
		app.registry,
		deps.Email,
		deps.Sms,
		config.Luna.Watcher.DeliveryTimeout,
		logg,
	)

	app.watcher = watcher.New(
		app.timers,
		app.enqueueAutoPanic,
		config.Luna.Watcher.Tick,
		deps.Clock,
		logg,
	)

	app.finder = helppoint.NewFinder(
		deps.HttpClient,
		config.Geoapify.BaseURL,
		config.Geoapify.ApiKey,
		config.Geoapify.HelpPointsFile,
		logg,
	)

	app.fakeCall = fakecall.NewGenerator(deps.HttpClient, fakecall.Config{
		BaseURL:   config.ElevenLabs.BaseURL,
		ApiKey:    config.ElevenLabs.ApiKey,
		VoiceID:   config.ElevenLabs.VoiceID,
		ModelID:   config.ElevenLabs.ModelID,
		StaticDir: config.Luna.StaticDir,
	}, deps.Uploader, logg)

	if err := registerJobHandlers(app); err != nil {
		return nil, err
	}

	return app, nil
}

// Start starts the worker pool, periodic jobs & the timer watcher.
func (app *App) Start() error {
	if err := enqueueJobs(app); err != nil {
		return err
	}

	if err := app.workerPool.Start(); err != nil {
		return err
	}
	app.watcher.Start()

	return nil
}

// Stop stops the watcher first so no new alerts are queued, then the workers.
func (app *App) Stop() {
	app.watcher.Stop()
	app.workerPool.Stop()
}

func (app *App) enqueueAutoPanic(userID string) error {
	return app.workerPool.Perform(work.JobParams{
		Name:    "autoPanic:" + userID,
		Handler: AUTO_PANIC_JOB,
		Args:    map[string]interface{}{"user_id": userID},
	})
}
