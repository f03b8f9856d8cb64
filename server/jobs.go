package server

import (
	"fmt"

	"github.com/Daskott/luna/colors"
	"github.com/Daskott/luna/server/metrics"
	"github.com/Daskott/luna/server/work"
)

const (
	AUTO_PANIC_JOB    = "autoPanic"
	REPORT_TIMERS_JOB = "reportTimers"
)

func registerJobHandlers(app *App) error {
	err := app.workerPool.Register(AUTO_PANIC_JOB, func(args map[string]interface{}) error {
		userID, ok := args["user_id"].(string)
		if !ok {
			return fmt.Errorf("autoPanic: invalid user_id %v", args["user_id"])
		}

		app.dispatcher.AutoTriggerPanic(userID)
		return nil
	})
	if err != nil {
		return err
	}

	return app.workerPool.Register(REPORT_TIMERS_JOB, func(map[string]interface{}) error {
		active := app.timers.ActiveCount()
		metrics.ActiveTimers.Set(float64(active))
		logg.Infof(colors.Blue("%v active timer(s)"), active)
		return nil
	})
}

func enqueueJobs(app *App) error {
	return app.workerPool.PeriodicallyPerform(app.config.Luna.Cron.StatsSchedule, work.JobParams{
		Name:    REPORT_TIMERS_JOB,
		Handler: REPORT_TIMERS_JOB,
		Args:    map[string]interface{}{},
	})
}
