package watcher

import (
	"fmt"
	"sync"
	"time"

	"github.com/Daskott/luna/colors"
	"github.com/Daskott/luna/server/metrics"
	"go.uber.org/zap"
)

const DefaultTick = time.Second

// TimerDrainer hands back the users whose timers just expired, deactivating them.
type TimerDrainer interface {
	DrainExpired(now time.Time) []string
}

// ExpiryHandler is invoked once per drained user. It must not block for long;
// the server passes a function that enqueues the auto-panic job.
type ExpiryHandler func(userID string) error

// Watcher polls the timer store every tick and hands each expired user to onExpiry.
type Watcher struct {
	timers   TimerDrainer
	onExpiry ExpiryHandler
	tick     time.Duration
	now      func() time.Time
	logg     *zap.SugaredLogger

	mu       sync.Mutex
	stopChan chan struct{}
	doneChan chan struct{}
}

func New(timers TimerDrainer, onExpiry ExpiryHandler, tick time.Duration, clock func() time.Time, logg *zap.SugaredLogger) *Watcher {
	if tick <= 0 {
		tick = DefaultTick
	}
	if clock == nil {
		clock = time.Now
	}

	return &Watcher{
		timers:   timers,
		onExpiry: onExpiry,
		tick:     tick,
		now:      clock,
		logg:     logg,
	}
}

// Start runs the watch loop in the background. Calling Start on a running watcher is a no-op.
func (w *Watcher) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopChan != nil {
		return
	}

	w.stopChan = make(chan struct{})
	w.doneChan = make(chan struct{})
	go w.loop(w.stopChan, w.doneChan)
}

// Stop ends the watch loop and waits for the current tick to finish.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopChan == nil {
		return
	}

	close(w.stopChan)
	<-w.doneChan
	w.stopChan = nil
	w.doneChan = nil
}

func (w *Watcher) loop(stopChan <-chan struct{}, doneChan chan<- struct{}) {
	defer close(doneChan)

	ticker := time.NewTicker(w.tick)
	defer ticker.Stop()

	w.logInfof("Starting timer watcher, tick=%v", w.tick)
	for {
		select {
		case <-stopChan:
			w.logInfof("Stopping timer watcher")
			return
		case <-ticker.C:
			w.Step(w.now())
		}
	}
}

// Step performs a single scan at now and returns the users it handed off.
func (w *Watcher) Step(now time.Time) (expired []string) {
	defer func() {
		if r := recover(); r != nil {
			w.logError(fmt.Sprintf("scan panicked: %v", r))
		}
	}()

	expired = w.timers.DrainExpired(now)
	if len(expired) == 0 {
		return expired
	}

	metrics.TimersExpired.Add(float64(len(expired)))
	w.logInfof("%v timer(s) expired", len(expired))

	for _, userID := range expired {
		w.handOff(userID)
	}

	return expired
}

func (w *Watcher) handOff(userID string) {
	defer func() {
		if r := recover(); r != nil {
			w.logError(fmt.Sprintf("user=%v hand-off panicked: %v", userID, r))
		}
	}()

	if err := w.onExpiry(userID); err != nil {
		w.logError(fmt.Sprintf("user=%v hand-off failed: %v", userID, err))
	}
}

func (w *Watcher) logInfof(template string, args ...interface{}) {
	w.logg.Infof(colors.Yellow("[timer watcher] ")+template, args...)
}

func (w *Watcher) logError(msg string) {
	w.logg.Error(colors.Red("[timer watcher] ") + msg)
}
