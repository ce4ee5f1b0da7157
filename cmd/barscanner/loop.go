package main

import (
	"os"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sweeney/barscanner/internal/button"
	"github.com/sweeney/barscanner/internal/config"
	"github.com/sweeney/barscanner/internal/events"
	"github.com/sweeney/barscanner/internal/mqtt"
	"github.com/sweeney/barscanner/internal/status"
)

// lossWarnInterval bounds how often lost button events are reported.
const lossWarnInterval = 10 * time.Second

// daemon holds what the main loop works on. Everything except the queue
// producer runs on the loop goroutine.
type daemon struct {
	cfg        config.Config
	level      zap.AtomicLevel
	levelFixed bool // --log-level was given
	group      *button.Group
	queue      *events.Queue
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus // may be nil
	tracker    *status.Tracker       // may be nil
	barcodes   <-chan string         // nil when no scanner is configured
	reload     <-chan config.Config  // nil disables reloads
	logger     *zap.SugaredLogger
	now        func() time.Time

	lossLimiter  *rate.Limiter
	reportedLoss uint64
}

func (d *daemon) runLoop(tick, heartbeat <-chan time.Time, sig <-chan os.Signal) error {
	if d.lossLimiter == nil {
		d.lossLimiter = rate.NewLimiter(rate.Every(lossWarnInterval), 1)
	}

	for {
		select {
		case s := <-sig:
			d.logger.Infow("Shutting down", "signal", s)
			d.drain()
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			d.publishSystem("SHUTDOWN", signalName, true)
			return nil

		case <-tick:
			d.drain()
			d.updateTracker()

		case code := <-d.barcodes:
			d.logger.Infow("Barcode", "barcode", code)
			if d.tracker != nil {
				d.tracker.RecordBarcode(code, d.now())
			}
			if err := d.publisher.PublishBarcode(code); err != nil {
				// Don't crash on publish failure
				d.logger.Warnw("Publish error", "barcode", code, "error", err)
			}

		case <-heartbeat:
			if d.tracker != nil {
				// Refresh network info for heartbeat
				if net := readNetworkInfo(); net != nil {
					d.tracker.SetNetwork(net)
				}
				d.updateTracker()
			}
			d.publishSystem("HEARTBEAT", "", false)

		case c := <-d.reload:
			d.drain()
			d.apply(c)
		}
	}
}

// drain dispatches every queued button event.
func (d *daemon) drain() {
	for {
		e, ok := d.queue.Get()
		if !ok {
			break
		}
		if d.tracker != nil {
			d.tracker.RecordEvent(e)
		}
		if !e.Kind.IsGesture() {
			d.logger.Debugw("Button edge", "button", e.Data, "event", e.Kind)
			continue
		}
		d.logger.Infow("Button gesture", "button", e.Data, "event", e.Kind)
		if err := d.publisher.PublishButton(e); err != nil {
			d.logger.Warnw("Publish error", "button", e.Data, "event", e.Kind, "error", err)
		}
	}

	if dropped := d.queue.Dropped(); dropped > d.reportedLoss && d.lossLimiter.Allow() {
		d.logger.Warnw("Button events lost, queue overflowed",
			"lost", dropped-d.reportedLoss,
			"total", dropped,
			"capacity", d.queue.Capacity())
		d.reportedLoss = dropped
	}
}

func (d *daemon) updateTracker() {
	if d.tracker == nil {
		return
	}
	d.tracker.SetQueue(status.Queue{
		Depth:    d.queue.Depth(),
		Capacity: d.queue.Capacity(),
		Dropped:  d.queue.Dropped(),
	})
	d.tracker.SetButtons(buttonStates(d.group))
	if d.mqttStatus != nil {
		d.tracker.SetMQTTConnected(d.mqttStatus.IsConnected())
	}
}

func (d *daemon) publishSystem(event, reason string, retained bool) {
	e := mqtt.SystemEvent{
		Timestamp: d.now(),
		Event:     event,
		Reason:    reason,
		Retained:  retained,
	}
	if d.tracker != nil {
		d.updateTracker()
		e.RawPayload = status.FormatStatusEvent(d.tracker.Snapshot(), event, reason)
	}
	if err := d.publisher.PublishSystem(e); err != nil {
		d.logger.Warnw("Failed to publish system event", "event", event, "error", err)
		return
	}
	d.logger.Debugw("Published system event", "event", event)
}

// needsRestart reports whether c changes a setting that is only read at startup.
func needsRestart(old, c config.Config) bool {
	return c.MQTTServer != old.MQTTServer || c.MQTTPort != old.MQTTPort ||
		c.MQTTClient != old.MQTTClient || c.MQTTUser != old.MQTTUser ||
		c.MQTTPassword != old.MQTTPassword ||
		c.SerialPort != old.SerialPort || c.SerialBaud != old.SerialBaud ||
		c.Terminator != old.Terminator ||
		c.GPIOChip != old.GPIOChip || c.ButtonPin != old.ButtonPin ||
		c.ButtonActiveHigh != old.ButtonActiveHigh ||
		c.HTTPAddr != old.HTTPAddr || c.Poll != old.Poll || c.Heartbeat != old.Heartbeat
}

// apply takes over the settings that can change without a restart:
// topics, retain flag, click thresholds and log level.
func (d *daemon) apply(c config.Config) {
	old := d.cfg
	d.logger.Infow("Settings changed, reloading")

	if needsRestart(old, c) {
		d.logger.Warnw("Some settings take effect after a restart")
	}

	if !d.levelFixed {
		if err := setLevel(d.level, c.LogLevel); err != nil {
			d.logger.Warnw("Ignoring log level", "error", err)
		}
	}

	// The system topic follows the connected client id.
	d.publisher.SetTopics(mqtt.Topics{
		Barcode:  c.BarcodeTopic,
		Button:   c.ButtonTopic,
		System:   mqtt.SystemTopic(old.MQTTClient),
		Retained: c.MQTTRetained,
	})
	applied := old
	applied.BarcodeTopic = c.BarcodeTopic
	applied.ButtonTopic = c.ButtonTopic
	applied.MQTTRetained = c.MQTTRetained
	applied.LogLevel = c.LogLevel

	th := button.ThresholdsFromDurations(c.Debounce, c.DoubleClick, c.LongClick)
	if th != d.group.Thresholds() {
		if err := d.setThresholds(th); err != nil {
			d.logger.Warnw("Keeping click thresholds", "error", err)
		} else {
			applied.Debounce = c.Debounce
			applied.DoubleClick = c.DoubleClick
			applied.LongClick = c.LongClick
			d.logger.Infow("Click thresholds changed",
				"debounce", c.Debounce,
				"doubleClick", c.DoubleClick,
				"longClick", c.LongClick)
		}
	}

	d.cfg = applied
	if d.tracker != nil {
		d.tracker.SetConfig(statusConfig(applied))
	}
}

// setThresholds swaps the click windows. Buttons are paused for the swap
// and restart from idle; anything queued in between is discarded.
func (d *daemon) setThresholds(th button.Thresholds) error {
	if err := th.Validate(); err != nil {
		return err
	}
	d.group.PauseAll()
	err := d.group.SetThresholds(th)
	d.queue.Clear()
	if rerr := d.group.ResumeAll(); rerr != nil && err == nil {
		err = rerr
	}
	return err
}
