package notification

import (
	"context"
	"strconv"
	"sync"

	"github.com/rs/zerolog"
)

type alertJob struct {
	recipient string
	data      map[string]string
}

// Dispatcher queues tachycardia alerts and sends them from a fixed set of
// worker goroutines. Notify never blocks: when the queue is full the alert
// is dropped and recorded as such.
type Dispatcher struct {
	manager *Manager
	logger  zerolog.Logger
	queue   chan alertJob

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewDispatcher(mgr *Manager, queueSize int, logger zerolog.Logger) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 1
	}
	return &Dispatcher{
		manager: mgr,
		logger:  logger.With().Str("component", "alert-dispatcher").Logger(),
		queue:   make(chan alertJob, queueSize),
	}
}

// Start launches the worker goroutines.
func (d *Dispatcher) Start(workers int) {
	if workers <= 0 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.work()
	}
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for job := range d.queue {
		n, err := d.manager.SendFromTemplate(context.Background(), TemplateTachycardiaAlert, job.data, job.recipient)
		if err != nil {
			d.logger.Error().Err(err).
				Str("recipient", job.recipient).
				Str("patient_id", job.data["patient_id"]).
				Msg("alert delivery failed")
			continue
		}
		d.logger.Info().
			Str("notification_id", n.ID).
			Str("recipient", job.recipient).
			Str("patient_id", job.data["patient_id"]).
			Msg("alert sent")
	}
}

// Notify enqueues an alert for delivery.
func (d *Dispatcher) Notify(recipient string, patientID int64, heartRate int, timestamp string) {
	job := alertJob{
		recipient: recipient,
		data: map[string]string{
			"patient_id": strconv.FormatInt(patientID, 10),
			"heart_rate": strconv.Itoa(heartRate),
			"timestamp":  timestamp,
		},
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.drop(job, "dispatcher stopped")
		return
	}
	select {
	case d.queue <- job:
	default:
		d.drop(job, "alert queue full")
	}
}

func (d *Dispatcher) drop(job alertJob, reason string) {
	d.logger.Warn().
		Str("recipient", job.recipient).
		Str("patient_id", job.data["patient_id"]).
		Str("reason", reason).
		Msg("alert dropped")
	d.manager.RecordDropped(TemplateTachycardiaAlert, job.data, job.recipient, reason)
}

// Shutdown stops accepting alerts and waits for queued ones to be sent or
// for ctx to expire.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
