package notification

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/skindd/doclogs/internal/platform/metrics"
)

var (
	ErrQueueFull = errors.New("notification queue is full")
	ErrStopped   = errors.New("notification dispatcher is stopped")
)

// ContactLookup resolves a doctor's display name and WhatsApp number.
type ContactLookup interface {
	Contact(ctx context.Context, doctorID string) (name, number string, err error)
}

type Config struct {
	Workers    int
	QueueSize  int
	Timeout    time.Duration
	Registerer prometheus.Registerer
}

// Dispatcher delivers booking notices off the request path. Enqueue never
// blocks; a full queue drops the notice.
type Dispatcher struct {
	channel Channel
	lookup  ContactLookup
	history *History
	logger  zerolog.Logger
	timeout time.Duration
	workers int
	total   *prometheus.CounterVec

	mu      sync.RWMutex
	queue   chan BookingNotice
	stopped bool
	wg      sync.WaitGroup
}

func NewDispatcher(cfg Config, channel Channel, lookup ContactLookup, history *History, logger zerolog.Logger) (*Dispatcher, error) {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if history == nil {
		history = NewHistory()
	}

	total, err := metrics.Register(cfg.Registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metrics.Namespace,
		Subsystem: "notification",
		Name:      "dispatch_total",
		Help:      "Booking notices by dispatch outcome.",
	}, []string{"status"}))
	if err != nil {
		return nil, err
	}

	return &Dispatcher{
		channel: channel,
		lookup:  lookup,
		history: history,
		logger:  logger.With().Str("component", "notification").Logger(),
		timeout: cfg.Timeout,
		workers: cfg.Workers,
		total:   total,
		queue:   make(chan BookingNotice, cfg.QueueSize),
	}, nil
}

func (d *Dispatcher) History() *History { return d.history }

func (d *Dispatcher) Start() {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.work()
	}
}

// Enqueue hands a notice to the workers without waiting.
func (d *Dispatcher) Enqueue(n BookingNotice) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		d.drop(n, ErrStopped)
		return ErrStopped
	}
	select {
	case d.queue <- n:
		return nil
	default:
		d.drop(n, ErrQueueFull)
		return ErrQueueFull
	}
}

// Stop refuses new notices and waits for queued ones to drain or ctx to end.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if !d.stopped {
		d.stopped = true
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

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for n := range d.queue {
		d.dispatch(n)
	}
}

func (d *Dispatcher) dispatch(n BookingNotice) *Record {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	rec := &Record{
		ID:        uuid.NewString(),
		SlotID:    n.SlotID,
		DoctorID:  n.DoctorID,
		Channel:   d.channel.Name(),
		CreatedAt: time.Now().UTC(),
	}
	log := d.logger.With().Str("notification_id", rec.ID).Int64("slot_id", n.SlotID).Logger()

	if n.DoctorContact == "" && d.lookup != nil {
		name, number, err := d.lookup.Contact(ctx, n.DoctorID)
		if err != nil {
			log.Warn().Err(err).Str("doctor_id", n.DoctorID).Msg("contact lookup failed")
		} else {
			n.DoctorContact = number
			if n.DoctorName == "" {
				n.DoctorName = name
			}
		}
	}

	number, err := NormalizeContactNumber(n.DoctorContact)
	if err != nil {
		rec.Status = StatusAborted
		rec.Error = err.Error()
		d.finish(rec)
		log.Warn().Err(err).Msg("notice aborted")
		return rec
	}

	text := BuildMessage(n)
	rec.Link = DeepLink(number, text)
	msg := Message{ID: rec.ID, Recipient: number, Text: text, Link: rec.Link, Notice: n}

	if err := d.channel.Deliver(ctx, msg); err != nil {
		rec.Status = StatusFailed
		rec.Error = err.Error()
		d.finish(rec)
		log.Error().Err(err).Str("channel", rec.Channel).Msg("notice delivery failed")
		return rec
	}

	rec.Status = StatusSent
	d.finish(rec)
	log.Debug().Str("channel", rec.Channel).Msg("notice delivered")
	return rec
}

func (d *Dispatcher) drop(n BookingNotice, reason error) {
	d.finish(&Record{
		ID:        uuid.NewString(),
		SlotID:    n.SlotID,
		DoctorID:  n.DoctorID,
		Status:    StatusDropped,
		Error:     reason.Error(),
		CreatedAt: time.Now().UTC(),
	})
}

func (d *Dispatcher) finish(rec *Record) {
	d.history.Add(rec)
	d.total.WithLabelValues(string(rec.Status)).Inc()
}
