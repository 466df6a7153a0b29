package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"huntduel/internal/duel"
)

var errCircuitOpen = errors.New("circuit_open")

type Config struct {
	Enabled        bool
	WebhookURL     string
	RequestTimeout time.Duration
	DispatchBuffer int
	Workers        int
	RetryBase      time.Duration
	RetryMax       int

	FailureThreshold    int
	CircuitOpenDuration time.Duration
}

type job struct {
	UserID  string
	Payload []byte
	Attempt int
}

type breakerState struct {
	consecutiveFailures int
	openUntil           time.Time
}

// Dispatcher pushes duel events to an external webhook without ever blocking
// the duel path. Jobs queue on a bounded channel; when the queue is full the
// event is dropped and counted. Delivery failures back off exponentially and
// a per-user circuit breaker stops hammering endpoints that keep failing.
type Dispatcher struct {
	cfg    Config
	sender Sender

	dispatchCh chan job
	retryQ     *retryQueue
	done       chan struct{}

	mu           sync.Mutex
	started      bool
	breakerByKey map[string]breakerState
}

func NewDispatcher(cfg Config, sender Sender) *Dispatcher {
	if cfg.DispatchBuffer <= 0 {
		cfg.DispatchBuffer = 2048
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 500 * time.Millisecond
	}
	if cfg.RetryMax <= 0 {
		cfg.RetryMax = 3
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 3
	}
	if cfg.CircuitOpenDuration <= 0 {
		cfg.CircuitOpenDuration = 30 * time.Second
	}
	if sender == nil && cfg.WebhookURL != "" {
		sender = NewWebhookSender(cfg.WebhookURL, cfg.RequestTimeout)
	}

	d := &Dispatcher{
		cfg:          cfg,
		sender:       sender,
		dispatchCh:   make(chan job, cfg.DispatchBuffer),
		done:         make(chan struct{}),
		breakerByKey: map[string]breakerState{},
	}
	d.retryQ = newRetryQueue(d.dispatchCh, d.done)
	return d
}

func (d *Dispatcher) Start(ctx context.Context) error {
	if !d.cfg.Enabled || d.sender == nil {
		return nil
	}

	d.mu.Lock()
	if d.started {
		d.mu.Unlock()
		return nil
	}
	d.started = true
	d.mu.Unlock()

	for i := 0; i < d.cfg.Workers; i++ {
		go d.worker(ctx)
	}
	go func() {
		<-ctx.Done()
		close(d.done)
	}()
	return nil
}

// Notify implements duel.Notifier. Never blocks.
func (d *Dispatcher) Notify(userID string, ev duel.Event) {
	if !d.cfg.Enabled || d.sender == nil || userID == "" {
		return
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		metricNotifyDroppedTotal.Add(1)
		return
	}
	if !d.enqueue(job{UserID: userID, Payload: payload}) {
		metricNotifyDroppedTotal.Add(1)
	}
}

func (d *Dispatcher) enqueue(j job) bool {
	select {
	case <-d.done:
		return false
	case d.dispatchCh <- j:
		metricNotifyQueuedTotal.Add(1)
		metricNotifyQueueLen.Set(int64(len(d.dispatchCh)))
		return true
	default:
		return false
	}
}

func (d *Dispatcher) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.done:
			return
		case j := <-d.dispatchCh:
			metricNotifyQueueLen.Set(int64(len(d.dispatchCh)))
			d.processJob(ctx, j)
		}
	}
}

func (d *Dispatcher) processJob(ctx context.Context, j job) {
	now := time.Now()
	if err := d.beforeSend(j.UserID, now); err != nil {
		metricNotifyCircuitOpenTotal.Add(1)
		d.retryOrDrop(j)
		return
	}

	if err := d.sender.Send(ctx, j.UserID, j.Payload); err != nil {
		metricNotifyFailedTotal.Add(1)
		d.afterFailure(j.UserID, time.Now())
		if !d.retryOrDrop(j) {
			log.Warn().Err(err).Str("user_id", j.UserID).Msg("duel notification dropped after retries")
		}
		return
	}

	metricNotifySentTotal.Add(1)
	d.afterSuccess(j.UserID)
}

func (d *Dispatcher) retryOrDrop(j job) bool {
	if j.Attempt >= d.cfg.RetryMax {
		metricNotifyRetryDroppedTotal.Add(1)
		return false
	}
	j.Attempt++
	metricNotifyRetryTotal.Add(1)
	delay := d.cfg.RetryBase * time.Duration(1<<(j.Attempt-1))
	d.retryQ.Enqueue(j, delay)
	return true
}

func (d *Dispatcher) beforeSend(key string, now time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	state := d.breakerByKey[key]
	if !state.openUntil.IsZero() && now.Before(state.openUntil) {
		return errCircuitOpen
	}
	return nil
}

func (d *Dispatcher) afterFailure(key string, now time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	state := d.breakerByKey[key]
	state.consecutiveFailures++
	if state.consecutiveFailures >= d.cfg.FailureThreshold {
		state.openUntil = now.Add(d.cfg.CircuitOpenDuration)
		state.consecutiveFailures = 0
	}
	d.breakerByKey[key] = state
}

func (d *Dispatcher) afterSuccess(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.breakerByKey[key] = breakerState{}
}
