package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"support-bot/internal/domain"
	"support-bot/internal/integrations/telegram"
)

// IntakeHandler is the use case the dispatcher feeds.
type IntakeHandler interface {
	HandleMessage(ctx context.Context, m domain.Message) error
	HandleCallback(ctx context.Context, cb domain.Callback) error
}

type job func(ctx context.Context) error

// userQueue holds the pending jobs of one user. A worker goroutine exists
// for as long as the queue is non-empty.
type userQueue struct {
	jobs []job
}

// Dispatcher routes updates to per-user workers: updates from one user are
// handled one at a time in arrival order, different users run in parallel.
type Dispatcher struct {
	intake IntakeHandler
	logger *slog.Logger

	mu     sync.Mutex
	queues map[int64]*userQueue
	wg     sync.WaitGroup
}

func NewDispatcher(intake IntakeHandler, logger *slog.Logger) (*Dispatcher, error) {
	if intake == nil {
		return nil, errors.New("handler: intake must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		intake: intake,
		logger: logger,
		queues: make(map[int64]*userQueue),
	}, nil
}

// Dispatch enqueues u for its sender. Updates without a sender are dropped.
func (d *Dispatcher) Dispatch(ctx context.Context, u telegram.Update) {
	userID, j, ok := d.route(u)
	if !ok {
		d.logger.Debug("update ignored", "update_id", u.UpdateID)
		return
	}

	d.mu.Lock()
	q, running := d.queues[userID]
	if !running {
		q = &userQueue{}
		d.queues[userID] = q
	}
	q.jobs = append(q.jobs, j)
	d.mu.Unlock()

	if !running {
		d.wg.Add(1)
		go d.work(ctx, userID, q)
	}
}

// Wait blocks until every queued update has been handled.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) route(u telegram.Update) (int64, job, bool) {
	switch {
	case u.Message != nil:
		m, ok := u.Message.DomainMessage()
		if !ok {
			return 0, nil, false
		}
		return m.From.ID, func(ctx context.Context) error { return d.intake.HandleMessage(ctx, m) }, true
	case u.CallbackQuery != nil:
		cb := u.CallbackQuery.DomainCallback()
		return cb.From.ID, func(ctx context.Context) error { return d.intake.HandleCallback(ctx, cb) }, true
	default:
		return 0, nil, false
	}
}

func (d *Dispatcher) work(ctx context.Context, userID int64, q *userQueue) {
	defer d.wg.Done()
	for {
		d.mu.Lock()
		if len(q.jobs) == 0 {
			delete(d.queues, userID)
			d.mu.Unlock()
			return
		}
		j := q.jobs[0]
		q.jobs[0] = nil
		q.jobs = q.jobs[1:]
		d.mu.Unlock()

		if err := d.run(ctx, j); err != nil {
			d.logger.Error("update failed", "user_id", userID, "err", err)
		}
	}
}

func (d *Dispatcher) run(ctx context.Context, j job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler: panic: %v", r)
		}
	}()
	return j(ctx)
}
