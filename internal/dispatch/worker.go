package dispatch

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/specialistvlad/burststate/internal/inspect"
	"github.com/specialistvlad/burststate/internal/storeerrors"
)

// worker drains lanes handed to it through the ready channel.
func (p *Pipeline) worker(ctx context.Context, workerID int) {
	defer p.wg.Done()
	logger := p.logger.With("workerID", workerID)
	logger.Debug("Worker started.")

	for {
		select {
		case <-p.done:
			logger.Debug("Worker finished.")
			return
		case l := <-p.ready:
			p.drain(ctx, l)
		}
	}
}

func (p *Pipeline) drain(ctx context.Context, l *lane) {
	for i := 0; i < batchSize; i++ {
		j, ok := l.box.TryTake()
		if !ok {
			break
		}
		if p.isClosed() {
			p.fail(j, storeerrors.ErrStoreShutdown)
			continue
		}
		p.reduce(ctx, l, j)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.box.Len() > 0 && !p.isClosed() {
		p.ready <- l
		return
	}
	l.scheduled = false
}

func (p *Pipeline) reduce(ctx context.Context, l *lane, j *job) {
	action := j.action

	p.gate.RLock()
	current, _ := l.entry.Get()
	next, err := safeReduce(l.def.Reduce, current, action)
	if err != nil {
		p.gate.RUnlock()
		failure := &storeerrors.ReducerFailure{Module: l.def.ID, Action: p.actionName(action), Err: err}
		p.reporter.Report(ctx, failure, "module", l.def.ID, "action", failure.Action)
		p.fail(j, failure)
		return
	}
	version := l.entry.Set(next)
	p.gate.RUnlock()

	p.publish(inspect.Record{Module: l.def.ID, Action: action, At: j.env.At, Outcome: inspect.Reduced})
	if p.logic != nil && l.def.Logic != nil {
		p.logic.Deliver(l.def.ID, action)
	}

	r := Result{ID: j.env.ID, Module: j.module, Action: action, Version: version}
	j.env.settle(r)
	j.ticket.settle(r)
}

// fail settles a queued job that was not applied.
func (p *Pipeline) fail(j *job, err error) {
	p.publish(inspect.Record{Module: j.module, Action: j.action, At: j.env.At, Outcome: inspect.Failed, Err: err})
	r := Result{ID: j.env.ID, Module: j.module, Action: j.action, Err: err}
	j.env.settle(r)
	j.ticket.settle(r)
}

func safeReduce(reduce func(state, action any) (any, error), state, action any) (next any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w\n%s", &storeerrors.PanicError{Value: rec}, debug.Stack())
		}
	}()
	return reduce(state, action)
}
