package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// State is the lifecycle state of a Pipeline.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Pipeline runs one URI's queue of actions, carrying the last successful
// Result from step to step. A Pipeline is safe for concurrent use; calls to
// Execute and Reset are serialized.
type Pipeline struct {
	mu       sync.Mutex
	uri      string
	recipe   Recipe
	actions  *ActionRegistry
	observer Observer

	queue  []Action
	last   Result
	state  State
	status Status
	err    error

	// unresolved is the completed kind whose successors could not be
	// enqueued. Execute retries the enqueue before running the queue.
	unresolved string
}

// NewPipeline creates a Pipeline for uri seeded with a single Load action.
// The recipe's required actions must already be registered in actions; Cache
// takes care of that.
func NewPipeline(uri string, recipe Recipe, actions *ActionRegistry, obs Observer) (*Pipeline, error) {
	if recipe == nil {
		return nil, fmt.Errorf("recipe must not be nil")
	}
	if actions == nil {
		return nil, fmt.Errorf("action registry must not be nil")
	}
	if obs == nil {
		obs = NopObserver{}
	}
	p := &Pipeline{
		uri:      uri,
		recipe:   recipe,
		actions:  actions,
		observer: obs,
	}
	if err := p.seed(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Pipeline) seed() error {
	load, err := p.actions.Create(LoadKind, ActionConfig{URI: p.uri})
	if err != nil {
		return fmt.Errorf("pipeline %q: seed load action: %w", p.uri, err)
	}
	p.queue = []Action{load}
	p.unresolved = ""
	p.last = InitialResult()
	p.state = StateIdle
	p.status = StatusOK
	p.err = nil
	return nil
}

// Execute runs queued actions in FIFO order until the queue is empty or an
// action fails. When reset is true the carried Result is replaced by the
// initial Result first; the queue is left as is.
//
// Action failures never escape as Go errors: they move the pipeline to
// StateFailed and are available from Err and LastStatus. A failed or
// cancelled action is put back at the front of the queue, so calling Execute
// again retries it. Combined with reset, the retried action receives the
// initial Result: a transform that failed after Load therefore fails again
// on its Empty payload. Use Reset to rerun from Load.
//
// When the successors of a completed action cannot be created the pipeline
// fails with StatusUnknownAction and cannot complete until a later Execute
// manages to enqueue them, or until Reset.
func (p *Pipeline) Execute(ctx context.Context, reset bool) State {
	p.mu.Lock()
	defer p.mu.Unlock()

	log := slog.With("run", uuid.NewString(), "uri", p.uri, "recipe", p.recipe.Name())
	if reset {
		p.last = InitialResult()
	}
	p.state = StateRunning
	p.status = StatusOK
	p.err = nil

	log.Info("executing pipeline actions", "pending", len(p.queue))

	if kind := p.unresolved; kind != "" {
		if err := p.enqueueNext(kind); err != nil {
			p.fail(log, kind, StatusUnknownAction, err)
			p.observer.AfterExecute(ctx, p.uri, p.recipe.Name(), p.state, p.err)
			return p.state
		}
		p.unresolved = ""
	}

	for len(p.queue) > 0 {
		action := p.queue[0]
		p.queue = p.queue[1:]
		kind := action.Kind()

		// Respect cancellation between pop and run.
		select {
		case <-ctx.Done():
			p.requeue(action)
			p.fail(log, kind, StatusCancelled, fmt.Errorf("pipeline cancelled before %q: %w", kind, ctx.Err()))
			p.observer.AfterExecute(ctx, p.uri, p.recipe.Name(), p.state, p.err)
			return p.state
		default:
		}

		log.Debug("executing action", "action", kind)
		p.observer.BeforeAction(ctx, p.uri, kind, p.last)
		start := time.Now()
		res := action.Execute(ctx, p.last)
		p.observer.AfterAction(ctx, p.uri, kind, res, time.Since(start))

		if !res.OK() {
			p.requeue(action)
			p.fail(log, kind, res.Status, res.Err())
			p.observer.AfterExecute(ctx, p.uri, p.recipe.Name(), p.state, p.err)
			return p.state
		}
		p.last = res

		if err := p.enqueueNext(kind); err != nil {
			p.unresolved = kind
			p.fail(log, kind, StatusUnknownAction, err)
			p.observer.AfterExecute(ctx, p.uri, p.recipe.Name(), p.state, p.err)
			return p.state
		}
	}

	p.state = StateCompleted
	log.Info("pipeline complete", "result", p.last.Kind)
	p.observer.AfterExecute(ctx, p.uri, p.recipe.Name(), p.state, nil)
	return p.state
}

// enqueueNext appends the successors of kind. Either all successors are
// enqueued or none are.
func (p *Pipeline) enqueueNext(kind string) error {
	next := p.recipe.NextActions(kind)
	if len(next) == 0 {
		return nil
	}
	created := make([]Action, 0, len(next))
	for _, k := range next {
		a, err := p.actions.Create(k, ActionConfig{URI: p.uri})
		if err != nil {
			return fmt.Errorf("enqueue successor of %q: %w", kind, err)
		}
		created = append(created, a)
	}
	p.queue = append(p.queue, created...)
	return nil
}

func (p *Pipeline) requeue(a Action) {
	p.queue = append([]Action{a}, p.queue...)
}

func (p *Pipeline) fail(log *slog.Logger, kind string, status Status, err error) {
	p.state = StateFailed
	p.status = status
	p.err = &ActionError{Kind: kind, Status: status, Err: err}
	log.Warn("error executing pipeline, quitting", "action", kind, "status", int(status), "err", err)
}

// Reset restores the pipeline to its freshly created state: a single Load
// action, the initial Result, and StateIdle.
func (p *Pipeline) Reset() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.seed()
}

// URI returns the URI the pipeline was built for.
func (p *Pipeline) URI() string { return p.uri }

// Recipe returns the recipe driving the pipeline.
func (p *Pipeline) Recipe() Recipe { return p.recipe }

// State returns the current lifecycle state.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Result returns the last successful Result.
func (p *Pipeline) Result() Result {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

// Err returns the *ActionError of the last failed run, or nil.
func (p *Pipeline) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// LastStatus returns the status code of the last run.
func (p *Pipeline) LastStatus() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// Pending returns the kinds of the queued actions in execution order.
func (p *Pipeline) Pending() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.queue))
	for i, a := range p.queue {
		out[i] = a.Kind()
	}
	return out
}
