package pipeline

import (
	"context"
	"time"
)

// Observer receives hooks around each action run and at the end of every
// Execute call. Hooks run synchronously on the executing goroutine.
type Observer interface {
	BeforeAction(ctx context.Context, uri, kind string, input Result)
	AfterAction(ctx context.Context, uri, kind string, output Result, duration time.Duration)
	AfterExecute(ctx context.Context, uri, recipe string, state State, err error)
}

// NopObserver ignores every hook.
type NopObserver struct{}

func (NopObserver) BeforeAction(context.Context, string, string, Result)               {}
func (NopObserver) AfterAction(context.Context, string, string, Result, time.Duration) {}
func (NopObserver) AfterExecute(context.Context, string, string, State, error)         {}

type multiObserver []Observer

// MultiObserver fans every hook out to each non-nil observer in order.
func MultiObserver(observers ...Observer) Observer {
	var out multiObserver
	for _, o := range observers {
		if o != nil {
			out = append(out, o)
		}
	}
	return out
}

func (m multiObserver) BeforeAction(ctx context.Context, uri, kind string, input Result) {
	for _, o := range m {
		o.BeforeAction(ctx, uri, kind, input)
	}
}

func (m multiObserver) AfterAction(ctx context.Context, uri, kind string, output Result, d time.Duration) {
	for _, o := range m {
		o.AfterAction(ctx, uri, kind, output, d)
	}
}

func (m multiObserver) AfterExecute(ctx context.Context, uri, recipe string, state State, err error) {
	for _, o := range m {
		o.AfterExecute(ctx, uri, recipe, state, err)
	}
}
