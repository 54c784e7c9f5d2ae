package module

import "context"

// LogicHandler is a module's long-running side-effect task. Run receives
// every action reduced by the module, in order, after the new state is
// visible. It returns when ctx is cancelled or actions is closed. A
// returned error other than a cancellation is a failure of this module only.
type LogicHandler interface {
	Run(ctx context.Context, actions <-chan any, store Accessor) error
}

// LogicFactory creates a fresh handler. The supervisor calls it once at
// start and again for each permitted restart.
type LogicFactory func() LogicHandler

// LogicFunc adapts a function to LogicHandler.
type LogicFunc func(ctx context.Context, actions <-chan any, store Accessor) error

// Run implements LogicHandler.
func (f LogicFunc) Run(ctx context.Context, actions <-chan any, store Accessor) error {
	return f(ctx, actions, store)
}

// HandleActions returns a factory for a handler that calls fn for each
// action of type A, one at a time. Other actions are skipped. The first
// error from fn ends the handler.
func HandleActions[A any](fn func(ctx context.Context, action A, store Accessor) error) LogicFactory {
	return func() LogicHandler {
		return LogicFunc(func(ctx context.Context, actions <-chan any, store Accessor) error {
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case raw, ok := <-actions:
					if !ok {
						return nil
					}
					action, match := raw.(A)
					if !match {
						continue
					}
					if err := fn(ctx, action, store); err != nil {
						return err
					}
				}
			}
		})
	}
}
