package allocator

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// Compensation undoes one completed step of a multi-step operation
type Compensation struct {
	Name string
	Undo func(ctx context.Context) error
}

// Compensations is a stack of undo actions. Each successful step pushes its
// inverse; on a later failure the stack is unwound in reverse order.
type Compensations struct {
	actions []Compensation
}

// Push records the undo action for a step that has just succeeded
func (c *Compensations) Push(name string, undo func(ctx context.Context) error) {
	c.actions = append(c.actions, Compensation{Name: name, Undo: undo})
}

// Len returns the number of pending compensations
func (c *Compensations) Len() int {
	return len(c.actions)
}

// Discard forgets all pending compensations once the operation has committed
func (c *Compensations) Discard() {
	c.actions = nil
}

// Run executes pending compensations newest first. Every action is attempted
// even if an earlier one fails; the failures are joined into the result.
// The stack is empty afterwards, so a second Run is a no-op.
func (c *Compensations) Run(ctx context.Context, logger *zap.Logger) error {
	var errs []error
	for i := len(c.actions) - 1; i >= 0; i-- {
		action := c.actions[i]
		if err := action.Undo(ctx); err != nil {
			logger.Error("Compensation failed", zap.String("step", action.Name), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		logger.Info("Compensation applied", zap.String("step", action.Name))
	}
	c.actions = nil
	return errors.Join(errs...)
}
