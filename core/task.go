package pipeline

import "sync/atomic"

// task is an epoch-tagged handle over in-flight cancellable work. Cancel is
// idempotent; once it returns, output tagged with the task's epoch is stale
// and the controller discards it.
type task struct {
	epoch uint64

	cancelled atomic.Bool
	cancel    func()
}

func newTask(epoch uint64, cancel func()) *task {
	return &task{epoch: epoch, cancel: cancel}
}

func (t *task) Cancel() {
	if t == nil || !t.cancelled.CompareAndSwap(false, true) {
		return
	}

	if t.cancel != nil {
		t.cancel()
	}
}

func (t *task) IsCancelled() bool {
	return t != nil && t.cancelled.Load()
}
