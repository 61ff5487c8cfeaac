package bdev

import (
	"sync"
	"time"

	"github.com/go-bdev/bdev/internal/constants"
)

// ResetBdev fans RESET_IN_PROGRESS out to every channel open on b, aborts
// every queued (NOMEM/locked/QoS) I/O, waits for each channel's
// already-submitted I/O to complete naturally, then clears the flag and
// returns — spec §4.4.6's reset algorithm.
func (b *Bdev) ResetBdev() error {
	b.mu.Lock()
	channels := make([]*BdevChannel, 0, len(b.channels))
	for ch := range b.channels {
		channels = append(channels, ch)
	}
	b.mu.Unlock()

	var wg sync.WaitGroup
	for _, ch := range channels {
		ch.setResetInProgress(true)
	}
	for _, ch := range channels {
		ch.abortQueuedOnReset()
	}
	for _, ch := range channels {
		wg.Add(1)
		go func(ch *BdevChannel) {
			defer wg.Done()
			ch.waitOutstandingDrained()
		}(ch)
	}
	wg.Wait()

	for _, ch := range channels {
		ch.setResetInProgress(false)
	}
	return nil
}

// waitOutstandingDrained blocks until every I/O this channel submitted
// before the reset began has completed on its own; reset never cancels
// in-flight module calls, only queued ones (spec §4.4.6).
func (ch *BdevChannel) waitOutstandingDrained() {
	for {
		ch.mu.Lock()
		n := len(ch.submitted)
		ch.mu.Unlock()
		if n == 0 {
			return
		}
		time.Sleep(constants.ResetDrainPollInterval)
	}
}

// AbortIo scans this channel's retry/locked/NOMEM/qos lists for an I/O
// matching caller_ctx and submit_tsc and completes it as aborted, per spec
// §4.4.6's abort algorithm. Already-submitted I/O inside the module cannot
// be abort-scanned here (the module boundary has no cancel primitive in
// this core); callers relying on abort for in-flight I/O must use a module
// that honors ctx cancellation.
func (ch *BdevChannel) AbortIo(callerCtx any, submitTsc int64) bool {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	if io, ok := removeMatching(&ch.nomem, callerCtx, submitTsc); ok {
		ch.mu.Unlock()
		io.completeLocked(StatusAborted)
		ch.mu.Lock()
		return true
	}
	if io, ok := removeMatching(&ch.locked, callerCtx, submitTsc); ok {
		ch.mu.Unlock()
		io.completeLocked(StatusAborted)
		ch.mu.Lock()
		return true
	}
	if io, ok := removeMatching(&ch.qosQueue, callerCtx, submitTsc); ok {
		ch.mu.Unlock()
		io.completeLocked(StatusAborted)
		ch.mu.Lock()
		return true
	}
	return false
}

func removeMatching(list *[]*BdevIo, callerCtx any, submitTsc int64) (*BdevIo, bool) {
	for i, io := range *list {
		if io.cbCtx == callerCtx && io.submitTsc == submitTsc {
			*list = append((*list)[:i], (*list)[i+1:]...)
			return io, true
		}
	}
	return nil, false
}
