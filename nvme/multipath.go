package nvme

// MpPolicy is the multipath failover policy of an NvmeBdevChannel.
type MpPolicy int

const (
	MpActivePassive MpPolicy = iota
	MpActiveActive
)

// MpSelector chooses among available paths under MpActiveActive.
type MpSelector int

const (
	SelectorRoundRobin MpSelector = iota
	SelectorQueueDepth
)

// IoPath is one controller+namespace+qpair triple a multipath channel can
// route I/O through (spec NvmeIoPath).
type IoPath struct {
	Ctrlr *Ctrlr
	Ns    *Ns
	Qpair Qpair
}

// Available reports whether this path may currently carry data I/O, per
// spec §4.5.1: connected qpair, non-failed transport, active namespace not
// mid-ANA-transition, in an Optimized/NonOptimized ANA state.
func (p *IoPath) Available() bool {
	if p.Qpair == nil || !p.Qpair.Connected() {
		return false
	}
	if p.Ctrlr.IsFailed() {
		return false
	}
	return p.Ns.Available()
}

// NvmeBdevChannel is the per-thread multipath state (spec NvmeBdevChannel):
// the set of io-paths, the selection policy, and the round-robin/cached-path
// bookkeeping.
type NvmeBdevChannel struct {
	paths    []*IoPath
	policy   MpPolicy
	selector MpSelector
	rrMinIO  int

	rrCounter int
	current   *IoPath
}

// NewNvmeBdevChannel creates a multipath channel over paths.
func NewNvmeBdevChannel(paths []*IoPath, policy MpPolicy, selector MpSelector, rrMinIO int) *NvmeBdevChannel {
	if rrMinIO <= 0 {
		rrMinIO = 1
	}
	return &NvmeBdevChannel{paths: paths, policy: policy, selector: selector, rrMinIO: rrMinIO}
}

// ClearCache drops the cached current path, called on ANA-change events per
// spec §4.5.1.
func (ch *NvmeBdevChannel) ClearCache() {
	ch.current = nil
	ch.rrCounter = 0
}

// SelectPath implements spec §4.5.1's path-selection algorithm. isAdmin
// relaxes the availability requirement to "any controller not failed",
// matching admin/reset/abort commands which don't need an ANA-accessible
// namespace.
func (ch *NvmeBdevChannel) SelectPath(isAdmin bool) (*IoPath, error) {
	if isAdmin {
		for _, p := range ch.paths {
			if !p.Ctrlr.IsFailed() {
				return p, nil
			}
		}
		return nil, errNoAvailablePath
	}

	switch ch.policy {
	case MpActivePassive:
		return ch.selectActivePassive()
	case MpActiveActive:
		switch ch.selector {
		case SelectorRoundRobin:
			return ch.selectRoundRobin()
		case SelectorQueueDepth:
			return ch.selectQueueDepth()
		}
	}
	return nil, errNoAvailablePath
}

func (ch *NvmeBdevChannel) selectActivePassive() (*IoPath, error) {
	if ch.current != nil && ch.current.Available() {
		return ch.current, nil
	}
	start := ch.indexOf(ch.current)
	var firstNonOptimized *IoPath
	for i := 1; i <= len(ch.paths); i++ {
		p := ch.paths[(start+i)%len(ch.paths)]
		if !p.Available() {
			continue
		}
		if p.Ns.AnaState() == AnaOptimized {
			ch.current = p
			return p, nil
		}
		if firstNonOptimized == nil {
			firstNonOptimized = p
		}
	}
	if firstNonOptimized != nil {
		ch.current = firstNonOptimized
		return firstNonOptimized, nil
	}
	return nil, errRetryable(ch.retryable())
}

func (ch *NvmeBdevChannel) selectRoundRobin() (*IoPath, error) {
	if ch.current != nil && ch.current.Available() && ch.rrCounter < ch.rrMinIO {
		ch.rrCounter++
		return ch.current, nil
	}
	start := ch.indexOf(ch.current)
	for i := 1; i <= len(ch.paths); i++ {
		p := ch.paths[(start+i)%len(ch.paths)]
		if p.Available() {
			ch.current = p
			ch.rrCounter = 1
			return p, nil
		}
	}
	return nil, errRetryable(ch.retryable())
}

func (ch *NvmeBdevChannel) selectQueueDepth() (*IoPath, error) {
	var best *IoPath
	for _, p := range ch.paths {
		if !p.Available() {
			continue
		}
		if best == nil {
			best = p
			continue
		}
		if betterQueueDepth(p, best) {
			best = p
		}
	}
	if best == nil {
		return nil, errRetryable(ch.retryable())
	}
	return best, nil
}

func betterQueueDepth(a, b *IoPath) bool {
	aOpt, bOpt := a.Ns.AnaState() == AnaOptimized, b.Ns.AnaState() == AnaOptimized
	if aOpt != bOpt {
		return aOpt
	}
	return a.Qpair.OutstandingRequests() < b.Qpair.OutstandingRequests()
}

func (ch *NvmeBdevChannel) indexOf(p *IoPath) int {
	if p == nil {
		return 0
	}
	for i, c := range ch.paths {
		if c == p {
			return i
		}
	}
	return 0
}

// retryable reports whether any path still has an unfailed controller or an
// ANA transition that hasn't timed out, per spec §4.5.1's queue-vs-fail
// decision.
func (ch *NvmeBdevChannel) retryable() bool {
	for _, p := range ch.paths {
		if !p.Ctrlr.IsFailed() || (p.Ns.Updating() && p.Ns.MayBecomeAvailable()) {
			return true
		}
	}
	return false
}

type errString2 string

func (e errString2) Error() string { return string(e) }

const errNoAvailablePath = errString2("nvme: -ENXIO no available path")

// errRetryable distinguishes "queue for retry" (true) from "fail now"
// (false) at the call site without a second return value, matching spec
// §4.5.1's "queued for retry with delay 0; otherwise failed with -ENXIO".
type errRetryable bool

func (e errRetryable) Error() string {
	if bool(e) {
		return "nvme: no path available, retryable"
	}
	return string(errNoAvailablePath)
}

// Retryable reports whether this error (returned from SelectPath) means the
// caller should queue the I/O for retry rather than fail it immediately.
func Retryable(err error) bool {
	r, ok := err.(errRetryable)
	return ok && bool(r)
}
