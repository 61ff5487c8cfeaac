package qos

import (
	"github.com/go-bdev/bdev/internal/clock"
	"github.com/go-bdev/bdev/internal/constants"
)

// Drainer is implemented by whatever owns the per-channel QoS wait queues;
// Drain is called once per refilled timeslice and should release as many
// queued I/Os as the fresh quota permits, per spec §4.2 step 4.
type Drainer interface {
	Drain()
}

// Poller runs the timeslice refill loop of spec §4.2 for a single bdev's
// Qos: the owning thread is whichever channel first opened the bdev after
// QoS was enabled, mirrored here simply by whoever calls Tick.
type Poller struct {
	qos       *Qos
	clock     clock.Clock
	timeslice int64
	last      int64
	drainers  []Drainer
}

// NewPoller creates a poller for qos using clk as its time source. The
// timeslice window is the spec-mandated 1ms tick expressed in nanoseconds.
func NewPoller(qos *Qos, clk clock.Clock) *Poller {
	return &Poller{
		qos:       qos,
		clock:     clk,
		timeslice: constants.QosTimesliceNs,
		last:      clk.Now(),
	}
}

// AddDrainer registers a channel-side queue to be drained after each
// refill tick.
func (p *Poller) AddDrainer(d Drainer) {
	p.drainers = append(p.drainers, d)
}

// Tick runs one pass of the poller. If less than a full timeslice has
// elapsed it is a no-op, matching step 1 ("if now < last + timeslice,
// return idle").
func (p *Poller) Tick() {
	now := p.clock.Now()
	if now < p.last+p.timeslice {
		return
	}
	var ticks int64
	for now >= p.last+p.timeslice {
		p.last += p.timeslice
		ticks++
	}
	p.qos.Refill(ticks)
	for _, d := range p.drainers {
		d.Drain()
	}
}
