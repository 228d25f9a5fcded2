package reaper

import (
	"sync"
	"time"

	"callbridge/logger"
	"callbridge/module/presence"
	"callbridge/module/signal"
)

// Reaper is the only timeout mechanism in the relay: one periodic sweep
// expires silent presence entries (whose offline hooks end their calls as
// disconnected), times out unanswered ringing calls, and prunes old Ended
// sessions.
type Reaper struct {
	reg *presence.Registry
	sig *signal.Service

	every    time.Duration
	stopOnce sync.Once
	stopCh   chan struct{}
}

func New(reg *presence.Registry, sig *signal.Service, every time.Duration) *Reaper {
	if every <= 0 {
		every = 5 * time.Second
	}
	return &Reaper{
		reg:    reg,
		sig:    sig,
		every:  every,
		stopCh: make(chan struct{}),
	}
}

// Run loops until Stop; call from a goroutine.
func (r *Reaper) Run() {
	t := time.NewTicker(r.every)
	defer t.Stop()
	for {
		select {
		case <-r.stopCh:
			return
		case <-t.C:
			r.SweepOnce()
		}
	}
}

// SweepOnce does one pass. Exported so tests can drive sweeps directly.
func (r *Reaper) SweepOnce() {
	if expired := r.reg.ExpireStale(); len(expired) > 0 {
		logger.Infof("[reaper] expired %d presence entries", len(expired))
	}
	r.sig.ExpireRinging()
	r.sig.PruneEnded()
}

func (r *Reaper) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
}
