package connection

import "sync/atomic"

// Stats is a snapshot of the manager's counters
type Stats struct {
	Dials            uint64 `json:"dials"`
	Pongs            uint64 `json:"pongs"`
	ForcedCloses     uint64 `json:"forced_closes"`
	DeferredSends    uint64 `json:"deferred_sends"`
	DroppedFrames    uint64 `json:"dropped_frames"`
	MalformedFrames  uint64 `json:"malformed_frames"`
	CommandsReceived uint64 `json:"commands_received"`
	FramesSent       uint64 `json:"frames_sent"`
	CommandsSent     uint64 `json:"commands_sent"`
}

type counters struct {
	dials            atomic.Uint64
	pongs            atomic.Uint64
	forcedCloses     atomic.Uint64
	deferredSends    atomic.Uint64
	droppedFrames    atomic.Uint64
	malformedFrames  atomic.Uint64
	commandsReceived atomic.Uint64
	framesSent       atomic.Uint64
	commandsSent     atomic.Uint64
}

func (c *counters) snapshot() Stats {
	return Stats{
		Dials:            c.dials.Load(),
		Pongs:            c.pongs.Load(),
		ForcedCloses:     c.forcedCloses.Load(),
		DeferredSends:    c.deferredSends.Load(),
		DroppedFrames:    c.droppedFrames.Load(),
		MalformedFrames:  c.malformedFrames.Load(),
		CommandsReceived: c.commandsReceived.Load(),
		FramesSent:       c.framesSent.Load(),
		CommandsSent:     c.commandsSent.Load(),
	}
}
