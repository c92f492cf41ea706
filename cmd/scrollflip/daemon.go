package main

import (
	"context"
	"log/slog"
	"time"
)

// ============================================================================
// Central Daemon Loop
// ============================================================================
//
// Design rules enforced here:
//   - Dispatch performs no I/O and computes: next state + commands + broadcasts.
//   - The daemon loop is the only place side effects execute (virtual device
//     writes, hotkey actions, snapshot replies).
//   - Control events produced by effects (hotkeys) are fed back into Dispatch
//     on the same serial stream, so the classifier has exactly one writer.
//   - Explicit event and command queues; no nested/re-entrant execution.
//
// ============================================================================

// runDaemon consumes daemon events, dispatches them, and executes the
// resulting commands. Ticks drive the periodic stats broadcast.
//
// Shutdown semantics:
//   - Exits when ctx is canceled
//   - Exits cleanly when the events channel is closed
func runDaemon(
	ctx context.Context,
	events <-chan Event,
	sink EventSink,
	state *DaemonState,
	hotkeys *HotkeyTable,
	broadcasts chan<- StateBroadcast,
	snapshotHz int,
	logger *slog.Logger,
) {
	if state == nil {
		logger.Error("daemon state is nil")
		return
	}

	if snapshotHz <= 0 {
		snapshotHz = defaultSnapshotHz
	}
	ticker := time.NewTicker(time.Second / time.Duration(snapshotHz))
	defer ticker.Stop()

	var eventQueue []Event
	var cmdQueue []Command

	enqueueEvent := func(ev Event) {
		eventQueue = append(eventQueue, ev)
	}

	publish := func(bcs []StateBroadcast) {
		if broadcasts == nil {
			return
		}
		for _, bc := range bcs {
			// Broadcasts are best-effort; never stall the event path
			// behind a slow websocket hub.
			select {
			case broadcasts <- bc:
			default:
				logger.Warn("broadcast queue full, dropping state broadcast")
			}
		}
	}

	flushEvents := func() {
		for len(eventQueue) > 0 {
			ev := eventQueue[0]
			eventQueue = eventQueue[1:]

			dr := Dispatch(state, ev, hotkeys)
			if dr.State != nil {
				state = dr.State
			}
			cmdQueue = append(cmdQueue, dr.Commands...)
			publish(dr.Broadcasts)
		}
	}

	flushCommands := func() {
		for len(cmdQueue) > 0 {
			cmd := cmdQueue[0]
			cmdQueue = cmdQueue[1:]

			runEffect(sink, cmd, logger, enqueueEvent)

			// Hotkey effects may have queued control events; reduce
			// them promptly so state stays coherent.
			flushEvents()
		}
	}

	for {
		select {
		case <-ctx.Done():
			logger.Info("daemon stopping (context canceled)")
			return

		case ev, ok := <-events:
			if !ok {
				logger.Info("daemon stopping (events channel closed)")
				return
			}
			enqueueEvent(ev)
			flushEvents()
			flushCommands()

		case now := <-ticker.C:
			enqueueEvent(Tick{Now: now})
			flushEvents()
			flushCommands()
		}
	}
}
