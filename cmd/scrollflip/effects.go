package main

import (
	"log/slog"
	"os/exec"
	"strings"
)

// EventSink is where forwarded events are written. Implemented by UinputSink;
// faked in tests.
type EventSink interface {
	WriteScroll(sc ScrollEvent) error
	WriteRaw(ev inputEvent) error
}

// runEffect executes a single dispatcher-emitted Command (side effect):
// writes to the virtual output device, hotkey actions, snapshot delivery.
//
// Design rules:
//   - This function is allowed to perform I/O.
//   - It must never call Dispatch() directly; it only emits Events via
//     onEvent for the daemon loop to reduce.
func runEffect(
	sink EventSink,
	cmd Command,
	logger *slog.Logger,
	onEvent func(Event),
) {
	switch c := cmd.(type) {
	case CmdForwardScroll:
		if sink == nil {
			return
		}
		if err := sink.WriteScroll(c.Scroll); err != nil {
			// A failing sink means the virtual device is gone;
			// log and keep going, the reader will surface the
			// fatal error if the tap itself broke.
			logger.Error("forward scroll failed", "error", err, "modified", c.Modified)
		}

	case CmdForwardRaw:
		if sink == nil {
			return
		}
		if err := sink.WriteRaw(c.Raw); err != nil {
			logger.Error("forward raw event failed", "error", err, "type", c.Raw.Type, "code", c.Raw.Code)
		}

	case CmdRunAction:
		runHotkeyAction(c.Action, logger, onEvent)

	case CmdPublishSnapshot:
		if c.Reply == nil {
			logger.Warn("state snapshot requested with nil reply channel")
			return
		}
		// Never block the daemon loop on a slow requester.
		select {
		case c.Reply <- c.Snapshot:
		default:
			logger.Warn("state snapshot reply channel not ready; dropping snapshot")
		}

	default:
		logger.Warn("unknown command type", "command", cmd.String())
	}
}

// runHotkeyAction translates a matched hotkey into its effect. Builtin
// actions become control events fed back into the dispatcher; exec actions
// launch detached external commands.
func runHotkeyAction(a HotkeyAction, logger *slog.Logger, onEvent func(Event)) {
	switch a.Kind {
	case ActionReset:
		logger.Info("hotkey: classifier reset")
		if onEvent != nil {
			onEvent(ResetClassifier{})
		}

	case ActionEnable:
		logger.Info("hotkey: inversion enabled")
		if onEvent != nil {
			onEvent(SetEnabled{Enabled: true})
		}

	case ActionDisable:
		logger.Info("hotkey: inversion disabled")
		if onEvent != nil {
			onEvent(SetEnabled{Enabled: false})
		}

	case ActionToggle:
		logger.Info("hotkey: inversion toggled")
		if onEvent != nil {
			onEvent(ToggleEnabled{})
		}

	case ActionExec:
		argv := strings.Fields(a.Exec)
		if len(argv) == 0 {
			logger.Warn("hotkey exec with empty command")
			return
		}
		// No shell interpretation; fire and forget so the event path
		// never waits on a child process.
		cmd := exec.Command(argv[0], argv[1:]...)
		if err := cmd.Start(); err != nil {
			logger.Error("hotkey exec failed", "command", a.Exec, "error", err)
			return
		}
		logger.Info("hotkey: launched", "command", a.Exec, "pid", cmd.Process.Pid)
		go func() {
			// Reap the child; its exit status is informational only.
			if err := cmd.Wait(); err != nil {
				logger.Debug("hotkey command exited with error", "command", a.Exec, "error", err)
			}
		}()

	default:
		logger.Warn("unknown hotkey action", "kind", string(a.Kind))
	}
}
