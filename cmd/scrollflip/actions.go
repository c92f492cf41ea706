package main

import (
	"fmt"
	"sort"
	"strings"
)

// ============================================================================
// Hotkey action table
// ============================================================================
// Hotkeys are a stateless lookup: (modifier set, key code) -> action. The
// table is built once from config; matching is a pure function. Execution of
// the resulting action happens only in the effects layer.
// ============================================================================

// ModMask is a bitmask of held modifier classes. Left/right variants of the
// same modifier collapse into one bit so "ctrl+f9" matches either ctrl key.
type ModMask uint8

const (
	ModCtrl ModMask = 1 << iota
	ModShift
	ModAlt
	ModMeta
)

func (m ModMask) String() string {
	var parts []string
	if m&ModCtrl != 0 {
		parts = append(parts, "ctrl")
	}
	if m&ModShift != 0 {
		parts = append(parts, "shift")
	}
	if m&ModAlt != 0 {
		parts = append(parts, "alt")
	}
	if m&ModMeta != 0 {
		parts = append(parts, "meta")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "+")
}

// modifierBit maps an evdev key code to its modifier class, or 0 if the key
// is not a modifier.
func modifierBit(code uint16) ModMask {
	switch code {
	case KEY_LEFTCTRL, KEY_RIGHTCTRL:
		return ModCtrl
	case KEY_LEFTSHIFT, KEY_RIGHTSHIFT:
		return ModShift
	case KEY_LEFTALT, KEY_RIGHTALT:
		return ModAlt
	case KEY_LEFTMETA, KEY_RIGHTMETA:
		return ModMeta
	default:
		return 0
	}
}

// parseModNames converts config modifier names into a mask.
func parseModNames(names []string) (ModMask, error) {
	var m ModMask
	for _, n := range names {
		switch strings.ToLower(n) {
		case "ctrl", "control":
			m |= ModCtrl
		case "shift":
			m |= ModShift
		case "alt":
			m |= ModAlt
		case "meta", "super", "cmd":
			m |= ModMeta
		default:
			return 0, fmt.Errorf("unknown modifier %q (must be ctrl, shift, alt or meta)", n)
		}
	}
	return m, nil
}

// ActionKind names what a matched hotkey does.
type ActionKind string

const (
	ActionReset   ActionKind = "reset"   // hard classifier reset
	ActionEnable  ActionKind = "enable"  // turn inversion on
	ActionDisable ActionKind = "disable" // turn inversion off
	ActionToggle  ActionKind = "toggle"  // flip inversion on/off
	ActionExec    ActionKind = "exec"    // run an external command
)

// HotkeyAction is one resolved binding target.
type HotkeyAction struct {
	Kind ActionKind

	// Exec is the command line for ActionExec, split on whitespace by the
	// effects layer (no shell interpretation).
	Exec string
}

type hotkeyChord struct {
	mods ModMask
	code uint16
}

// HotkeyTable maps chords to actions. Immutable after construction.
type HotkeyTable struct {
	bindings map[hotkeyChord]HotkeyAction
}

// NewHotkeyTable builds the table from validated config bindings.
func NewHotkeyTable(bindings []HotkeyBinding) (*HotkeyTable, error) {
	t := &HotkeyTable{bindings: make(map[hotkeyChord]HotkeyAction, len(bindings))}
	for i, b := range bindings {
		mods, err := parseModNames(b.Mods)
		if err != nil {
			return nil, fmt.Errorf("hotkeys[%d]: %w", i, err)
		}
		chord := hotkeyChord{mods: mods, code: uint16(b.Key)}
		if _, dup := t.bindings[chord]; dup {
			return nil, fmt.Errorf("hotkeys[%d]: duplicate binding for %s+key(%d)", i, mods, b.Key)
		}
		kind := ActionKind(strings.ToLower(b.Action))
		switch kind {
		case ActionReset, ActionEnable, ActionDisable, ActionToggle:
			if b.Exec != "" {
				return nil, fmt.Errorf("hotkeys[%d]: exec is only valid with action \"exec\"", i)
			}
		case ActionExec:
			if strings.TrimSpace(b.Exec) == "" {
				return nil, fmt.Errorf("hotkeys[%d]: action \"exec\" requires a non-empty exec command", i)
			}
		default:
			return nil, fmt.Errorf("hotkeys[%d]: unknown action %q", i, b.Action)
		}
		t.bindings[chord] = HotkeyAction{Kind: kind, Exec: b.Exec}
	}
	return t, nil
}

// Lookup returns the action bound to (mods, code), if any. Pure.
func (t *HotkeyTable) Lookup(mods ModMask, code uint16) (HotkeyAction, bool) {
	if t == nil {
		return HotkeyAction{}, false
	}
	a, ok := t.bindings[hotkeyChord{mods: mods, code: code}]
	return a, ok
}

// Len reports the number of bindings.
func (t *HotkeyTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.bindings)
}

// describeBindings renders the table for startup logging, sorted for
// deterministic output.
func (t *HotkeyTable) describeBindings() []string {
	if t == nil {
		return nil
	}
	out := make([]string, 0, len(t.bindings))
	for chord, a := range t.bindings {
		out = append(out, fmt.Sprintf("%s+key(%d) -> %s", chord.mods, chord.code, a.Kind))
	}
	sort.Strings(out)
	return out
}
