package schemas

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// -- Click Instrumentation Schemas --

// ClickEventBinding is the name of the page binding the in-page click wrapper calls to report
// the lifecycle of an instrumented click handler.
const ClickEventBinding = "__pagechainClickEvent"

// StrictClicksFlag is the page global that, when true, forbids the in-page click wrapper from
// silently skipping its report when the binding is unavailable.
const StrictClicksFlag = "__pagechainStrictClicks"

// ClickPhase is the lifecycle phase reported for an instrumented click.
type ClickPhase string

const (
	ClickPhaseBefore ClickPhase = "before"
	ClickPhaseAfter  ClickPhase = "after"
	ClickPhaseError  ClickPhase = "error"
)

// IsTerminal reports whether the phase ends a tracked click.
func (p ClickPhase) IsTerminal() bool {
	return p == ClickPhaseAfter || p == ClickPhaseError
}

// ClickEvent is the payload emitted by the page for every phase of an instrumented click.
type ClickEvent struct {
	TestID string     `json:"testId"`
	Phase  ClickPhase `json:"phase"`
	Err    string     `json:"err,omitempty"`
}

// -- Element Geometry --

// ElementGeometry defines the bounding box and identity attributes of a DOM element as
// measured after it was scrolled into view.
type ElementGeometry struct {
	Vertices []float64 `json:"vertices"`
	Width    float64   `json:"width"`
	Height   float64   `json:"height"`
	TagName  string    `json:"tagName"`
	// TestID is the value of the configured identifier attribute, empty when absent.
	TestID string `json:"testId,omitempty"`
	// Instrumented is true when the element carries the instrumentation marker attribute.
	Instrumented bool `json:"instrumented,omitempty"`
}

// -- Animation Configuration --

// PointerAnimation configures the visual cursor.
type PointerAnimation struct {
	DurationMs      float64 `json:"durationMs" mapstructure:"duration_ms" yaml:"duration_ms"`
	TransitionStyle string  `json:"transitionStyle" mapstructure:"transition_style" yaml:"transition_style"`
	ClickDelayMs    float64 `json:"clickDelayMs" mapstructure:"click_delay_ms" yaml:"click_delay_ms"`
}

// KeyboardAnimation configures typing pace.
type KeyboardAnimation struct {
	TypeDelayMs float64 `json:"typeDelayMs" mapstructure:"type_delay_ms" yaml:"type_delay_ms"`
}

// AnimationConfig is the process-wide animation setting. On the wire it is either the literal
// false (Disabled) or an object with optional pointer and keyboard sections.
type AnimationConfig struct {
	Disabled bool
	Pointer  *PointerAnimation
	Keyboard *KeyboardAnimation
}

type animationConfigWire struct {
	Pointer  *PointerAnimation  `json:"pointer,omitempty"`
	Keyboard *KeyboardAnimation `json:"keyboard,omitempty"`
}

// MarshalJSON encodes a disabled config as false.
func (a AnimationConfig) MarshalJSON() ([]byte, error) {
	if a.Disabled {
		return []byte("false"), nil
	}
	return json.Marshal(animationConfigWire{Pointer: a.Pointer, Keyboard: a.Keyboard})
}

// UnmarshalJSON accepts false, null, or the object form. The literal true is rejected since it
// carries no timing information.
func (a *AnimationConfig) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	switch string(trimmed) {
	case "false":
		*a = AnimationConfig{Disabled: true}
		return nil
	case "null", "":
		*a = AnimationConfig{}
		return nil
	case "true":
		return fmt.Errorf("animation config: expected false or an object, got true")
	}
	var wire animationConfigWire
	if err := json.Unmarshal(trimmed, &wire); err != nil {
		return fmt.Errorf("animation config: %w", err)
	}
	*a = AnimationConfig{Pointer: wire.Pointer, Keyboard: wire.Keyboard}
	return nil
}
