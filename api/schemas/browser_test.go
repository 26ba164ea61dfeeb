package schemas

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnimationConfigUnmarshal(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected AnimationConfig
		wantErr  bool
	}{
		{name: "LiteralFalse", input: `false`, expected: AnimationConfig{Disabled: true}},
		{name: "Null", input: `null`, expected: AnimationConfig{}},
		{name: "EmptyObject", input: `{}`, expected: AnimationConfig{}},
		{
			name:  "PointerOnly",
			input: `{"pointer":{"durationMs":400,"transitionStyle":"ease-in-out","clickDelayMs":60}}`,
			expected: AnimationConfig{Pointer: &PointerAnimation{
				DurationMs: 400, TransitionStyle: "ease-in-out", ClickDelayMs: 60,
			}},
		},
		{
			name:     "KeyboardOnly",
			input:    `{"keyboard":{"typeDelayMs":35}}`,
			expected: AnimationConfig{Keyboard: &KeyboardAnimation{TypeDelayMs: 35}},
		},
		{name: "LiteralTrue", input: `true`, wantErr: true},
		{name: "WrongShape", input: `[1,2]`, wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var got AnimationConfig
			err := json.Unmarshal([]byte(tc.input), &got)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if diff := cmp.Diff(tc.expected, got); diff != "" {
				t.Errorf("AnimationConfig mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestAnimationConfigMarshalDisabled(t *testing.T) {
	b, err := json.Marshal(AnimationConfig{Disabled: true})
	require.NoError(t, err)
	assert.Equal(t, "false", string(b))

	b, err = json.Marshal(AnimationConfig{Keyboard: &KeyboardAnimation{TypeDelayMs: 10}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"keyboard":{"typeDelayMs":10}}`, string(b))
}

func TestClickEventDecode(t *testing.T) {
	var ev ClickEvent
	require.NoError(t, json.Unmarshal([]byte(`{"testId":"save","phase":"error","err":"boom"}`), &ev))
	assert.Equal(t, ClickEvent{TestID: "save", Phase: ClickPhaseError, Err: "boom"}, ev)
	assert.True(t, ev.Phase.IsTerminal())
	assert.False(t, ClickPhaseBefore.IsTerminal())
}
