// internal/browser/shim/shim_test.go
package shim_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/pagechain/api/schemas"
	. "github.com/xkilldash9x/pagechain/internal/browser/shim"
)

func TestBuildClickWrapper(t *testing.T) {
	t.Parallel()

	mockTemplate := `(function() { const cfg = /*{{PAGECHAIN_CLICK_CONFIG}}*/; })();`

	t.Run("should inject binding and flag names", func(t *testing.T) {
		t.Parallel()
		script, err := BuildClickWrapper(mockTemplate, "__bind", "__strict")
		require.NoError(t, err)
		assert.Equal(t, `(function() { const cfg = {"binding":"__bind","strictFlag":"__strict"}; })();`, script)
	})

	t.Run("should reject an empty template", func(t *testing.T) {
		t.Parallel()
		_, err := BuildClickWrapper("", "__bind", "__strict")
		assert.EqualError(t, err, "template is empty")
	})

	t.Run("should reject a template without placeholder", func(t *testing.T) {
		t.Parallel()
		_, err := BuildClickWrapper("(function(){})()", "__bind", "__strict")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "required placeholder")
	})

	t.Run("should require names", func(t *testing.T) {
		t.Parallel()
		_, err := BuildClickWrapper(mockTemplate, "", "__strict")
		assert.Error(t, err)
	})
}

func TestClickWrapperScript(t *testing.T) {
	script, err := ClickWrapperScript()
	require.NoError(t, err)
	assert.NotContains(t, script, ConfigPlaceholder)
	assert.Contains(t, script, schemas.ClickEventBinding)
	assert.Contains(t, script, schemas.StrictClicksFlag)
	assert.Contains(t, script, "__pagechainWrapClick")
}

func TestClickWrapperReportsMissingBindingAfterHandler(t *testing.T) {
	script, err := ClickWrapperScript()
	require.NoError(t, err)

	handler := strings.Index(script, "handler.apply")
	require.Positive(t, handler)
	// The strict failure is raised only from the terminal report, never before the handler.
	throwAt := strings.Index(script, "throw unavailable(testId)")
	require.Positive(t, throwAt)
	settle := strings.Index(script, "function settle(")
	wrap := strings.Index(script, "window.__pagechainWrapClick = function")
	assert.Greater(t, throwAt, settle)
	assert.Less(t, throwAt, wrap)
	assert.Equal(t, 1, strings.Count(script, "throw unavailable("))
	assert.NotContains(t, script[wrap:handler], "settle(")
}
