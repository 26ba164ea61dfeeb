// File: cmd/cmd_test.go
package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagechain/api/schemas"
	"github.com/xkilldash9x/pagechain/internal/browser/page"
	"github.com/xkilldash9x/pagechain/internal/config"
	"github.com/xkilldash9x/pagechain/internal/flow"
	"github.com/xkilldash9x/pagechain/internal/mocks"
	"github.com/xkilldash9x/pagechain/internal/observability"
)

func TestMain(m *testing.M) {
	// The logger initializes once per process; keep test output quiet.
	observability.InitializeLogger(config.LoggerConfig{Level: "fatal", Format: "console", ServiceName: "test"})
	os.Exit(m.Run())
}

// fakeLauncher replaces the browser with in-memory pages and records the configuration it was
// started with.
type fakeLauncher struct {
	cfg    config.BrowserConfig
	pages  []*mocks.FakePage
	closed bool
	err    error
}

func (l *fakeLauncher) launch(_ context.Context, cfg config.BrowserConfig, _ *zap.Logger) (flow.Opener, func(), error) {
	l.cfg = cfg
	if l.err != nil {
		return nil, nil, l.err
	}
	open := func(context.Context) (page.Page, func(), error) {
		p := mocks.NewFakePage("fake")
		p.EvaluateFunc = func(_ context.Context, script string, _ []any) (any, error) {
			if strings.Contains(script, "scrollIntoView") {
				return schemas.ElementGeometry{Vertices: []float64{0, 0, 20, 0, 20, 20, 0, 20}, Width: 20, Height: 20}, nil
			}
			return nil, nil
		}
		l.pages = append(l.pages, p)
		return p, func() {}, nil
	}
	return open, func() { l.closed = true }, nil
}

func useFakeLauncher(t *testing.T) *fakeLauncher {
	t.Helper()
	l := &fakeLauncher{}
	launchBrowser = l.launch
	t.Cleanup(func() { launchBrowser = launch })
	return l
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

const passingFlow = `
name: save-order
start: https://shop.test/orders/7
steps:
  - call: ClickNoWait
    args: [save]
`

func TestRootCmd_VersionFlag(t *testing.T) {
	out, err := execute(t, "--version")
	require.NoError(t, err)
	assert.Equal(t, Version+"\n", out)
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, Version+"\n", out)
}

func TestRunCmd_DefaultStartURL(t *testing.T) {
	l := useFakeLauncher(t)
	path := writeFile(t, "flow.yaml", "name: no-start\nsteps:\n  - call: ExtractIdentifierAsNumber\n    expect: 12\n")

	out, err := execute(t, "run", path, "--url", "https://shop.test/orders/12")
	require.NoError(t, err, out)
	require.Len(t, l.pages, 1)
	url, _ := l.pages[0].URL(context.Background())
	assert.Equal(t, "https://shop.test/orders/12", url)
}

func TestRunCmd_RequiresArgs(t *testing.T) {
	_, err := execute(t, "run")
	assert.ErrorContains(t, err, "requires at least 1 arg(s), only received 0")
}

func TestCheckCmd(t *testing.T) {
	path := writeFile(t, "flows.yaml", passingFlow+"---\nname: other\nsteps:\n  - call: GoTo\n    args: [\"about:blank\"]\n")

	out, err := execute(t, "check", path)
	require.NoError(t, err)
	assert.Contains(t, out, "save-order (1 steps)")
	assert.Contains(t, out, "2 flows OK")

	bad := writeFile(t, "bad.yaml", "name: broken\nsteps:\n  - on: nowhere\n    call: Click\n")
	_, err = execute(t, "check", bad)
	assert.ErrorContains(t, err, "before it is saved")
}

func TestRunCmd_RunsFlows(t *testing.T) {
	l := useFakeLauncher(t)
	path := writeFile(t, "flow.yaml", passingFlow)

	out, err := execute(t, "run", path, "--pace", "0")
	require.NoError(t, err)
	assert.Contains(t, out, "PASS  save-order")
	assert.Contains(t, out, "1/1 flows passed")

	require.Len(t, l.pages, 1)
	clicks := l.pages[0].Clicks()
	require.Len(t, clicks, 1)
	assert.Equal(t, `[data-testid="save"]`, clicks[0].Selector)
	assert.True(t, l.closed, "browser is shut down after the run")
}

func TestRunCmd_ConfigPrecedence(t *testing.T) {
	l := useFakeLauncher(t)
	path := writeFile(t, "flow.yaml", passingFlow)
	cfgFile := writeFile(t, "pagechain.yaml", `
browser:
  driver: playwright
  headless: false
  window_width: 800
`)
	t.Setenv("PAGECHAIN_BROWSER_WINDOW_WIDTH", "1024")

	_, err := execute(t, "--config", cfgFile, "run", path, "--headless=true")
	require.NoError(t, err)

	assert.Equal(t, config.DriverPlaywright, l.cfg.Driver, "config file beats defaults")
	assert.Equal(t, 1024, l.cfg.WindowWidth, "environment beats config file")
	assert.True(t, l.cfg.Headless, "flags beat everything")
}

func TestRunCmd_InvalidConfig(t *testing.T) {
	useFakeLauncher(t)
	path := writeFile(t, "flow.yaml", passingFlow)

	_, err := execute(t, "run", path, "--driver", "netscape")
	assert.ErrorContains(t, err, "browser.driver")
}

func TestRunCmd_ReportsFailures(t *testing.T) {
	useFakeLauncher(t)
	path := writeFile(t, "flow.yaml", "name: broken\nsteps:\n  - call: Teleport\n")

	out, err := execute(t, "run", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 1 flows failed")
	assert.Contains(t, out, "FAIL  broken")
	assert.Contains(t, out, "0/1 flows passed")
}

func TestRunCmd_LaunchFailure(t *testing.T) {
	l := useFakeLauncher(t)
	l.err = errors.New("no chrome")
	path := writeFile(t, "flow.yaml", passingFlow)

	_, err := execute(t, "run", path)
	assert.ErrorContains(t, err, "failed to start browser: no chrome")
}

func TestConfigFromMissing(t *testing.T) {
	_, err := configFrom(context.Background())
	assert.Error(t, err)
}
