package browser

import (
	"testing"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/stretchr/testify/assert"
)

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()

	assert.False(t, opts.Headless, "sessions run visibly so sign-in can be finished by hand")
	assert.Equal(t, 60*time.Second, opts.Timeout)
	assert.Equal(t, 1920, opts.ViewportWidth)
	assert.Equal(t, 1080, opts.ViewportHeight)
	assert.Equal(t, "en-IN", opts.Locale)
	assert.Contains(t, opts.UserAgent, "Chrome/120")
}

func TestWaitStateMapping(t *testing.T) {
	assert.Equal(t, playwright.WaitUntilStateNetworkidle, waitUntilState(WaitNetworkIdle))
	assert.Equal(t, playwright.WaitUntilStateLoad, waitUntilState(WaitLoad))
	assert.Equal(t, playwright.WaitUntilStateDomcontentloaded, waitUntilState(WaitDOMContentLoaded))
	assert.Equal(t, playwright.WaitUntilStateDomcontentloaded, waitUntilState(""))

	assert.Equal(t, playwright.LoadStateNetworkidle, loadState(WaitNetworkIdle))
	assert.Equal(t, playwright.LoadStateDomcontentloaded, loadState(WaitDOMContentLoaded))
}

func TestNewPlaywrightLauncherDefaults(t *testing.T) {
	l := NewPlaywrightLauncher(nil, nil)
	assert.NotNil(t, l.opts)
	assert.NotNil(t, l.logger)
}
