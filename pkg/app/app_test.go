package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/christophe-duc/blobstore/pkg/config"
	"github.com/stretchr/testify/assert"
)

func newTestAppConfig(t *testing.T, url string) *config.AppConfig {
	t.Helper()
	dir := t.TempDir()
	uc := config.GetDefaultConfig()
	uc.URL = url
	uc.ScratchDir = filepath.Join(dir, "scratch")
	return &config.AppConfig{
		Name:       "blobstore",
		Version:    "test-version",
		ConfigDir:  dir,
		UserConfig: &uc,
	}
}

func TestNewAppOpensStoreAndScheduler(t *testing.T) {
	appConfig := newTestAppConfig(t, ":memory:")

	app, err := NewApp(appConfig)
	assert.NoError(t, err)
	assert.NotNil(t, app.Store)
	assert.NotNil(t, app.Log)
	assert.NotNil(t, app.GC)

	assert.NoError(t, app.Close())
}

func TestNewAppFailsWithUnwritableScratchDir(t *testing.T) {
	appConfig := newTestAppConfig(t, ":memory:")
	// a scratch dir nested under a file can never be created
	blockerPath := filepath.Join(t.TempDir(), "not-a-dir")
	assert.NoError(t, os.WriteFile(blockerPath, []byte("blocker"), 0o644))
	appConfig.UserConfig.ScratchDir = filepath.Join(blockerPath, "x")

	_, err := NewApp(appConfig)
	assert.Error(t, err)
}

func TestNewAppWiresAccessWindowIntoStore(t *testing.T) {
	appConfig := newTestAppConfig(t, ":memory:")
	appConfig.UserConfig.AccessWindow = time.Hour

	app, err := NewApp(appConfig)
	assert.NoError(t, err)
	defer app.Close()

	ctx := context.Background()
	rec, err := app.Store.Put(ctx, strings.NewReader("hello"))
	assert.NoError(t, err)

	before := rec.LastModified()
	got, err := app.Store.GetIfPresent(ctx, rec.Identifier().String())
	assert.NoError(t, err)
	// the row was just written, so it's inside the one-hour access
	// window and GetIfPresent must not have touched it.
	assert.Equal(t, before, got.LastModified())
	assert.Greater(t, app.Store.AccessWindowMinModified(), int64(0))
}

func TestAppCloseStopsSchedulerBeforeClosingStore(t *testing.T) {
	appConfig := newTestAppConfig(t, ":memory:")

	app, err := NewApp(appConfig)
	assert.NoError(t, err)

	app.GC.Start(app.Store, time.Hour, time.Hour, app.Log)
	assert.NoError(t, app.Close())
}
