package app

import (
	"io"

	"github.com/christophe-duc/blobstore/pkg/blobutil"
	"github.com/christophe-duc/blobstore/pkg/config"
	"github.com/christophe-duc/blobstore/pkg/gcsched"
	"github.com/christophe-duc/blobstore/pkg/liveness"
	"github.com/christophe-duc/blobstore/pkg/log"
	"github.com/christophe-duc/blobstore/pkg/spool"
	"github.com/christophe-duc/blobstore/pkg/store"
	"github.com/sirupsen/logrus"
)

// App struct
type App struct {
	closers []io.Closer

	Config    *config.AppConfig
	Log       *logrus.Entry
	Store     *store.Store
	GC        *gcsched.Scheduler
	ErrorChan chan error
}

// NewApp bootstraps a new application: it opens the store's SQLite
// gateway, ensures the schema, and constructs (but does not start) the
// background GC scheduler.
func NewApp(appConfig *config.AppConfig) (*App, error) {
	app := &App{
		closers:   []io.Closer{},
		Config:    appConfig,
		ErrorChan: make(chan error),
	}
	app.Log = log.NewLogger(appConfig)
	liveness.SetDebug(appConfig.Debug)

	spoolDir, err := spool.NewDir(appConfig.EffectiveScratchDir())
	if err != nil {
		return app, err
	}

	uc := appConfig.UserConfig
	dataSource := uc.URL
	if dataSource == "" {
		dataSource = uc.DataSourceName
	}

	s, err := store.Open(dataSource, "DATASTORE", uc.TablePrefix+uc.SchemaObjectPrefix, store.Options{
		MinRecordLength: uc.MinRecordLength,
		SpoolStrategy:   spool.Strategy(uc.SpoolStrategy),
		SpoolDir:        spoolDir,
		CopyWhenReading: uc.CopyWhenReading,
		Log:             app.Log,
	})
	if err != nil {
		return app, err
	}
	app.Store = s
	app.closers = append(app.closers, closerFunc(s.Close))
	s.TouchOnAccessWindow(uc.AccessWindow)

	app.GC = gcsched.New()

	return app, nil
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// Close releases every resource the app acquired, stopping the GC
// scheduler first so it can't touch a store that's about to close.
func (app *App) Close() error {
	if app.GC != nil {
		app.GC.Stop()
	}
	return blobutil.CloseMany(app.closers)
}
