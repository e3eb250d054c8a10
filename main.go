package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/christophe-duc/blobstore/pkg/app"
	"github.com/christophe-duc/blobstore/pkg/blobutil"
	"github.com/christophe-duc/blobstore/pkg/config"
	"github.com/go-errors/errors"
	"github.com/integrii/flaggy"
	"github.com/jesseduffield/yaml"
	"github.com/samber/lo"
)

const defaultVersion = "unversioned"

var (
	commit      string
	version     = defaultVersion
	date        string
	buildSource = "unknown"

	configFlag    = false
	debuggingFlag = false

	putCmd = flaggy.NewSubcommand("put")
	getCmd = flaggy.NewSubcommand("get")
	lsCmd  = flaggy.NewSubcommand("ls")
	gcCmd  = flaggy.NewSubcommand("gc")
	serveCmd = flaggy.NewSubcommand("serve")

	getID    string
	gcAge    string
	lsLong   bool
	lsSI     bool
)

func main() {
	updateBuildInfo()

	info := fmt.Sprintf(
		"%s\nDate: %s\nBuildSource: %s\nCommit: %s\nOS: %s\nArch: %s",
		version, date, buildSource, commit, runtime.GOOS, runtime.GOARCH,
	)

	flaggy.SetName("blobstore")
	flaggy.SetDescription("A content-addressed blob store backed by a SQL database")
	flaggy.DefaultParser.AdditionalHelpPrepend = "https://github.com/christophe-duc/blobstore"

	flaggy.Bool(&configFlag, "c", "config", "Print the current default config")
	flaggy.Bool(&debuggingFlag, "d", "debug", "a boolean")
	flaggy.SetVersion(info)

	putCmd.Description = "Read a blob from stdin, store it, and print its digest id"
	flaggy.AttachSubcommand(putCmd, 1)

	getCmd.Description = "Write a stored blob to stdout"
	getCmd.AddPositionalValue(&getID, "id", 1, true, "the digest id to fetch")
	flaggy.AttachSubcommand(getCmd, 1)

	lsCmd.Description = "List every stored blob id"
	lsCmd.Bool(&lsLong, "l", "long", "also print length and last-modified time")
	lsCmd.Bool(&lsSI, "s", "si", "with -l, print length using decimal (SI) units instead of binary")
	flaggy.AttachSubcommand(lsCmd, 1)

	gcCmd.Description = "Delete rows older than the configured (or given) threshold age"
	gcCmd.String(&gcAge, "a", "age", "override the configured gc threshold age, e.g. 24h")
	flaggy.AttachSubcommand(gcCmd, 1)

	serveCmd.Description = "Run the periodic background GC scheduler until interrupted"
	flaggy.AttachSubcommand(serveCmd, 1)

	flaggy.Parse()

	if configFlag {
		var buf bytes.Buffer
		if err := yaml.NewEncoder(&buf).Encode(config.GetDefaultConfig()); err != nil {
			log.Fatal(err.Error())
		}
		fmt.Printf("%v\n", buf.String())
		os.Exit(0)
	}

	appConfig, err := config.NewAppConfig("blobstore", version, commit, date, buildSource, debuggingFlag)
	if err != nil {
		log.Fatal(err.Error())
	}

	theApp, err := app.NewApp(appConfig)
	if err == nil {
		err = runCommand(theApp)
	}
	if theApp != nil {
		theApp.Close()
	}

	if err != nil {
		newErr := errors.Wrap(err, 0)
		stackTrace := newErr.ErrorStack()
		if theApp != nil {
			theApp.Log.Error(stackTrace)
		}
		log.Fatalf("blobstore: an error occurred\n\n%s", stackTrace)
	}
}

func runCommand(theApp *app.App) error {
	switch {
	case putCmd.Used:
		return runPut(theApp)
	case getCmd.Used:
		return runGet(theApp)
	case lsCmd.Used:
		return runLs(theApp)
	case gcCmd.Used:
		return runGC(theApp)
	case serveCmd.Used:
		return runServe(theApp)
	default:
		flaggy.ShowHelpAndExit("no command given")
		return nil
	}
}

func runPut(theApp *app.App) error {
	rec, err := theApp.Store.Put(cliCtx(), os.Stdin)
	if err != nil {
		return err
	}
	fmt.Println(rec.Identifier().String())
	return nil
}

func runGet(theApp *app.App) error {
	rec, err := theApp.Store.GetIfPresent(cliCtx(), getID)
	if err != nil {
		return err
	}
	r, err := rec.Open()
	if err != nil {
		return err
	}
	defer r.Close()

	_, err = copyToStdout(r)
	return err
}

func runLs(theApp *app.App) error {
	ids, err := theApp.Store.ListIDs(cliCtx())
	if err != nil {
		return err
	}
	for _, id := range ids {
		if !lsLong {
			fmt.Println(id.String())
			continue
		}
		rec, err := theApp.Store.GetIfPresent(cliCtx(), id.String())
		if err != nil {
			fmt.Printf("%s\t?\t?\n", id.String())
			continue
		}
		formatBytes := blobutil.FormatBinaryBytes
		if lsSI {
			formatBytes = blobutil.FormatDecimalBytes
		}
		fmt.Printf("%s\t%s\t%s\n", id.String(), formatBytes(rec.Length()), time.UnixMilli(rec.LastModified()).Format(time.RFC3339))
	}
	return nil
}

func runGC(theApp *app.App) error {
	age := theApp.Config.UserConfig.GC.ThresholdAge
	if gcAge != "" {
		parsed, err := time.ParseDuration(gcAge)
		if err != nil {
			return fmt.Errorf("invalid --age %q: %w", gcAge, err)
		}
		age = parsed
	}

	deleted, err := theApp.Store.GCOlderThan(cliCtx(), time.Now().Add(-age))
	if err != nil {
		return err
	}
	fmt.Printf("deleted %d row(s)\n", deleted)
	return nil
}

func runServe(theApp *app.App) error {
	gc := theApp.Config.UserConfig.GC
	theApp.GC.Start(theApp.Store, gc.Interval, gc.ThresholdAge, theApp.Log)
	defer theApp.GC.Stop()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	return nil
}

func cliCtx() context.Context {
	return context.Background()
}

func copyToStdout(r io.Reader) (int64, error) {
	return io.Copy(os.Stdout, r)
}

func updateBuildInfo() {
	if version == defaultVersion {
		if buildInfo, ok := debug.ReadBuildInfo(); ok {
			revision, ok := lo.Find(buildInfo.Settings, func(setting debug.BuildSetting) bool {
				return setting.Key == "vcs.revision"
			})
			if ok {
				commit = revision.Value
				// if blobstore was built from source we'll show the version as
				// the abbreviated commit hash
				version = blobutil.SafeTruncate(revision.Value, 7)
			}

			vcsTime, ok := lo.Find(buildInfo.Settings, func(setting debug.BuildSetting) bool {
				return setting.Key == "vcs.time"
			})
			if ok {
				date = vcsTime.Value
			}
		}
	}
}
