package main

import (
	"context"
	"os"

	"github.com/bashhack/lockdir/internal/config"
)

// Version information - injected at build time
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	versionInfo := config.VersionInfo{
		Version: version,
		Commit:  commit,
		Date:    date,
	}

	app := NewDefaultApp(versionInfo)

	// Signals are not trapped here: run forwards them to the guarded command
	// and reap stops between locks.
	app.Run(context.Background(), os.Args[1:])
}
