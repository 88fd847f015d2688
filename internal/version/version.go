// Package version carries build metadata set with -ldflags.
package version

import "fmt"

var (
	AppName   = "stash-bot"
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func String() string {
	return fmt.Sprintf("%s %s (commit %s, built %s)", AppName, Version, Commit, BuildDate)
}
