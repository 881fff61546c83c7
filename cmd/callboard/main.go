package main

import (
	"log/slog"
	"os"

	"github.com/alecthomas/kong"
	"github.com/alkime/callboard/internal/logger"
)

// CLI defines the callboard command structure.
type CLI struct {
	// Default TUI command (runs when no subcommand given)
	Dash DashCmd `cmd:"" default:"withargs" help:"Launch the call dashboard"`

	// Subcommands
	Upload  UploadCmd  `cmd:"" help:"Upload recordings for analysis"`
	Watch   WatchCmd   `cmd:"" help:"Log job status changes until every job settles"`
	Devices DevicesCmd `cmd:"" help:"List available playback devices"`
	Config  ConfigCmd  `cmd:"" help:"Manage configuration"`
}

func main() {
	// Text logger until a command loads its configuration
	logger.SetupTextLogger(os.Stderr, slog.LevelInfo)

	cli := &CLI{} //nolint:exhaustruct // Kong fills in command fields
	ctx := kong.Parse(cli,
		kong.Name("callboard"),
		kong.Description("Call analytics dashboard"),
		kong.UsageOnError(),
	)
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
	os.Exit(0)
}
