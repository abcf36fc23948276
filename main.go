package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"
)

var (
	envFile = flag.String("env", "", "load environment variables from this file instead of .env")
	debug   = flag.Bool("debug", false, "development logging (overrides LOG_DEBUG)")
)

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")

	commander.Register(&serveCmd{}, "")
	commander.Register(&migrateCmd{}, "")
	commander.Register(&refreshPricesCmd{}, "")
	commander.Register(&createAdminCmd{}, "")

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}
