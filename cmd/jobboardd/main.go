package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/matheus3301/jobboard/internal/daemon"
	"github.com/matheus3301/jobboard/internal/profile"
	"go.uber.org/fx"
)

func main() {
	profileFlag := flag.String("profile", "", "profile name (overrides config default)")
	offlineFlag := flag.Bool("offline", false, "never contact the remote store")
	flag.Parse()

	profileName := profile.Resolve(*profileFlag)
	if err := profile.ValidateName(profileName); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	app := fx.New(
		daemon.Module(daemon.Params{ProfileName: profileName, Offline: *offlineFlag}),
	)

	app.Run()
}
