package main

import (
	"fmt"
	"os"

	"github.com/tphakala/linewalk/cmd"
	"github.com/tphakala/linewalk/internal/buildinfo"
	"github.com/tphakala/linewalk/internal/conf"
)

// version and buildDate are set with -ldflags at build time
var (
	version   = "dev"
	buildDate = ""
)

func main() {
	settings := &conf.Settings{}
	info := buildinfo.NewContext(version, buildDate)

	rootCmd := cmd.RootCommand(settings, info)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
