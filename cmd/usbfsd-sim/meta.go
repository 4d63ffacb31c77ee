package main

import (
	"fmt"
	"runtime/debug"
)

var (
	Version = ""
	Commit  = ""
)

var descriptionTemplate = `
CH643 USBFS device simulator
  Version: %s (%s)
`

func Description() string {
	return fmt.Sprintf(descriptionTemplate, Version, Commit)
}

func init() {
	if info, ok := debug.ReadBuildInfo(); ok {
		if Version == "" {
			Version = info.Main.Version
		}
		for _, setting := range info.Settings {
			if setting.Key == "vcs.revision" && Commit == "" {
				Commit = setting.Value[:min(7, len(setting.Value))]
			}
		}
	}
	if Version == "" || Version == "(devel)" {
		Version = "dev"
	}
	if Commit == "" {
		Commit = "unknown"
	}
}
