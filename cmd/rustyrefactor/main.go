package main

import (
	"fmt"
	"runtime"
)

// Set at link time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	Execute()
}

func versionString() string {
	return fmt.Sprintf("rustyrefactor %s (%s, %s, %s)", version, commit[:min(7, len(commit))], date, runtime.Version())
}
