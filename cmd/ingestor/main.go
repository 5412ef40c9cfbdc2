// Command ingestor is the CLI front end over the Core API (spec §6):
// ingest, batch, jobs, and query subcommands, a thin collaborator that
// does no processing itself.
package main

import (
	"os"

	"github.com/DrunkOnJava/ingestor-service/cmd/ingestor/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
