// Command precinctdata loads Census, voter file and election result sources
// into the precinct store and writes GeoUnit summaries.
package main

import (
	"os"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load(".env.local")

	if err := NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
