package main

import (
	"github.com/tincan-labs/tincan/cmd"
	"github.com/tincan-labs/tincan/internal/logging"
)

func main() {
	// Initialize logging
	logging.Init()
	cmd.Execute()
}
