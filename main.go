package main

import (
	"fmt"
	"os"
	"time"

	"github.com/veridict/voiceguard-go/cmd"
	"github.com/veridict/voiceguard-go/internal/conf"
	"github.com/veridict/voiceguard-go/internal/logging"
	"github.com/veridict/voiceguard-go/internal/telemetry"
)

func main() {
	settings, err := conf.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading configuration: %v\n", err)
		os.Exit(1)
	}

	logging.Init(settings)
	defer logging.Close()

	if err := telemetry.Init(settings); err != nil {
		fmt.Fprintf(os.Stderr, "error initializing telemetry: %v\n", err)
		os.Exit(1)
	}
	defer telemetry.Flush(2 * time.Second)

	rootCmd := cmd.RootCommand(settings)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "command error: %v\n", err)
		os.Exit(1)
	}
}
