// Command options prices European options and analyzes option strategies.
package main

import (
	"fmt"
	"os"

	"github.com/smq100/inish-optionanalysis-sub000/internal/cli"
	"github.com/smq100/inish-optionanalysis-sub000/internal/config"
	"github.com/smq100/inish-optionanalysis-sub000/internal/logging"
)

func main() {
	cfg, err := config.Load(cli.ConfigDir(os.Args[1:]))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLoggerWithConfig(cfg.Logging)
	app := cli.NewApp(cfg, logger)

	err = cli.NewRootCmd(app).Execute()
	if cerr := app.Close(); cerr != nil {
		logger.Warn().Err(cerr).Msg("Failed to close store")
	}
	if err != nil {
		os.Exit(1)
	}
}
