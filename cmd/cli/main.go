package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/dmitrijs2005/iptdesk/internal/buildinfo"
	"github.com/dmitrijs2005/iptdesk/internal/cli"
	"github.com/dmitrijs2005/iptdesk/internal/config"
	"github.com/dmitrijs2005/iptdesk/internal/document"
	"github.com/dmitrijs2005/iptdesk/internal/logging"
)

func main() {

	buildinfo.PrintBuildData(os.Stdout)

	if err := run(context.Background(), os.Args[1:]); err != nil {
		log.Fatalf("%v", err)
	}
}

func run(ctx context.Context, args []string) error {
	cfg, err := config.LoadConfig(args)
	if err != nil {
		return err
	}
	logger := logging.NewTextLogger(os.Stderr, cfg.LogLevel)

	app, err := cli.NewApp(ctx, cfg, logger)
	if err != nil {
		if errors.Is(err, document.ErrMalformedState) {
			return fmt.Errorf("stored data cannot be read, refusing to start: %w", err)
		}
		return err
	}
	defer app.Close()

	return app.Run(ctx, "/")
}
