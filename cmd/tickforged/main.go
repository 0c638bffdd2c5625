// Command tickforged runs the coordinator process: it loads configuration,
// opens the write-ahead log, starts the symbol coordinator and the
// transport server, and blocks until SIGINT/SIGTERM. Grounded on the
// teacher's (saiputravu-Exchange) cmd/server/server.go entrypoint shape
// (signal.NotifyContext, construct engine + server, run, block on
// ctx.Done), generalized from "one fixed engine" to "coordinator owning
// many per-symbol engines."
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tickforge/internal/config"
	"tickforge/internal/coordinator"
	"tickforge/internal/events"
	"tickforge/internal/queue"
	"tickforge/internal/transport"
	"tickforge/internal/wal"

	"github.com/rs/zerolog"
	tomb "gopkg.in/tomb.v2"
)

func main() {
	cfgPath := flag.String("config", "configs/tickforge.yaml", "path to configuration file")
	tickIntervalMS := flag.Int64("tick-interval-ms", 1, "logical clock period driving each symbol's tick loop")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", *cfgPath).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}
	if lvl, perr := zerolog.ParseLevel(cfg.Logging.Level); perr == nil {
		log = log.Level(lvl)
	}

	walWriter, err := wal.Open(cfg.WAL.Dir, cfg.WAL.MaxBuffered, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open WAL")
	}
	defer walWriter.Close()

	outbound := queue.NewMPSC[events.Event](cfg.Queues.OutboundCapacity)
	coord := coordinator.New(cfg, outbound, walWriter, time.Duration(*tickIntervalMS)*time.Millisecond, log)
	srv := transport.New(cfg.Transport.Address, cfg.Transport.Port, coord, outbound, cfg.Transport.NWorkers, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	t, _ := tomb.WithContext(ctx)
	t.Go(func() error { return coord.Run(t) })
	t.Go(func() error { return srv.Run(t) })

	log.Info().Str("address", cfg.Transport.Address).Int("port", cfg.Transport.Port).Msg("tickforged started")

	<-ctx.Done()
	t.Kill(nil)
	if err := t.Wait(); err != nil {
		log.Error().Err(err).Msg("shutdown did not complete cleanly")
	}
}
