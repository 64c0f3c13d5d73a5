package main

import (
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/dgnsrekt/seitai/internal/config"
	"github.com/dgnsrekt/seitai/internal/responder"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Answer speech requests over NATS",
	Long: paragraph(fmt.Sprintf("\n%s speech requests on a NATS subject and reply with WAV audio. Run several instances to share the load through a queue group.", keyword("Serve"))),
	Example: paragraph(`seitai serve
nats request seitai.speak '{"text":"hello","speaker":"3"}'`),
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		ctx := cmd.Context()
		if err := a.start(ctx); err != nil {
			return err
		}

		if version, err := a.engine.HealthCheck(ctx); err != nil {
			log.Warn("VOICEVOX engine is unreachable", "url", cfg.Engine.URL, "err", err)
		} else {
			log.Info("Connected to VOICEVOX engine", "url", cfg.Engine.URL, "version", version)
		}

		nc, err := nats.Connect(cfg.NATS.URL,
			nats.Name(config.AppName),
			nats.MaxReconnects(-1),
			nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
				log.Warn("Disconnected from NATS", "err", err)
			}),
			nats.ReconnectHandler(func(nc *nats.Conn) {
				log.Info("Reconnected to NATS", "url", nc.ConnectedUrl())
			}),
		)
		if err != nil {
			return fmt.Errorf("unable to connect to NATS: %w", err)
		}
		defer nc.Close()

		r := responder.New(nc, a.repo,
			responder.WithSubject(cfg.NATS.Subject),
			responder.WithQueue(cfg.NATS.Queue),
			responder.WithTimeout(cfg.NATS.Timeout),
			responder.WithConcurrency(cfg.NATS.Concurrency),
			responder.WithDefaults(cfg.Voice.Speaker, cfg.Voice.Speed32()),
			responder.WithLogger(log.Default().WithPrefix("responder")),
		)
		if err := r.Run(ctx); err != nil {
			return err
		}

		s := a.repo.Stats()
		log.Info("Cache", "entries", s.Entries, "hits", s.Hits, "misses", s.Misses, "generated", s.Generated)
		return nil
	},
}
