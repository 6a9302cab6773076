package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"

	"github.com/careops/reportd/internal/api"
	"github.com/careops/reportd/internal/auth"
	"github.com/careops/reportd/internal/config"
	"github.com/careops/reportd/internal/database"
	"github.com/careops/reportd/internal/delivery"
	"github.com/careops/reportd/internal/logging"
	"github.com/careops/reportd/internal/notify"
	"github.com/careops/reportd/internal/report"
	"github.com/careops/reportd/internal/scheduler"
	"github.com/careops/reportd/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("reportd: " + err.Error() + "\n")
		os.Exit(1)
	}

	log := logging.New(cfg.Log.Level, cfg.Log.Console)

	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer database.Close(db)

	generator, err := report.NewGenerator(cfg.Scheduler.TemplateDir)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load report templates")
	}

	transport := delivery.NewSMTPTransport(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.From, cfg.SMTP.Password)
	dispatcher := delivery.NewDispatcher(transport, log)

	schedules := store.NewScheduleStore(db)
	recorder := store.NewExecutionRecorder(db)

	opts := []scheduler.Option{scheduler.WithStaleAfter(cfg.Scheduler.StaleAfter)}
	if cfg.Slack.Token != "" {
		opts = append(opts, scheduler.WithNotifier(notify.NewSlackNotifier(cfg.Slack.Token, cfg.Slack.Channel, log)))
	}
	engine := scheduler.NewEngine(schedules, recorder, generator, dispatcher, log, opts...)

	// The engine has no loop of its own; a single cron entry is the
	// external trigger, which also keeps ticks from overlapping across
	// processes as long as only one daemon runs.
	trigger := cron.New()
	if _, err := trigger.AddFunc(cfg.Scheduler.TickSpec, func() {
		if _, err := engine.Tick(); err != nil {
			log.Error().Err(err).Msg("tick failed")
		}
	}); err != nil {
		log.Fatal().Err(err).Str("spec", cfg.Scheduler.TickSpec).Msg("invalid tick spec")
	}
	trigger.Start()
	defer trigger.Stop()

	server := api.NewServer(schedules, recorder, engine, auth.New(cfg.Auth.JWTSecret, db), db, log)
	go func() {
		if err := server.Start(cfg.Server.Port); err != nil {
			log.Fatal().Err(err).Msg("api server exited")
		}
	}()
	log.Info().Int("port", cfg.Server.Port).Str("tick", cfg.Scheduler.TickSpec).Msg("reportd started")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info().Msg("shutting down")
}
