package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/soundrent-backoffice/internal/calendar"
	"github.com/iliyamo/soundrent-backoffice/internal/config"
	"github.com/iliyamo/soundrent-backoffice/internal/database"
	"github.com/iliyamo/soundrent-backoffice/internal/events"
	"github.com/iliyamo/soundrent-backoffice/internal/handler"
	"github.com/iliyamo/soundrent-backoffice/internal/middleware"
	"github.com/iliyamo/soundrent-backoffice/internal/pricing"
	"github.com/iliyamo/soundrent-backoffice/internal/queue"
	"github.com/iliyamo/soundrent-backoffice/internal/receipt"
	"github.com/iliyamo/soundrent-backoffice/internal/reference"
	"github.com/iliyamo/soundrent-backoffice/internal/repository"
	"github.com/iliyamo/soundrent-backoffice/internal/router"
	"github.com/iliyamo/soundrent-backoffice/internal/service"
)

func main() {
	migrateOnly := flag.Bool("migrate-only", false, "apply schema migrations and exit")
	flag.Parse()

	if err := config.LoadDotEnv(); err != nil {
		log.Fatalf("load .env: %v", err)
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := config.NewLogger(cfg.Env)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger, *migrateOnly); err != nil {
		logger.Error("server stopped", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *zap.Logger, migrateOnly bool) error {
	dbOpts := database.Options{User: cfg.DBUser, Pass: cfg.DBPass, Host: cfg.DBHost, Port: cfg.DBPort, Name: cfg.DBName}
	if cfg.DBMigrate || migrateOnly {
		if err := database.Migrate(dbOpts, logger); err != nil {
			return err
		}
		if migrateOnly {
			return nil
		}
	}
	db, err := database.Open(dbOpts)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb := config.NewRedisClient(logger)
	if rdb != nil {
		defer rdb.Close()
	}
	cacheCfg := config.LoadCacheConfig()
	draftCfg := config.LoadDraftConfig()
	calCfg := config.LoadCalendarConfig()
	receiptCfg := config.LoadReceiptConfig()

	reservations := repository.NewReservationRepo(db)
	clients := repository.NewClientRepo(db)
	packs := repository.NewPackRepo(db)
	payments := repository.NewPaymentRepo(db)
	deliveries := repository.NewDeliveryRepo(db)
	counters := repository.NewCounterRepo(db)
	calendars := repository.NewCalendarRepo(db)
	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)

	var seq reference.Sequence = counters
	if rdb != nil {
		seq = reference.NewRedisSequence(rdb, counters, "refseq")
	}
	refs := reference.NewAllocator(seq, logger.Named("reference"))

	bus := events.NewBus(logger.Named("events"))
	// first subscriber: lists are evicted before SSE clients hear of a change
	if rdb != nil {
		unsubscribe := queue.SubscribeInvalidation(bus, func(ctx context.Context) error {
			return middleware.InvalidateCache(ctx, rdb, cacheCfg.Prefix)
		}, logger.Named("cache"))
		defer unsubscribe()
	}
	activity := queue.NewActivityHandler(cfg.ActivityLog, logger.Named("activity"))

	g, gctx := errgroup.WithContext(ctx)
	if cfg.AMQPURL != "" {
		pub := queue.NewPublisher(cfg.AMQPURL, cfg.EventQueue, logger.Named("amqp"))
		defer pub.Close()
		stopForward := pub.Forward(gctx, bus, 256)
		defer stopForward()
		consumer := queue.NewConsumer(cfg.AMQPURL, cfg.EventQueue, activity, logger.Named("amqp"))
		g.Go(func() error { return consumer.Run(gctx) })
	} else {
		logger.Info("RABBITMQ_URL not set, handling events in process")
		unsubscribe := bus.Subscribe(activity.OnEvent)
		defer unsubscribe()
	}

	loc := pricing.Paris
	if calCfg.TimeZone != "" {
		if l, err := time.LoadLocation(calCfg.TimeZone); err == nil {
			loc = l
		}
	}
	oauth := calendar.NewOAuth(calCfg)
	cal := calendar.NewService(calendar.Options{
		Store:        calendars,
		OAuth:        oauth,
		Reservations: reservations,
		Packs:        packs,
		CalendarName: calCfg.CalendarName,
		Location:     loc,
		Timeout:      calCfg.RequestTimeout,
		Log:          logger.Named("calendar"),
	})

	svc := service.NewReservationService(service.Deps{
		Reservations: reservations,
		Clients:      clients,
		Packs:        packs,
		Payments:     payments,
		Deliveries:   deliveries,
		Refs:         refs,
		Calendar:     cal,
		Events:       bus,
		Log:          logger.Named("reservations"),
	})
	autosave := service.NewAutosaver(svc, draftCfg.Debounce, logger.Named("autosave"))

	receipts := &receipt.Service{
		Payments:     payments,
		Reservations: reservations,
		Clients:      clients,
		Packs:        packs,
		Printer:      receipt.NewChrome(receiptCfg.ChromePath, receiptCfg.RenderTimeout),
		Company:      receipt.Company{Name: receiptCfg.CompanyName, Address: receiptCfg.CompanyAddress, SIRET: receiptCfg.CompanySIRET},
		Log:          logger.Named("receipt"),
	}
	if receiptCfg.DriveEnabled() {
		drive, err := receipt.NewDrive(ctx, receiptCfg.DriveCredFile, receiptCfg.DriveFolderID)
		if err != nil {
			logger.Warn("drive archive disabled", zap.Error(err))
		} else {
			receipts.Archive = drive
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(logger.Named("http")))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{AllowOrigins: cfg.CORSOrigins}))

	h := router.Handlers{
		Health:       &handler.HealthHandler{DB: db, Redis: rdb},
		Auth:         handler.NewAuthHandler(cfg, users, tokens, logger.Named("auth")),
		Reservations: handler.NewReservationHandler(svc, autosave, logger),
		Drafts:       handler.NewDraftHandler(svc, autosave, logger),
		Payments:     handler.NewPaymentHandler(svc, payments, receipts, logger),
		Deliveries:   handler.NewDeliveryHandler(svc, deliveries, logger),
		Catalog:      handler.NewCatalogHandler(clients, packs, logger),
		Calendar:     handler.NewCalendarHandler(cal, oauth, cfg.JWTSecret, calCfg, logger),
		Events:       handler.NewEventsHandler(bus, logger),
	}
	router.RegisterRoutes(e, h)
	router.RegisterAuth(e, h.Auth, cfg.JWTSecret)
	router.RegisterBackOffice(e, h, cfg.JWTSecret,
		middleware.NewRedisCache(cacheCfg, rdb),
		middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, logger.Named("ratelimit")),
	)

	g.Go(func() error {
		janitor(gctx, draftCfg, svc, autosave, tokens, logger.Named("janitor"))
		return nil
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           e,
		ReadHeaderTimeout: 10 * time.Second,
	}
	g.Go(func() error {
		logger.Info("listening", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		// drafts typed just before shutdown are written before the store closes
		autosave.FlushAll()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// janitor purges stale drafts, idle autosave sessions and expired refresh
// tokens on a fixed interval.
func janitor(ctx context.Context, cfg config.DraftConfig, svc *service.ReservationService, a *service.Autosaver, tokens *repository.TokenRepo, log *zap.Logger) {
	if cfg.PurgeInterval <= 0 {
		return
	}
	t := time.NewTicker(cfg.PurgeInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		if n, err := svc.PurgeDrafts(ctx, cfg.TTL); err != nil {
			log.Warn("purge drafts failed", zap.Error(err))
		} else if n > 0 {
			log.Info("stale drafts purged", zap.Int64("count", n))
		}
		if n := a.Prune(time.Now().Add(-cfg.PurgeInterval)); n > 0 {
			log.Debug("autosave sessions pruned", zap.Int("count", n))
		}
		if _, err := tokens.PurgeExpired(ctx, time.Now()); err != nil {
			log.Warn("purge refresh tokens failed", zap.Error(err))
		}
	}
}
