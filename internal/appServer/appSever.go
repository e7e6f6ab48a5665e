package appServer

import (
	"context"
	"crypto/tls"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bookstack-dev/library-reservations/config"
	"github.com/bookstack-dev/library-reservations/internal/database/memory"
	repository "github.com/bookstack-dev/library-reservations/internal/database/postgres"
	"github.com/bookstack-dev/library-reservations/internal/monitor"
	"github.com/bookstack-dev/library-reservations/internal/notifier"
	"github.com/bookstack-dev/library-reservations/internal/processor"
	"github.com/bookstack-dev/library-reservations/internal/service"
	"github.com/bookstack-dev/library-reservations/internal/transport"
	"github.com/bookstack-dev/library-reservations/internal/waitlist"

	"github.com/bookstack-dev/library-reservations/pkg/email"
	"github.com/bookstack-dev/library-reservations/pkg/postgres"
	"github.com/bookstack-dev/library-reservations/pkg/sms"
	"github.com/bookstack-dev/library-reservations/pkg/telegram"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type Server struct {
	httpServer *http.Server
}

func (s *Server) Run(cfg *config.Config, handler http.Handler) error {
	s.httpServer = &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           handler,
		MaxHeaderBytes:    1 << 20,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		ReadHeaderTimeout: 3 * time.Second,
		TLSConfig:         &tls.Config{MinVersion: tls.VersionTLS12},
		ErrorLog:          log.New(os.Stderr, "SERVER ERROR: ", log.LstdFlags),
	}
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func NewServer(cfg *config.Config) {

	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetOutput(os.Stdout)
	logrus.SetLevel(logrus.InfoLevel)

	// Initialize repositories: postgres when configured, in-memory otherwise
	var (
		catalogRepo repository.CatalogRepository
		userRepo    repository.UserRepository
		loanRepo    repository.LoanRepository
	)

	if cfg.Database.Enabled {
		db, err := postgres.NewPostgresDB(&cfg.Database)
		if err != nil {
			logrus.Fatalf("Failed to initialize database: %v", err)
		}
		defer db.Close()

		if err := postgres.RunMigrations(db); err != nil {
			logrus.Fatalf("Failed to run migrations: %v", err)
		}

		catalogRepo = repository.NewCatalogRepository(db)
		userRepo = repository.NewUserRepository(db)
		loanRepo = repository.NewLoanRepository(db)
	} else {
		logrus.Info("Database disabled, using in-memory stores")
		catalogRepo = memory.NewCatalogStore()
		userRepo = memory.NewUserStore()
		loanRepo = memory.NewLoanStore()
	}

	// Initialize notification dispatcher and delivery channels
	dispatcher := notifier.NewDispatcher(cfg.Notifier.Workers)

	if cfg.Email.Enabled {
		emailClient := email.NewClient(cfg.Email.Host, cfg.Email.Port, cfg.Email.Username, cfg.Email.Password, cfg.Email.From)
		dispatcher.RegisterChannel(notifier.ChannelEmail, notifier.EmailChannel{Sender: emailClient})
		logrus.Info("Email channel initialized")
	} else {
		logrus.Warn("Email disabled, email notifications will be dropped")
	}

	if cfg.SMS.Enabled {
		smsClient := sms.NewClient(cfg.SMS.GatewayURL, cfg.SMS.APIKey, cfg.SMS.Sender)
		dispatcher.RegisterChannel(notifier.ChannelSMS, notifier.SMSChannel{Sender: smsClient})
		logrus.Info("SMS channel initialized")
	}

	if cfg.Telegram.Enabled && cfg.Telegram.BotToken != "" {
		bot := telegram.NewBot(cfg.Telegram.BotToken)
		dispatcher.RegisterChannel(notifier.ChannelTelegram, notifier.TelegramChannel{Sender: bot})
		logrus.Info("Telegram bot initialized")
	}

	// Initialize services
	waitlistStore := waitlist.NewStore()

	reservationService := service.NewReservationService(catalogRepo, userRepo, waitlistStore, dispatcher,
		service.ReservationConfig{
			MaxActivePerUser: cfg.Reservation.MaxActivePerUser,
			HoldDuration:     cfg.Reservation.HoldDuration,
		})

	loanService := service.NewLoanService(loanRepo, catalogRepo, userRepo, reservationService,
		service.NewRenewalRules(), dispatcher,
		service.LoanConfig{LoanDuration: cfg.Loan.Duration})

	catalogService := service.NewCatalogService(catalogRepo)
	userService := service.NewUserService(userRepo)

	// Initialize request processor
	requestProcessor := processor.NewProcessor(reservationService, cfg.Processor.Workers, cfg.Processor.QueueSize)
	logrus.Info("Request processor started")

	// Initialize and start system monitor
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	systemMonitor := monitor.New(loanService, reservationService, catalogRepo, userRepo, dispatcher,
		monitor.Config{
			Interval:         cfg.Monitor.Interval,
			ReminderLeadDays: cfg.Monitor.ReminderLeadDays,
		})
	systemMonitor.Start(ctx)

	// Initialize handlers
	reservationHandler := transport.NewReservationHandler(requestProcessor, reservationService)
	catalogHandler := transport.NewCatalogHandler(catalogService, reservationService)
	userHandler := transport.NewUserHandler(userService)
	loanHandler := transport.NewLoanHandler(loanService)
	adminHandler := transport.NewAdminHandler(systemMonitor, requestProcessor, dispatcher)

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	srv := new(Server)
	go func() {
		router := transport.InitRoutes(reservationHandler, catalogHandler, userHandler, loanHandler, adminHandler)
		if err := srv.Run(cfg, router); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("error occured while running http server: %s", err.Error())
		}
	}()

	logrus.Print("App Started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
	<-quit

	logrus.Print("App Shutting Down")

	if err := srv.Shutdown(context.Background()); err != nil {
		logrus.Errorf("error occured on server shutting down: %s", err.Error())
	}

	// Stop background components, draining queued work first
	systemMonitor.Stop()
	requestProcessor.Shutdown()
	dispatcher.Shutdown()
}
