package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"

	"github.com/linusbett/MedTrack-Backend/internal/auth"
	"github.com/linusbett/MedTrack-Backend/internal/config"
	"github.com/linusbett/MedTrack-Backend/internal/handlers"
	"github.com/linusbett/MedTrack-Backend/internal/logger"
	"github.com/linusbett/MedTrack-Backend/internal/mail"
	"github.com/linusbett/MedTrack-Backend/internal/medication"
	"github.com/linusbett/MedTrack-Backend/internal/notify"
	"github.com/linusbett/MedTrack-Backend/internal/scheduler"
	"github.com/linusbett/MedTrack-Backend/internal/storage"
)

func main() {
	addr := flag.String("addr", ":8080", "address to listen on")

	// Storage flags
	storageType := flag.String("storage", "file", "storage backend to use: memory, file, mongo, or sqlite")
	mongoConnString := flag.String("mongo-conn", "mongodb://localhost:27017", "MongoDB connection string (used when storage=mongo)")
	mongoDatabase := flag.String("mongo-db", "medtrack", "MongoDB database name (used when storage=mongo)")
	sqlitePath := flag.String("sqlite-db", "medtrack.db", "SQLite database path (used when storage=sqlite)")

	// Scheduler flags
	tickInterval := flag.Duration("tick-interval", scheduler.DefaultInterval, "how often the reminder scheduler scans for due occurrences")
	tolerance := flag.Duration("tolerance", scheduler.DefaultTolerance, "due-window tolerance around each scheduled time")
	horizonDays := flag.Int("horizon-days", medication.DefaultHorizonDays, "how many days of occurrences to generate per medication")

	flag.Parse()

	if err := godotenv.Load(); err != nil {
		logger.Get().Info("No .env file found, using system environment variables")
	}
	logger.Init(config.GetEnv("LOG_LEVEL", "info"))
	log := logger.Get()

	tokenSecret := config.TokenSecret()
	if tokenSecret == "" {
		log.Fatal("TOKEN_SECRET is required")
	}
	hmacSecret := config.HMACSecret()
	if hmacSecret == "" {
		log.Fatal("HMAC_SECRET is required")
	}

	// Initialize storage based on type
	var store storage.Storage
	var err error

	switch *storageType {
	case "memory":
		log.Info("Using memory storage")
		store = storage.NewMemoryStorage()
	case "file":
		log.Info("Using file storage")
		store = storage.NewFileStorage("users.json", "medications.json", "dispatches.json")
	case "mongo":
		log.WithField("database", *mongoDatabase).Info("Using MongoDB storage")
		store, err = storage.NewMongoStorage(*mongoConnString, *mongoDatabase)
		if err != nil {
			log.WithError(err).Fatal("Failed to initialize MongoDB storage")
		}
	case "sqlite":
		log.WithField("path", *sqlitePath).Info("Using SQLite storage")
		store, err = storage.NewSQLiteStorage(*sqlitePath)
		if err != nil {
			log.WithError(err).Fatal("Failed to initialize SQLite storage")
		}
	default:
		log.Fatalf("Invalid storage type: %s. Valid options are: memory, file, mongo, sqlite", *storageType)
	}

	var dispatcher notify.Dispatcher
	if key := config.FCMServerKey(); key != "" {
		dispatcher = notify.NewFCMDispatcher(key)
	} else {
		log.Warn("FCM_SERVER_KEY not set, push notifications are logged only")
		dispatcher = notify.NewLogDispatcher(log)
	}

	var mailer mail.Mailer
	if key, from, name := config.SendGridConfig(); key != "" {
		mailer = mail.NewSendGridMailer(key, from, name)
	} else {
		mailer = &mail.LogMailer{Log: log}
	}

	tokens := auth.NewTokenManager(tokenSecret, 8*time.Hour)

	r := mux.NewRouter()
	h := handlers.New(store, tokens, mailer, log, hmacSecret, *horizonDays)
	h.Routes(r)

	// The scheduler is an explicit long-lived task owned here, not a side
	// effect of package initialization.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sched := scheduler.New(store, store, dispatcher, log,
		scheduler.WithInterval(*tickInterval),
		scheduler.WithTolerance(*tolerance),
	)
	go sched.Run(ctx)

	server := &http.Server{Addr: *addr, Handler: r}
	go func() {
		log.WithField("addr", *addr).Info("MedTrack backend listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("Could not start HTTP server")
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("HTTP server shutdown failed")
	}
	if err := store.Close(shutdownCtx); err != nil {
		log.WithError(err).Error("Storage close failed")
	}
}
