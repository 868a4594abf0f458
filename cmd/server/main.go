package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/rankpush/internal/api"
	"github.com/ignite/rankpush/internal/config"
	"github.com/ignite/rankpush/internal/domain"
	"github.com/ignite/rankpush/internal/monitor"
	"github.com/ignite/rankpush/internal/pessimization"
	"github.com/ignite/rankpush/internal/pkg/distlock"
	"github.com/ignite/rankpush/internal/repository/postgres"
	"github.com/ignite/rankpush/internal/risk"
	"github.com/ignite/rankpush/internal/service/campaign"
	"github.com/ignite/rankpush/internal/ticket"

	_ "github.com/lib/pq" // PostgreSQL driver
)

func main() {
	log.Println("[Server] Starting rankpush engine")

	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	if cfg.Database.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	}
	if cfg.Database.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	}
	pingCtx, pingCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := db.PingContext(pingCtx); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}
	pingCancel()
	defer db.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	// Repositories
	campaignRepo := postgres.NewCampaignRepo(db)
	positionRepo := postgres.NewPositionRepo(db)
	eventRepo := postgres.NewEventRepo(db)
	learningRepo := postgres.NewLearningRepo(db)
	appDirectory := postgres.NewAppDirectory(db)

	// External ranking service adapter with its process-wide ceilings.
	limiter := ticket.NewRateLimiter(redisClient, cfg.Ticket.RequestsPerMinute, cfg.Ticket.RequestsPerDay)
	tickets := ticket.NewClient(cfg.Ticket.BaseURL, cfg.Ticket.APIKey, limiter,
		cfg.Ticket.PollInterval(), cfg.Ticket.MaxAttempts())

	// Services
	campaignSvc := campaign.NewService(campaignRepo)
	assessor := risk.NewAssessor(learningRepo, cfg.Risk.Window())
	recorder := risk.NewRecorder(learningRepo, appDirectory, positionRepo, eventRepo)
	campaignSvc.SetFeedback(recorder)

	// Background loops
	sweepLock := distlock.New(redisClient, "rankpush:position-sweep", 30*time.Minute)
	positionMonitor := monitor.New(positionRepo, tickets, sweepLock,
		cfg.Monitor.SweepInterval(), cfg.Monitor.WorkerCount(), cfg.Monitor.Country())

	minor, moderate, severe := cfg.Pessimization.Thresholds()
	detector := pessimization.New(positionRepo, eventRepo, campaignSvc,
		pessimization.Thresholds{Minor: float64(minor), Moderate: float64(moderate), Severe: float64(severe)},
		cfg.Pessimization.Window(), cfg.Pessimization.ScanInterval())

	if cfg.Monitor.Enabled {
		positionMonitor.Start()
		defer positionMonitor.Stop()
	} else {
		log.Println("[Server] Position monitor disabled by config")
	}
	if cfg.Pessimization.Enabled {
		detector.Start()
		defer detector.Stop()
	} else {
		log.Println("[Server] Pessimization detector disabled by config")
	}

	router := api.SetupRoutes(api.Handlers{
		Campaigns: api.NewCampaignHandler(campaignSvc, &campaignRiskReader{assessor: assessor, apps: appDirectory}),
		Apps:      api.NewAppHandler(positionMonitor, positionRepo, detector, eventRepo, cfg.Monitor.Country()),
		Risk:      api.NewRiskHandler(assessor),
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.GetHost(), cfg.Server.GetPort())
	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("[Server] Listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	<-done
	log.Println("[Server] Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("[Server] Shutdown error: %v", err)
	}
	log.Println("[Server] Stopped")
}

// campaignRiskReader scores an existing campaign by combining its own
// parameters with the app directory's niche and difficulty metadata.
type campaignRiskReader struct {
	assessor *risk.Assessor
	apps     risk.AppDirectory
}

func (r *campaignRiskReader) AssessCampaign(ctx context.Context, c *domain.Campaign) (*domain.RiskAssessment, error) {
	info, err := r.apps.AppInfo(ctx, c.AppID)
	if err != nil {
		return nil, err
	}
	daily := 0.0
	if c.DurationDays > 0 {
		daily = float64(c.TotalInstalls) / float64(c.DurationDays)
	}
	return r.assessor.Assess(ctx, risk.Candidate{
		Niche:                info.Niche,
		Strategy:             c.Strategy,
		AvgKeywordDifficulty: info.AvgKeywordDifficulty,
		DailyInstalls:        daily,
	})
}
