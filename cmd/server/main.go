package main // Entry point package

import (
	"context"
	"log"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/school-management/internal/auth"
	"github.com/iliyamo/school-management/internal/config"
	"github.com/iliyamo/school-management/internal/handler"
	"github.com/iliyamo/school-management/internal/httperr"
	"github.com/iliyamo/school-management/internal/payment"
	"github.com/iliyamo/school-management/internal/router"
	"github.com/iliyamo/school-management/internal/service"
	"github.com/iliyamo/school-management/internal/store"
)

func main() {
	cfg := config.Load() // Load environment config

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	db, err := store.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	defer db.Close(context.Background())

	// Revocation prefers Redis so every replica sees a logout; without Redis
	// a per-process registry still covers single-instance deployments.
	var revoker auth.Revoker
	if rdb := config.NewRedisClient(cfg); rdb != nil {
		revoker = auth.NewRedisRevoker(rdb)
		log.Println("token revocation backed by redis")
	} else {
		revoker = auth.NewMemoryRevoker()
		log.Println("token revocation backed by in-process registry")
	}

	events := service.NewEventPublisher(cfg.RabbitURL)
	gateway := payment.NewHTTPGateway(cfg.PaymentBaseURL, cfg.PaymentAPIKey, cfg.PaymentWebhookSecret)
	refresh := auth.NewRefreshStore(db)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.Logger())
	e.HTTPErrorHandler = httperr.Handler(cfg.Debug)

	router.Register(e, router.Handlers{
		Auth:      handler.NewAuthHandler(cfg, db, revoker, refresh),
		Users:     handler.NewUserHandler(db),
		Students:  handler.NewStudentHandler(db),
		Teachers:  handler.NewTeacherHandler(db),
		Academic:  handler.NewAcademicHandler(db),
		Grades:    handler.NewGradeHandler(db),
		Dormitory: handler.NewDormitoryHandler(db, events),
		Library:   handler.NewLibraryHandler(db),
		Finance:   handler.NewFinanceHandler(db, gateway, events),
	}, cfg.JWTSecret, revoker)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s, db=%s)", addr, cfg.Env, cfg.DatabaseType)

	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
