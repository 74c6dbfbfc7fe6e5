package main

import (
	"context"
	"log"
	"strings"

	"mailboard-backend/cmd/api"
	authdomain "mailboard-backend/internal/auth/domain"
	authRepo "mailboard-backend/internal/auth/repository"
	authUsecase "mailboard-backend/internal/auth/usecase"
	emaildomain "mailboard-backend/internal/email/domain"
	emailRepo "mailboard-backend/internal/email/repository"
	emailUsecase "mailboard-backend/internal/email/usecase"
	"mailboard-backend/internal/notification"
	"mailboard-backend/internal/provider"
	"mailboard-backend/internal/provider/gmail"
	"mailboard-backend/internal/provider/imap"
	"mailboard-backend/pkg/config"
	"mailboard-backend/pkg/database"
	"mailboard-backend/pkg/fcm"
	"mailboard-backend/pkg/sse"
)

func main() {
	cfg := config.Load()

	db, err := database.NewPostgresConnection()
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&authdomain.User{},
		&authdomain.RefreshToken{},
		&authdomain.FCMToken{},
		&emaildomain.Column{},
		&emaildomain.ColumnMapping{},
		&emaildomain.SyncLedger{},
		&emaildomain.EmailSummary{},
	); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	userRepo := authRepo.NewUserRepository(db)
	fcmTokenRepo := authRepo.NewFCMTokenRepository(db)
	columnRepo := emailRepo.NewColumnRepository(db)
	mappingRepo := emailRepo.NewMappingRepository(db)
	ledgerRepo := emailRepo.NewLedgerRepository(db)
	summaryRepo := emailRepo.NewSummaryRepository(db)

	sseManager := sse.NewManager()
	go sseManager.Run()

	registry := provider.NewRegistry()
	registry.Register(provider.KindGoogle, gmail.NewService(cfg.GoogleClientID, cfg.GoogleClientSecret))
	registry.Register(provider.KindIMAP, imap.NewService())

	emailService := emailUsecase.NewService(userRepo, columnRepo, mappingRepo, ledgerRepo, registry, cfg)

	authUsecaseInstance := authUsecase.NewAuthUsecase(userRepo, fcmTokenRepo, cfg, imap.Verify)
	authUsecaseInstance.SetPostLoginHook(emailService.SyncAllEmailsForUser)

	if cfg.GoogleProjectID != "" {
		// Accept either the short topic name or the full resource name.
		topicName := cfg.GooglePubSubTopic
		if parts := strings.Split(topicName, "/"); len(parts) > 1 {
			topicName = parts[len(parts)-1]
		}
		if topicName == "" {
			topicName = "gmail-updates"
		}

		var fcmClient *fcm.Client
		if cfg.FirebaseCredentials != "" {
			fcmClient, err = fcm.NewClient(cfg.FirebaseCredentials)
			if err != nil {
				log.Printf("[WARN] Failed to initialize FCM client, push notifications disabled: %v", err)
				fcmClient = nil
			}
		}

		notifService, err := notification.NewService(cfg.GoogleProjectID, topicName, sseManager, userRepo, fcmTokenRepo, fcmClient, emailService, cfg.GoogleCredentials)
		if err != nil {
			log.Printf("[ERROR] Failed to initialize notification service: %v", err)
		} else {
			go notifService.Start(context.Background())
		}
	} else {
		log.Printf("[WARN] GOOGLE_PROJECT_ID not configured, push notification service disabled")
	}

	handler := api.NewHandler(authUsecaseInstance, emailService, sseManager, cfg, summaryRepo)

	// Resume onboarding syncs a restart interrupted.
	if users, err := userRepo.FindAllSyncable(); err != nil {
		log.Printf("[WARN] Could not list users for sync resume: %v", err)
	} else {
		for _, u := range users {
			if !u.EmailsSynced {
				emailService.SyncAllEmailsForUser(u.ID)
			}
		}
	}

	log.Printf("Server starting on port %s", cfg.Port)
	if err := handler.Start(":" + cfg.Port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
