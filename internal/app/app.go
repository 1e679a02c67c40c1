package app

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/pyncerrc/pyncer-snyppet-access-recovery/internal/config"
	"github.com/pyncerrc/pyncer-snyppet-access-recovery/internal/handlers"
	"github.com/pyncerrc/pyncer-snyppet-access-recovery/internal/models"
	"github.com/pyncerrc/pyncer-snyppet-access-recovery/internal/repositories"
	"github.com/pyncerrc/pyncer-snyppet-access-recovery/internal/routes"
	"github.com/pyncerrc/pyncer-snyppet-access-recovery/internal/services"
	"github.com/pyncerrc/pyncer-snyppet-access-recovery/internal/utils"
	"github.com/pyncerrc/pyncer-snyppet-access-recovery/internal/validation"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/pyncerrc/pyncer-snyppet-access-recovery/docs"
)

func Run() {
	cfg := config.LoadConfig()

	loginMethod, err := models.ParseLoginMethod(cfg.Recovery.LoginMethod)
	if err != nil {
		log.Fatal("Некорректный login_method в конфиге: ", err)
	}

	// === DB ===
	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		log.Fatal("Ошибка подключения к БД: ", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("Ошибка закрытия БД: %v", err)
		}
	}()

	// === Repos ===
	userRepo := repositories.NewUserRepository(db)
	recoveryRepo := repositories.NewRecoveryRepository(db)

	// === Services ===
	authService := services.NewAuthService(validation.PasswordRule{
		MinLength: cfg.Password.MinLength,
		MaxLength: cfg.Password.MaxLength,
	})
	emailService := services.NewEmailService(
		cfg.Email.SMTPHost,
		cfg.Email.SMTPPort,
		cfg.Email.SMTPUser,
		cfg.Email.SMTPPassword,
		cfg.Email.FromEmail,
	)

	// SMS провайдер (Mobizon) из конфига
	mobizonClient := utils.NewClientWithOptions(
		cfg.Mobizon.APIKey,
		cfg.Mobizon.SenderID,
		cfg.Mobizon.DryRun,
	)
	smsService := services.NewSMSService(mobizonClient)

	notifier := services.NewChannelNotifier(emailService, smsService)

	recoveryService := services.NewRecoveryService(
		services.RecoveryConfig{
			LoginMethod:             loginMethod,
			CodeLength:              cfg.Recovery.CodeLength,
			TokenExpiration:         time.Duration(cfg.Recovery.TokenExpirationSeconds) * time.Second,
			MaxAttempts:             cfg.Recovery.MaxAttempts,
			ValidateLoginNotFound:   cfg.Recovery.ValidateLoginNotFound,
			ValidateContactMismatch: *cfg.Recovery.ValidateContactMismatch,
			ConfirmNewPassword:      cfg.Password.ConfirmNew,
		},
		userRepo,
		recoveryRepo,
		notifier,
		authService,
		validation.PhoneRule{
			AllowNANP:       *cfg.Phone.AllowNANP,
			AllowE164:       *cfg.Phone.AllowE164,
			AllowFormatting: *cfg.Phone.AllowFormatting,
		},
	)

	// === Handlers ===
	recoveryHandler := handlers.NewRecoveryHandler(recoveryService)

	// === Gin ===
	router := gin.Default()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	// Swagger
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	routes.SetupRoutes(router, recoveryHandler)

	// === Run ===
	listenAddr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Printf("Сервер запущен на %s", listenAddr)
	if err := router.Run(listenAddr); err != nil {
		log.Fatal("Ошибка запуска сервера: ", err)
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
