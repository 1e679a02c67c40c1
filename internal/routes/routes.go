package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/pyncerrc/pyncer-snyppet-access-recovery/internal/handlers"
)

func SetupRoutes(
	r *gin.Engine,
	recoveryHandler *handlers.RecoveryHandler,
) *gin.Engine {

	// ---- public: восстановление доступа работает без аутентификации
	r.POST("/recovery", recoveryHandler.Request)
	r.PATCH("/recovery/:token", recoveryHandler.Confirm)

	return r
}
