package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pyncerrc/pyncer-snyppet-access-recovery/internal/services"
)

// Формат expiration_date_time в ответах.
const dateTimeFormat = "2006-01-02 15:04:05"

type RecoveryHandler struct {
	recovery services.RecoveryService
}

func NewRecoveryHandler(recovery services.RecoveryService) *RecoveryHandler {
	return &RecoveryHandler{recovery: recovery}
}

// @Summary      Запрос восстановления пароля
// @Description  Находит пользователя по настроенному логин-методу, создаёт запись восстановления и отправляет код по email/SMS
// @Tags         Recovery
// @Accept       json
// @Produce      json
// @Param        request  body      services.RecoveryRequest  true  "Логин-идентификатор и контактные данные"
// @Success      201      {object}  map[string]string
// @Failure      422      {object}  map[string]interface{}
// @Failure      500      {object}  map[string]string
// @Router       /recovery [post]
func (h *RecoveryHandler) Request(c *gin.Context) {
	var req services.RecoveryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Printf("[recovery][request] bad request: bind json failed: err=%v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	issued, fieldErrs, err := h.recovery.Request(&req)
	if err != nil {
		log.Printf("[recovery][request] failed: err=%v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "recovery request failed"})
		return
	}
	if len(fieldErrs) > 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": fieldErrs})
		return
	}

	// Настоящая и "поддельная" выдача неотличимы по форме ответа.
	c.JSON(http.StatusCreated, gin.H{
		"token":                issued.Token,
		"expiration_date_time": issued.ExpirationTime.Format(dateTimeFormat),
	})
}

// @Summary      Подтверждение восстановления пароля
// @Description  Проверяет token и code, применяет новый пароль
// @Tags         Recovery
// @Accept       json
// @Produce      json
// @Param        token    path      string                    true  "Токен записи восстановления"
// @Param        request  body      services.RecoveryConfirm  true  "Код и новый пароль"
// @Success      204      "No Content"
// @Failure      401      {object}  map[string]interface{}
// @Failure      404      "Not Found"
// @Failure      422      {object}  map[string]interface{}
// @Failure      500      {object}  map[string]string
// @Router       /recovery/{token} [patch]
func (h *RecoveryHandler) Confirm(c *gin.Context) {
	token := c.Param("token")

	var req services.RecoveryConfirm
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Printf("[recovery][confirm] bad request: bind json failed: err=%v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	fieldErrs, err := h.recovery.Confirm(token, &req)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrRecoveryNotFound):
			c.Status(http.StatusNotFound)
		case errors.Is(err, services.ErrRecoveryExpired):
			c.JSON(http.StatusUnauthorized, gin.H{"errors": gin.H{"general": "expired"}})
		default:
			log.Printf("[recovery][confirm] failed: err=%v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "recovery confirm failed"})
		}
		return
	}
	if len(fieldErrs) > 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": fieldErrs})
		return
	}

	c.Status(http.StatusNoContent)
}
