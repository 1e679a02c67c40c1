package services

import (
	"log"

	"github.com/pyncerrc/pyncer-snyppet-access-recovery/internal/models"
)

// RecoveryNotifier — доставка кода пользователю по внешнему каналу.
// Ядро потока зависит от этой способности, но не реализует её само:
// интерфейс подменяется фейком в тестах.
type RecoveryNotifier interface {
	// SendRecoveryCode доставляет код по каждому переданному каналу.
	// email/phone уже нормализованы и сверены с данными пользователя;
	// nil означает, что канал не используется. Возвращает false, если
	// хоть одна затребованная доставка не удалась.
	SendRecoveryCode(user *models.User, code string, email, phone *string) bool
}

type channelNotifier struct {
	emails EmailService
	sms    SMSService
}

func NewChannelNotifier(emails EmailService, sms SMSService) RecoveryNotifier {
	return &channelNotifier{emails: emails, sms: sms}
}

func (n *channelNotifier) SendRecoveryCode(user *models.User, code string, email, phone *string) bool {
	ok := true

	if email != nil {
		if n.emails == nil {
			log.Printf("[recovery][notify] email channel requested but not configured: user_id=%d", user.ID)
			ok = false
		} else if err := n.emails.SendRecoveryCode(*email, code); err != nil {
			log.Printf("[recovery][notify] email send failed: user_id=%d err=%v", user.ID, err)
			ok = false
		}
	}

	if phone != nil {
		if n.sms == nil {
			log.Printf("[recovery][notify] sms channel requested but not configured: user_id=%d", user.ID)
			ok = false
		} else if err := n.sms.SendRecoveryCode(*phone, code); err != nil {
			log.Printf("[recovery][notify] sms send failed: user_id=%d err=%v", user.ID, err)
			ok = false
		}
	}

	return ok
}
