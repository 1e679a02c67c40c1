package services

import (
	"fmt"
	"log"

	"github.com/pyncerrc/pyncer-snyppet-access-recovery/internal/utils"
)

type SMSService interface {
	SendRecoveryCode(phone, code string) error
}

type smsService struct {
	client *utils.Client
}

func NewSMSService(client *utils.Client) SMSService {
	return &smsService{client: client}
}

func (s *smsService) SendRecoveryCode(phone, code string) error {
	text := fmt.Sprintf("Код восстановления: %s", code)
	resp, err := s.client.SendSMS(phone, text)
	if err != nil {
		return fmt.Errorf("mobizon error: %w", err)
	}
	log.Printf("[sms][recovery][send] ok: phone=%s messageID=%s", phone, resp.Data.MessageID)
	return nil
}
