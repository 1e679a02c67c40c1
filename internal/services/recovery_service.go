package services

import (
	"errors"
	"log"
	"strings"
	"time"

	"github.com/pyncerrc/pyncer-snyppet-access-recovery/internal/models"
	"github.com/pyncerrc/pyncer-snyppet-access-recovery/internal/repositories"
	"github.com/pyncerrc/pyncer-snyppet-access-recovery/internal/utils"
	"github.com/pyncerrc/pyncer-snyppet-access-recovery/internal/validation"
)

var (
	ErrRecoveryNotFound = errors.New("recovery record not found")
	ErrRecoveryExpired  = errors.New("recovery token expired")
)

// FieldErrors — коды причин по полям для ответа 422.
type FieldErrors map[string]string

// RecoveryConfig — явные настройки потока восстановления.
type RecoveryConfig struct {
	LoginMethod             models.LoginMethod
	CodeLength              int
	TokenExpiration         time.Duration
	MaxAttempts             int
	ValidateLoginNotFound   bool
	ValidateContactMismatch bool
	ConfirmNewPassword      bool
}

// RecoveryRequest — тело запроса фазы request. Какое из полей несёт
// логин-значение, определяет настроенный LoginMethod; email/phone как
// контактные данные читаются только при методе username.
type RecoveryRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
}

// RecoveryConfirm — тело запроса фазы confirm. Либо password, либо
// пара password1/password2 — в зависимости от ConfirmNewPassword.
type RecoveryConfirm struct {
	Code      string `json:"code"`
	Password  string `json:"password"`
	Password1 string `json:"password1"`
	Password2 string `json:"password2"`
}

type RecoveryIssued struct {
	Token          string
	ExpirationTime time.Time
}

type RecoveryService interface {
	Request(req *RecoveryRequest) (*RecoveryIssued, FieldErrors, error)
	Confirm(token string, req *RecoveryConfirm) (FieldErrors, error)
}

type recoveryService struct {
	cfg       RecoveryConfig
	users     repositories.UserRepository
	repo      repositories.RecoveryRepository
	notifier  RecoveryNotifier
	auth      AuthService
	emailRule validation.EmailRule
	phoneRule validation.PhoneRule
	now       func() time.Time
}

func NewRecoveryService(
	cfg RecoveryConfig,
	users repositories.UserRepository,
	repo repositories.RecoveryRepository,
	notifier RecoveryNotifier,
	auth AuthService,
	phoneRule validation.PhoneRule,
) RecoveryService {
	return &recoveryService{
		cfg:       cfg,
		users:     users,
		repo:      repo,
		notifier:  notifier,
		auth:      auth,
		phoneRule: phoneRule,
		now:       time.Now,
	}
}

func (r *RecoveryRequest) loginValue(method models.LoginMethod) string {
	switch method {
	case models.LoginMethodUsername:
		return strings.TrimSpace(r.Username)
	case models.LoginMethodEmail:
		return strings.TrimSpace(r.Email)
	case models.LoginMethodPhone:
		return strings.TrimSpace(r.Phone)
	}
	return ""
}

func (s *recoveryService) Request(req *RecoveryRequest) (*RecoveryIssued, FieldErrors, error) {
	method := s.cfg.LoginMethod
	loginValue := req.loginValue(method)

	errs := FieldErrors{}
	var user *models.User

	if loginValue == "" {
		errs[method.String()] = "required"
	} else {
		var err error
		user, err = s.users.GetByLogin(loginValue, method)
		if err != nil {
			return nil, nil, err
		}
		if user == nil && s.cfg.ValidateLoginNotFound {
			errs[method.String()] = "not_found"
		}
	}

	var email, phone *string
	switch method {
	case models.LoginMethodUsername:
		email = nullify(req.Email)
		phone = nullify(req.Phone)
	case models.LoginMethodEmail:
		if user != nil {
			email = user.Email
		}
	case models.LoginMethodPhone:
		if user != nil {
			phone = user.Phone
		}
	}

	email, phone, contactErrs := s.validateContact(user, email, phone)

	// Один канал связи: ключ contact переименовываем в имя метода логина,
	// чтобы клиент не показал ошибку на несуществующем поле формы.
	if method == models.LoginMethodEmail || method == models.LoginMethodPhone {
		if reason, ok := contactErrs["contact"]; ok {
			if _, exists := contactErrs[method.String()]; !exists {
				contactErrs[method.String()] = reason
			}
			delete(contactErrs, "contact")
		}
	}

	for field, reason := range contactErrs {
		errs[field] = reason
	}

	if !s.cfg.ValidateContactMismatch {
		if errs["phone"] == "mismatch" {
			delete(errs, "phone")
		}
		if errs["email"] == "mismatch" {
			delete(errs, "email")
		}
	}

	if len(errs) > 0 {
		return nil, errs, nil
	}

	expiration := s.now().Add(s.cfg.TokenExpiration)

	// Нет пользователя или каналов доставки — отвечаем как при успехе,
	// но ничего не сохраняем: по форме ответа нельзя отличить
	// несуществующий аккаунт от настоящей выдачи.
	if user == nil || (email == nil && phone == nil) {
		token, err := utils.NewRecoveryToken()
		if err != nil {
			return nil, nil, err
		}
		log.Printf("[recovery][request] faked issuance: method=%s", method)
		return &RecoveryIssued{Token: token, ExpirationTime: expiration}, nil, nil
	}

	token, err := utils.NewRecoveryToken()
	if err != nil {
		return nil, nil, err
	}
	code, err := utils.NewRecoveryCode(s.cfg.CodeLength)
	if err != nil {
		return nil, nil, err
	}

	rec := &models.RecoveryRecord{
		UserID:         user.ID,
		Token:          token,
		Code:           code,
		ExpirationTime: expiration,
	}
	if err := s.repo.Create(rec); err != nil {
		if errors.Is(err, repositories.ErrDuplicateToken) {
			return nil, FieldErrors{"general": "insert"}, nil
		}
		return nil, nil, err
	}

	// Запись уже сохранена; при неудачной доставке не откатываем —
	// она истечёт сама по TTL.
	if !s.notifier.SendRecoveryCode(user, code, email, phone) {
		return nil, FieldErrors{"general": "send"}, nil
	}

	log.Printf("[recovery][request] issued: user_id=%d", user.ID)
	return &RecoveryIssued{Token: rec.Token, ExpirationTime: rec.ExpirationTime}, nil, nil
}

// validateContact — общая проверка контактных данных против найденного
// пользователя (или nil в тихом режиме). Побочных эффектов нет.
func (s *recoveryService) validateContact(user *models.User, email, phone *string) (*string, *string, FieldErrors) {
	errs := FieldErrors{}

	if email == nil && phone == nil {
		errs["contact"] = "required"
	} else if user != nil && user.Email == nil && user.Phone == nil {
		errs["contact"] = "empty"
	}

	if phone != nil {
		if !s.phoneRule.IsValid(*phone) {
			errs["phone"] = "invalid"
		} else if user != nil {
			cleaned := s.phoneRule.Clean(*phone)
			var stored string
			if user.Phone != nil {
				stored = s.phoneRule.Clean(*user.Phone)
			}
			if cleaned != stored {
				errs["phone"] = "mismatch"
				// непроверенное значение дальше не передаём
				phone = nil
			} else {
				phone = &cleaned
			}
		}
	}

	if email != nil {
		if !s.emailRule.IsValid(*email) {
			errs["email"] = "invalid"
		} else if user != nil {
			cleaned := s.emailRule.Clean(*email)
			var stored string
			if user.Email != nil {
				stored = s.emailRule.Clean(*user.Email)
			}
			if cleaned != stored {
				errs["email"] = "mismatch"
				email = nil
			} else {
				email = &cleaned
			}
		}
	}

	// Хвостовые зажимы: канал, которого нет у пользователя, не возвращаем.
	if user != nil {
		if user.Email == nil {
			email = nil
		}
		if user.Phone == nil {
			phone = nil
		}
	} else {
		email = nil
		phone = nil
	}

	return email, phone, errs
}

func (s *recoveryService) Confirm(token string, req *RecoveryConfirm) (FieldErrors, error) {
	rec, err := s.repo.GetByToken(strings.TrimSpace(token))
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrRecoveryNotFound
	}

	user, err := s.users.GetByID(rec.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		// Пользователь удалён: чистим осиротевшую запись и отвечаем 404.
		if err := s.repo.Delete(rec.ID); err != nil {
			log.Printf("[recovery][confirm] orphan delete failed: id=%d err=%v", rec.ID, err)
		}
		return nil, ErrRecoveryNotFound
	}

	// Просроченная запись попытку не тратит.
	if rec.Expired(s.now()) {
		return nil, ErrRecoveryExpired
	}

	// Лимит исчерпан — запись заблокирована навсегда, счётчик не растёт.
	if rec.Attempts >= s.cfg.MaxAttempts {
		return FieldErrors{"code": "attempts"}, nil
	}

	password, errs := s.validateConfirmFields(req)

	// Код сверяем, только если к самому полю code претензий нет.
	if _, ok := errs["code"]; !ok {
		if strings.TrimSpace(req.Code) != rec.Code {
			errs["code"] = "mismatch"
		}
	}

	if len(errs) > 0 {
		// Единственный путь, тратящий попытку.
		if _, incErr := s.repo.IncrementAttempts(rec.ID); incErr != nil {
			return nil, incErr
		}
		return errs, nil
	}

	hash, err := s.auth.HashPassword(password)
	if err != nil {
		return nil, err
	}
	if err := s.users.UpdatePassword(user.ID, hash); err != nil {
		return nil, err
	}

	// Успешный сброс гасит запись: иначе той же парой token+code можно
	// было бы менять пароль до истечения TTL.
	if err := s.repo.Delete(rec.ID); err != nil {
		log.Printf("[recovery][confirm] delete after success failed: id=%d err=%v", rec.ID, err)
	}

	log.Printf("[recovery][confirm] password updated: user_id=%d", user.ID)
	return nil, nil
}

func (s *recoveryService) validateConfirmFields(req *RecoveryConfirm) (string, FieldErrors) {
	errs := FieldErrors{}

	if nullify(req.Code) == nil {
		errs["code"] = "required"
	}

	var password *string
	if s.cfg.ConfirmNewPassword {
		p1 := nullify(req.Password1)
		p2 := nullify(req.Password2)
		if p1 == nil {
			errs["password1"] = "required"
		}
		if p2 == nil {
			errs["password2"] = "required"
		}
		if p1 != nil && p2 != nil {
			if *p1 != *p2 {
				errs["password1"] = "mismatch"
			} else {
				password = p1
			}
		}
	} else {
		password = nullify(req.Password)
		if password == nil {
			errs["password"] = "required"
		}
	}

	if password != nil &&
		errs["password"] == "" && errs["password1"] == "" && errs["password2"] == "" {
		if reason := s.auth.ValidatePassword(*password); reason != "" {
			errs["password"] = reason
		}
	}

	// В режиме подтверждения ошибки правила пароля показываем под password1.
	if s.cfg.ConfirmNewPassword {
		if reason, ok := errs["password"]; ok {
			errs["password1"] = reason
			delete(errs, "password")
		}
	}

	if password == nil || len(errs) > 0 {
		return "", errs
	}
	return *password, errs
}

// nullify — пустая после TrimSpace строка превращается в nil.
func nullify(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}
