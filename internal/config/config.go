package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

type MobizonConfig struct {
	APIKey   string `yaml:"api_key"`
	SenderID string `yaml:"sender_id"`
	DryRun   bool   `yaml:"dry_run"`
}

// RecoveryConfig — настройки потока восстановления. Явный value object,
// передаётся в сервис при создании (никаких глобальных реестров).
type RecoveryConfig struct {
	LoginMethod             string `yaml:"login_method"`
	CodeLength              int    `yaml:"code_length"`
	TokenExpirationSeconds  int    `yaml:"token_expiration_seconds"`
	MaxAttempts             int    `yaml:"max_attempts"`
	ValidateLoginNotFound   bool   `yaml:"validate_login_not_found"`
	ValidateContactMismatch *bool  `yaml:"validate_contact_mismatch"`
}

type PasswordConfig struct {
	ConfirmNew bool `yaml:"confirm_new"`
	MinLength  int  `yaml:"min_length"`
	MaxLength  int  `yaml:"max_length"`
}

type PhoneConfig struct {
	AllowNANP       *bool `yaml:"allow_nanp"`
	AllowE164       *bool `yaml:"allow_e164"`
	AllowFormatting *bool `yaml:"allow_formatting"`
}

type Config struct {
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`
	Database struct {
		DSN string `yaml:"url"`
	} `yaml:"database"`
	Email struct {
		SMTPHost     string `yaml:"smtp_host"`
		SMTPPort     int    `yaml:"smtp_port"`
		SMTPUser     string `yaml:"smtp_user"`
		SMTPPassword string `yaml:"smtp_password"`
		FromEmail    string `yaml:"from_email"`
	} `yaml:"email"`
	Mobizon  MobizonConfig  `yaml:"mobizon"`
	Recovery RecoveryConfig `yaml:"recovery"`
	Password PasswordConfig `yaml:"password"`
	Phone    PhoneConfig    `yaml:"phone"`
}

func LoadConfig() *Config {
	cfg, err := LoadConfigFrom("config/config.yaml")
	if err != nil {
		panic("Failed to load config.yaml: " + err.Error())
	}
	return cfg
}

func LoadConfigFrom(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// applyDefaults — значения по умолчанию: TTL 3600с, код из 6 знаков,
// проверка mismatch включена.
func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Recovery.LoginMethod == "" {
		cfg.Recovery.LoginMethod = "username"
	}
	if cfg.Recovery.CodeLength == 0 {
		cfg.Recovery.CodeLength = 6
	}
	if cfg.Recovery.TokenExpirationSeconds == 0 {
		cfg.Recovery.TokenExpirationSeconds = 3600
	}
	if cfg.Recovery.MaxAttempts == 0 {
		cfg.Recovery.MaxAttempts = 5
	}
	if cfg.Recovery.ValidateContactMismatch == nil {
		cfg.Recovery.ValidateContactMismatch = boolPtr(true)
	}
	if cfg.Password.MinLength == 0 {
		cfg.Password.MinLength = 8
	}
	if cfg.Password.MaxLength == 0 {
		cfg.Password.MaxLength = 72 // предел bcrypt
	}
	if cfg.Phone.AllowNANP == nil {
		cfg.Phone.AllowNANP = boolPtr(true)
	}
	if cfg.Phone.AllowE164 == nil {
		cfg.Phone.AllowE164 = boolPtr(true)
	}
	if cfg.Phone.AllowFormatting == nil {
		cfg.Phone.AllowFormatting = boolPtr(true)
	}
}

func boolPtr(v bool) *bool { return &v }
