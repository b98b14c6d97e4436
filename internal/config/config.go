package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"blogsvc/pkg/notify"
	"blogsvc/pkg/storage"
)

// ConfigPath is the default config file location.
const ConfigPath = "config.yaml"

// Store drivers.
const (
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
	DriverMemory   = "memory"
)

// Notifier kinds.
const (
	NotifierSMTP = "smtp"
	NotifierAMQP = "amqp"
	NotifierLog  = "log"
)

// SMTPConfig is the yaml view of notify.SMTPConfig.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Timeout  string `yaml:"timeout"`
}

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port          string `yaml:"port"`
	LogLevel      string `yaml:"logLevel"`
	StoreDriver   string `yaml:"storeDriver"`
	DatabaseURL   string `yaml:"databaseURL"`
	MongoDatabase string `yaml:"mongoDatabase"`
	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`

	JWTSecret   string `yaml:"jwtSecret"`
	JWTIssuer   string `yaml:"jwtIssuer"`
	JWTAudience string `yaml:"jwtAudience"`
	JWTLeeway   string `yaml:"jwtLeeway"`
	TokenTTL    string `yaml:"tokenTTL"`
	OTPTTL      string `yaml:"otpTTL"`

	Minio                  storage.MinioConfig `yaml:"minio"`
	MediaPublicURL         string              `yaml:"mediaPublicURL"`
	MediaFolder            string              `yaml:"mediaFolder"`
	MaxUploadBytes         int64               `yaml:"maxUploadBytes"`
	AllowedImageExtensions []string            `yaml:"allowedImageExtensions"`
	AllowedOrigins         []string            `yaml:"allowedOrigins"`
	TrustedProxies         []string            `yaml:"trustedProxies"`

	Notifier      string     `yaml:"notifier"`
	SMTP          SMTPConfig `yaml:"smtp"`
	MailFrom      string     `yaml:"mailFrom"`
	ApproverEmail string     `yaml:"approverEmail"`
	AMQPURL       string     `yaml:"amqpURL"`
	AMQPQueue     string     `yaml:"amqpQueue"`

	RegisterRateLimitPerMinute  int `yaml:"registerRateLimitPerMinute"`
	LoginRateLimitPerMinute     int `yaml:"loginRateLimitPerMinute"`
	SendOTPRateLimitPerMinute   int `yaml:"sendOtpRateLimitPerMinute"`
	VerifyOTPRateLimitPerMinute int `yaml:"verifyOtpRateLimitPerMinute"`
}

// Load reads config from path, falling back to BLOG_CONFIG and then
// config.yaml. A missing file is tolerated; the environment must then supply
// the required values.
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = os.Getenv("BLOG_CONFIG")
	}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return cfg, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}
	applyEnv(&cfg)
	applyDefaults(&cfg)
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *FileConfig) {
	setString(&cfg.Port, "PORT")
	setString(&cfg.LogLevel, "LOG_LEVEL")
	setString(&cfg.StoreDriver, "STORE_DRIVER")
	setString(&cfg.DatabaseURL, "DATABASE_URL")
	setString(&cfg.MongoDatabase, "MONGO_DATABASE")
	setString(&cfg.RedisAddr, "REDIS_ADDR")
	setString(&cfg.RedisPassword, "REDIS_PASSWORD")
	setString(&cfg.JWTSecret, "JWT_SECRET")
	setString(&cfg.JWTIssuer, "JWT_ISSUER")
	setString(&cfg.JWTAudience, "JWT_AUDIENCE")
	setString(&cfg.JWTLeeway, "JWT_LEEWAY")
	setString(&cfg.TokenTTL, "TOKEN_TTL")
	setString(&cfg.OTPTTL, "OTP_TTL")
	setString(&cfg.Minio.Endpoint, "MINIO_ENDPOINT")
	setString(&cfg.Minio.AccessKey, "MINIO_ACCESS_KEY")
	setString(&cfg.Minio.SecretKey, "MINIO_SECRET_KEY")
	setString(&cfg.Minio.Bucket, "MINIO_BUCKET")
	if v := os.Getenv("MINIO_USE_SSL"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Minio.UseSSL = b
		}
	}
	setString(&cfg.MediaPublicURL, "MEDIA_PUBLIC_URL")
	setString(&cfg.MediaFolder, "MEDIA_FOLDER")
	if v := os.Getenv("MAX_UPLOAD_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.MaxUploadBytes = n
		}
	}
	setList(&cfg.AllowedImageExtensions, "ALLOWED_IMAGE_EXTENSIONS")
	setList(&cfg.AllowedOrigins, "ALLOWED_ORIGINS")
	setList(&cfg.TrustedProxies, "TRUSTED_PROXIES")
	setString(&cfg.Notifier, "NOTIFIER")
	setString(&cfg.SMTP.Host, "SMTP_HOST")
	setInt(&cfg.SMTP.Port, "SMTP_PORT")
	setString(&cfg.SMTP.Username, "SMTP_USERNAME")
	setString(&cfg.SMTP.Password, "SMTP_PASSWORD")
	setString(&cfg.MailFrom, "MAIL_FROM")
	setString(&cfg.ApproverEmail, "APPROVER_EMAIL")
	setString(&cfg.AMQPURL, "AMQP_URL")
	setString(&cfg.AMQPQueue, "AMQP_QUEUE")
	setInt(&cfg.RegisterRateLimitPerMinute, "REGISTER_RATE_LIMIT_PER_MINUTE")
	setInt(&cfg.LoginRateLimitPerMinute, "LOGIN_RATE_LIMIT_PER_MINUTE")
	setInt(&cfg.SendOTPRateLimitPerMinute, "SEND_OTP_RATE_LIMIT_PER_MINUTE")
	setInt(&cfg.VerifyOTPRateLimitPerMinute, "VERIFY_OTP_RATE_LIMIT_PER_MINUTE")
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setList(dst *[]string, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	*dst = out
}

func applyDefaults(cfg *FileConfig) {
	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))
	if cfg.StoreDriver == "" {
		cfg.StoreDriver = DriverPostgres
	}
	cfg.Notifier = strings.ToLower(strings.TrimSpace(cfg.Notifier))
	if cfg.Notifier == "" {
		cfg.Notifier = NotifierLog
	}
	if cfg.MongoDatabase == "" {
		cfg.MongoDatabase = "blog"
	}
	if cfg.RegisterRateLimitPerMinute == 0 {
		cfg.RegisterRateLimitPerMinute = 10
	}
	if cfg.LoginRateLimitPerMinute == 0 {
		cfg.LoginRateLimitPerMinute = 10
	}
	if cfg.SendOTPRateLimitPerMinute == 0 {
		cfg.SendOTPRateLimitPerMinute = 3
	}
	if cfg.VerifyOTPRateLimitPerMinute == 0 {
		cfg.VerifyOTPRateLimitPerMinute = 10
	}
	if cfg.MediaPublicURL != "" {
		cfg.Minio.PublicBaseURL = cfg.MediaPublicURL
	}
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml)")
	}
	switch cfg.StoreDriver {
	case DriverPostgres, DriverMongo:
		if strings.TrimSpace(cfg.DatabaseURL) == "" {
			return fmt.Errorf("config: databaseURL is required for the %s store", cfg.StoreDriver)
		}
	case DriverMemory:
	default:
		return fmt.Errorf("config: unknown storeDriver %q", cfg.StoreDriver)
	}
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		return errors.New("config: jwtSecret is required (set JWT_SECRET)")
	}
	if strings.TrimSpace(cfg.Minio.Endpoint) == "" || strings.TrimSpace(cfg.Minio.Bucket) == "" {
		return errors.New("config: minio endpoint and bucket are required")
	}
	if strings.TrimSpace(cfg.ApproverEmail) == "" {
		return errors.New("config: approverEmail is required")
	}
	switch cfg.Notifier {
	case NotifierSMTP:
		if strings.TrimSpace(cfg.SMTP.Host) == "" {
			return errors.New("config: smtp.host is required for the smtp notifier")
		}
		if strings.TrimSpace(cfg.MailFrom) == "" {
			return errors.New("config: mailFrom is required for the smtp notifier")
		}
	case NotifierAMQP:
		if strings.TrimSpace(cfg.AMQPURL) == "" {
			return errors.New("config: amqpURL is required for the amqp notifier")
		}
	case NotifierLog:
	default:
		return fmt.Errorf("config: unknown notifier %q", cfg.Notifier)
	}
	if cfg.RegisterRateLimitPerMinute < 0 || cfg.LoginRateLimitPerMinute < 0 || cfg.SendOTPRateLimitPerMinute < 0 || cfg.VerifyOTPRateLimitPerMinute < 0 {
		return errors.New("config: rate limits must be >= 0")
	}
	if cfg.MaxUploadBytes < 0 {
		return errors.New("config: maxUploadBytes must be >= 0")
	}
	for name, value := range map[string]string{
		"tokenTTL":  cfg.TokenTTL,
		"otpTTL":    cfg.OTPTTL,
		"jwtLeeway": cfg.JWTLeeway,
	} {
		if _, err := ParseDuration(name, value); err != nil {
			return fmt.Errorf("config: %w", err)
		}
	}
	return nil
}

// ParseDuration parses an optional duration string. Empty yields zero.
func ParseDuration(name, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	dur, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s duration: %w", name, err)
	}
	if dur < 0 {
		return 0, fmt.Errorf("invalid %s duration: must be >= 0", name)
	}
	return dur, nil
}

// SMTPNotifierConfig converts the yaml block into notify.SMTPConfig.
func (c FileConfig) SMTPNotifierConfig() notify.SMTPConfig {
	timeout, _ := ParseDuration("smtp.timeout", c.SMTP.Timeout)
	return notify.SMTPConfig{
		Host:     c.SMTP.Host,
		Port:     c.SMTP.Port,
		Username: c.SMTP.Username,
		Password: c.SMTP.Password,
		Timeout:  timeout,
	}
}
