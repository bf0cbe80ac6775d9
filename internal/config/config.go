package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
// The values are read by Viper from a config file or environment variables.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	S3       S3Config       `mapstructure:"s3"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Stripe   StripeConfig   `mapstructure:"stripe"`
	Checkout CheckoutConfig `mapstructure:"checkout"`
	Notify   NotifyConfig   `mapstructure:"notify"`
	Offers   OffersConfig   `mapstructure:"offers"`
	Imports  ImportsConfig  `mapstructure:"imports"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Address         string        `mapstructure:"address"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	URI  string `mapstructure:"uri"`
	Name string `mapstructure:"name"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type S3Config struct {
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	BucketName      string `mapstructure:"bucket_name"`
	UsePathStyle    bool   `mapstructure:"use_path_style"`
}

// JWTConfig defines JWT specific configuration
type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	// Parsed from a duration string such as "60m".
	Expiration time.Duration `mapstructure:"expiration"`
}

type StripeConfig struct {
	SecretKey string `mapstructure:"secret_key"`
	TaxRateID string `mapstructure:"tax_rate_id"`
	Currency  string `mapstructure:"currency"`
}

// CheckoutConfig holds defaults for the public offer checkout.
// SuccessURL and CancelURL may contain a {token} placeholder.
type CheckoutConfig struct {
	SuccessURL              string `mapstructure:"success_url"`
	CancelURL               string `mapstructure:"cancel_url"`
	InPersonDiscountPercent int    `mapstructure:"in_person_discount_percent"`
	TrainerPayoutPercent    int    `mapstructure:"trainer_payout_percent"`
	PlatformName            string `mapstructure:"platform_name"`
	// ActivationURL is the page where checkout-created accounts choose a
	// password. May contain a {token} placeholder.
	ActivationURL string        `mapstructure:"activation_url"`
	ActivationTTL time.Duration `mapstructure:"activation_ttl"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

type NotifyConfig struct {
	SMTP        SMTPConfig    `mapstructure:"smtp"`
	AdminEmails []string      `mapstructure:"admin_emails"`
	Interval    time.Duration `mapstructure:"interval"`
	BatchSize   int           `mapstructure:"batch_size"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	ClaimTTL    time.Duration `mapstructure:"claim_ttl"`
}

type OffersConfig struct {
	DefaultTTL    time.Duration `mapstructure:"default_ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

type ImportsConfig struct {
	JobTTL         time.Duration `mapstructure:"job_ttl"`
	ProgressEvery  int           `mapstructure:"progress_every"`
	UploadURLValid time.Duration `mapstructure:"upload_url_valid"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "text" or "json"
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// Nested keys map to env vars, e.g. stripe.secret_key -> STRIPE_SECRET_KEY.
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(`.`, `_`))

	setDefaults(v)

	err = v.ReadInConfig()
	if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		// Config file is optional; defaults and env vars still apply.
		err = nil
	} else if err != nil {
		return
	}

	err = v.Unmarshal(&config)
	if err != nil {
		return
	}

	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("database.uri", "mongodb://localhost:27017")
	v.SetDefault("database.name", "shaper")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.access_key_id", "")
	v.SetDefault("s3.secret_access_key", "")
	v.SetDefault("s3.bucket_name", "shaper-imports")
	v.SetDefault("s3.use_path_style", false)
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiration", "1h")
	v.SetDefault("stripe.secret_key", "")
	v.SetDefault("stripe.tax_rate_id", "")
	v.SetDefault("stripe.currency", "usd")
	v.SetDefault("checkout.success_url", "http://localhost:3000/offers/{token}/success")
	v.SetDefault("checkout.cancel_url", "http://localhost:3000/offers/{token}")
	v.SetDefault("checkout.in_person_discount_percent", 10)
	v.SetDefault("checkout.trainer_payout_percent", 80)
	v.SetDefault("checkout.platform_name", "Shaper")
	v.SetDefault("checkout.activation_url", "http://localhost:3000/activate?token={token}")
	v.SetDefault("checkout.activation_ttl", "72h")
	v.SetDefault("notify.smtp.host", "localhost")
	v.SetDefault("notify.smtp.port", 587)
	v.SetDefault("notify.smtp.username", "")
	v.SetDefault("notify.smtp.password", "")
	v.SetDefault("notify.smtp.from", "no-reply@shaper.local")
	v.SetDefault("notify.admin_emails", []string{})
	v.SetDefault("notify.interval", "5s")
	v.SetDefault("notify.batch_size", 20)
	v.SetDefault("notify.max_attempts", 5)
	v.SetDefault("notify.claim_ttl", "1m")
	v.SetDefault("offers.default_ttl", "168h")
	v.SetDefault("offers.sweep_interval", "5m")
	v.SetDefault("imports.job_ttl", "24h")
	v.SetDefault("imports.progress_every", 100)
	v.SetDefault("imports.upload_url_valid", "15m")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}
