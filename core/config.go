package core

import (
	"log"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Conf holds the app-wide configuration. It is loaded once at startup and
// treated as immutable afterwards.
var Conf *Config

type Config struct {
	Debug    bool
	TestMode bool
	Env      string // DEV (default), TEST, QA, PROD
	AppName  string
	Build    string

	SecretKey        string
	WorkDir          string
	FrontendBaseURL  string
	DefaultFromEmail mail.Address

	SendgridApiKey string
	RollbarToken   string
	DatabaseURL    string

	Server struct {
		Host                      string
		Addr                      string
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
	}

	PasswordResetTimeoutDelta time.Duration
	MagicLinkTimeoutDelta     time.Duration
	ResendCooldown            time.Duration

	Razorpay struct {
		KeyID     string
		KeySecret string
	}
	Stripe struct {
		SecretKey      string
		PublishableKey string
	}
	Google struct {
		ClientID     string
		ClientSecret string
		RedirectURL  string
	}
}

// Configuration is read from the environment (optionally seeded from a
// config/.env.<env> file) with sane DEV defaults. Payment/OAuth/email
// credentials left unset - or still carrying a `your-...` placeholder from a
// sample env file - degrade that provider to "unavailable" instead of
// crashing the app.
func init() {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("appName", "Kozi")
	v.SetDefault("secretKey", "w3+8f$#kd1!yq(7vmz&0u5hx2^c4)jb9n6s*eag_rlt-po%i")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("serverAddr", ":8000")
	v.SetDefault("jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("jwtRefreshExpirationDelta", 4*time.Hour)
	v.SetDefault("passwordResetTimeoutDelta", 3*24*time.Hour)
	v.SetDefault("magicLinkTimeoutDelta", 1*time.Hour)
	v.SetDefault("resendCooldown", 30*time.Second)

	env := os.Getenv("ENV")
	if env == "" {
		env = "DEV"
	}
	if env == "TEST" {
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)

	// load .env if it exists (ignore if it does not)
	wd := Getwd()
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	conf := &Config{
		Debug:            v.GetBool("debug"),
		TestMode:         v.GetBool("testMode"),
		Env:              env,
		AppName:          v.GetString("appName"),
		Build:            v.GetString("build"),
		SecretKey:        v.GetString("secretKey"),
		WorkDir:          wd,
		FrontendBaseURL:  strings.TrimRight(v.GetString("frontendBaseURL"), "/"),
		DefaultFromEmail: mail.Address{Name: v.GetString("appName"), Address: v.GetString("defaultFromEmail")},

		SendgridApiKey: v.GetString("sendgridApiKey"),
		RollbarToken:   v.GetString("rollbarToken"),
		DatabaseURL:    v.GetString("databaseURL"),

		PasswordResetTimeoutDelta: v.GetDuration("passwordResetTimeoutDelta"),
		MagicLinkTimeoutDelta:     v.GetDuration("magicLinkTimeoutDelta"),
		ResendCooldown:            v.GetDuration("resendCooldown"),
	}
	conf.Server.Host, _ = os.Hostname()
	conf.Server.Addr = v.GetString("serverAddr")
	conf.Server.JWTExpirationDelta = v.GetDuration("jwtExpirationDelta")
	conf.Server.JWTRefreshExpirationDelta = v.GetDuration("jwtRefreshExpirationDelta")
	conf.Razorpay.KeyID = v.GetString("razorpayKeyID")
	conf.Razorpay.KeySecret = v.GetString("razorpayKeySecret")
	conf.Stripe.SecretKey = v.GetString("stripeSecretKey")
	conf.Stripe.PublishableKey = v.GetString("stripePublishableKey")
	conf.Google.ClientID = v.GetString("googleClientID")
	conf.Google.ClientSecret = v.GetString("googleClientSecret")
	conf.Google.RedirectURL = v.GetString("googleRedirectURL")

	Conf = conf
}

// isConfigured reports whether a credential is usable: non-empty and not a
// `your-...` placeholder copied from a sample env file.
func isConfigured(val, placeholder string) bool {
	return val != "" && !strings.Contains(val, placeholder)
}

func (c *Config) RazorpayConfigured() bool {
	return isConfigured(c.Razorpay.KeyID, "your-razorpay") && isConfigured(c.Razorpay.KeySecret, "your-razorpay")
}

func (c *Config) StripeConfigured() bool {
	return isConfigured(c.Stripe.SecretKey, "your-stripe")
}

func (c *Config) GoogleOAuthConfigured() bool {
	return isConfigured(c.Google.ClientID, "your-google") && isConfigured(c.Google.ClientSecret, "your-google")
}

func (c *Config) SendgridConfigured() bool {
	return isConfigured(c.SendgridApiKey, "your-sendgrid")
}

func (c *Config) DatabaseConfigured() bool {
	return c.DatabaseURL != ""
}

func (c *Config) RollbarConfigured() bool {
	return isConfigured(c.RollbarToken, "your-rollbar")
}
