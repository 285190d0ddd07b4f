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

type (
	Config struct {
		Debug    bool
		TestMode bool
		Env      string // DEV (default) | TEST | QA | PROD
		Build    string
		AppName  string
		WorkDir  string

		FrontendBaseURL  string
		DefaultFromEmail mail.Address
		ContactEmail     string
		SendgridApiKey   string
		RollbarToken     string

		Server       ServerConfig
		Database     DatabaseConfig
		Sheets       SheetsConfig
		Registration RegistrationConfig
	}

	ServerConfig struct {
		Host            string
		Addr            string
		DebugHost       string
		ShutdownTimeout time.Duration
	}

	DatabaseConfig struct {
		Engine        string
		Name          string
		Host          string
		Port          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	// SheetsConfig holds the server-side-only credentials for the upstream
	// spreadsheet web app. Both fields must be set for forwarding to work.
	SheetsConfig struct {
		URL       string
		APISecret string
		Timeout   time.Duration
	}

	RegistrationConfig struct {
		// EarlyBirdCutoff is compared against wall-clock time on every price
		// computation; at the exact cutoff instant standard pricing applies.
		EarlyBirdCutoff    time.Time
		AffiliateInstitute string
		WaivableModule     string
		SubmitRetryDelay   time.Duration
		// PaymentLinks maps a team size (1-based) to an externally hosted
		// payment page. Consumed as opaque strings.
		PaymentLinks []string
	}
)

func (c DatabaseConfig) Address() string {
	return c.Host + ":" + c.Port
}

func NewConfig() *Config {
	conf := viper.New()
	conf.SetTypeByDefaultValue(true)

	// defaults
	conf.SetDefault("debug", true)
	conf.SetDefault("appName", "HxD")
	conf.SetDefault("build", "dev")
	conf.SetDefault("frontendBaseURL", "http://localhost:5173")
	conf.SetDefault("defaultFromEmail", "noreply@localhost")
	conf.SetDefault("contactEmail", "dss@khi.iba.edu.pk")

	conf.SetDefault("serverHost", "localhost")
	conf.SetDefault("serverAddr", ":8000")
	conf.SetDefault("serverDebugHost", "localhost:4000")
	conf.SetDefault("serverShutdownTimeout", 5*time.Second)

	conf.SetDefault("databaseEngine", "postgres")
	conf.SetDefault("databaseName", "hxd")
	conf.SetDefault("databaseHost", "localhost")
	conf.SetDefault("databasePort", "5432")
	conf.SetDefault("databaseUser", "hxd")
	conf.SetDefault("databaseDisableTLS", true)

	conf.SetDefault("sheetsTimeout", 30*time.Second)

	conf.SetDefault("earlyBirdCutoff", "2026-01-31T00:00:00+05:00")
	conf.SetDefault("affiliateInstitute", "IBA")
	conf.SetDefault("waivableModule", "csi")
	conf.SetDefault("submitRetryDelay", 3*time.Second)
	conf.SetDefault("paymentLinks", []string{})

	env := os.Getenv("ENV")
	if env == "" {
		env = "DEV"
	}
	conf.SetEnvPrefix(env)

	// load .env if it exists (ignore if it does not)
	wd := Getwd()
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err = godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	conf.AutomaticEnv()

	cutoff, err := time.Parse(time.RFC3339, conf.GetString("earlyBirdCutoff"))
	if err != nil {
		log.Fatalf("config.earlyBirdCutoff: %v", err)
	}

	return &Config{
		Debug:    conf.GetBool("debug"),
		TestMode: env == "TEST",
		Env:      env,
		Build:    conf.GetString("build"),
		AppName:  conf.GetString("appName"),
		WorkDir:  wd,

		FrontendBaseURL:  conf.GetString("frontendBaseURL"),
		DefaultFromEmail: mail.Address{Address: conf.GetString("defaultFromEmail")},
		ContactEmail:     conf.GetString("contactEmail"),
		SendgridApiKey:   conf.GetString("sendgridApiKey"),
		RollbarToken:     conf.GetString("rollbarToken"),

		Server: ServerConfig{
			Host:            conf.GetString("serverHost"),
			Addr:            conf.GetString("serverAddr"),
			DebugHost:       conf.GetString("serverDebugHost"),
			ShutdownTimeout: conf.GetDuration("serverShutdownTimeout"),
		},
		Database: DatabaseConfig{
			Engine:        conf.GetString("databaseEngine"),
			Name:          conf.GetString("databaseName"),
			Host:          conf.GetString("databaseHost"),
			Port:          conf.GetString("databasePort"),
			User:          conf.GetString("databaseUser"),
			Password:      conf.GetString("databasePassword"),
			AdminUser:     conf.GetString("databaseAdminUser"),
			AdminPassword: conf.GetString("databaseAdminPassword"),
			DisableTLS:    conf.GetBool("databaseDisableTLS"),
		},
		Sheets: SheetsConfig{
			URL:       conf.GetString("sheetsURL"),
			APISecret: conf.GetString("sheetsAPISecret"),
			Timeout:   conf.GetDuration("sheetsTimeout"),
		},
		Registration: RegistrationConfig{
			EarlyBirdCutoff:    cutoff,
			AffiliateInstitute: conf.GetString("affiliateInstitute"),
			WaivableModule:     conf.GetString("waivableModule"),
			SubmitRetryDelay:   conf.GetDuration("submitRetryDelay"),
			PaymentLinks:       conf.GetStringSlice("paymentLinks"),
		},
	}
}
