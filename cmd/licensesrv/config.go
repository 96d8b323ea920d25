package main

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/covalidate/licensesrv/internal/logger"
	"github.com/covalidate/licensesrv/internal/service/backup"
	"github.com/covalidate/licensesrv/internal/service/expiry"
)

const (
	EnvDev        = "dev"
	EnvProduction = "prod"
)

const (
	defaultListenAddr   = "localhost:8080"
	defaultLoggingLevel = logger.LevelInfo
	defaultEnvironment  = EnvProduction
	defaultTokenIssuer  = "licensesrv"
	defaultTokenTTL     = time.Hour
)

type Config struct {
	// Default logging level
	LogLevel string

	// Environment (dev uses text logs, prod JSON)
	Environment string

	// Address on which the license service will be run
	ListenAddr string

	// Database to connect to
	DatabaseDSN string

	// Secret key the encrypted tokens are derived from, 32 bytes minimum
	SecretKey string

	// Issuer claim stamped into and required from every token
	TokenIssuer string

	// Token lifetime
	TokenTTL time.Duration

	// Outgoing mail, disabled unless EmailEnabled
	EmailEnabled bool
	SMTPAddr     string
	SMTPFrom     string
	SMTPHello    string
	SMTPUsername string
	SMTPPassword string

	// Cron spec of the expiration warning sweep
	ExpirySchedule string

	// Nightly bucket export, disabled unless BackupEnabled
	BackupEnabled   bool
	BackupOnStartup bool
	BackupSchedule  string
	BackupBucket    string
	BackupMaxFiles  int
	BackupAccessKey string
	BackupSecretKey string
	BackupEndpoint  string
	R2AccountID     string
}

func NewConfig() *Config {
	return &Config{
		LogLevel:       defaultLoggingLevel,
		Environment:    defaultEnvironment,
		ListenAddr:     defaultListenAddr,
		TokenIssuer:    defaultTokenIssuer,
		TokenTTL:       defaultTokenTTL,
		ExpirySchedule: expiry.DefaultSchedule,
		BackupSchedule: backup.DefaultSchedule,
		BackupMaxFiles: backup.DefaultMaxFiles,
	}
}

// Load variable from '.env' file (should be located at working directory)
func (c *Config) LoadDotEnv(getwd func() (string, error)) error {
	wd, err := getwd()
	if err != nil {
		return err
	}

	envMap, err := godotenv.Read(filepath.Join(wd, ".env"))

	switch {
	case err == nil:
		c.LoadEnv(func(key string) string {
			return envMap[key]
		})
		return nil
	case errors.Is(err, os.ErrNotExist):
		return nil
	default:
		return err
	}
}

func (c *Config) LoadEnv(getenv func(string) string) {
	// Set option to value if it not empty
	setString := func(o *string) func(value string) {
		return func(value string) {
			if value != "" {
				*o = value
			}
		}
	}
	setBool := func(o *bool) func(value string) {
		return func(value string) {
			if parsed, err := strconv.ParseBool(value); err == nil {
				*o = parsed
			}
		}
	}
	setInt := func(o *int) func(value string) {
		return func(value string) {
			if parsed, err := strconv.Atoi(value); err == nil {
				*o = parsed
			}
		}
	}
	setDuration := func(o *time.Duration) func(value string) {
		return func(value string) {
			if parsed, err := time.ParseDuration(value); err == nil {
				*o = parsed
			}
		}
	}

	envMap := map[string]func(string){
		"RUN_ADDRESS":              setString(&c.ListenAddr),
		"DATABASE_URI":             setString(&c.DatabaseDSN),
		"SECRET_KEY":               setString(&c.SecretKey),
		"LOG_LEVEL":                setString(&c.LogLevel),
		"ENVIRONMENT":              setString(&c.Environment),
		"TOKEN_ISSUER":             setString(&c.TokenIssuer),
		"TOKEN_TTL":                setDuration(&c.TokenTTL),
		"EMAIL_ENABLED":            setBool(&c.EmailEnabled),
		"SMTP_ADDR":                setString(&c.SMTPAddr),
		"SMTP_FROM":                setString(&c.SMTPFrom),
		"SMTP_HELLO":               setString(&c.SMTPHello),
		"SMTP_USERNAME":            setString(&c.SMTPUsername),
		"SMTP_PASSWORD":            setString(&c.SMTPPassword),
		"EXPIRY_SCHEDULE":          setString(&c.ExpirySchedule),
		"BACKUP_ENABLED":           setBool(&c.BackupEnabled),
		"BACKUP_ON_STARTUP":        setBool(&c.BackupOnStartup),
		"BACKUP_SCHEDULE":          setString(&c.BackupSchedule),
		"BACKUP_BUCKET":            setString(&c.BackupBucket),
		"BACKUP_MAX_FILES":         setInt(&c.BackupMaxFiles),
		"BACKUP_ACCESS_KEY_ID":     setString(&c.BackupAccessKey),
		"BACKUP_SECRET_ACCESS_KEY": setString(&c.BackupSecretKey),
		"BACKUP_ENDPOINT":          setString(&c.BackupEndpoint),
		"R2_ACCOUNT_ID":            setString(&c.R2AccountID),
	}

	for key, parseFn := range envMap {
		parseFn(getenv(key))
	}
}

func (c *Config) ParseFlags(args []string) error {
	fs := pflag.NewFlagSet("licensesrv", pflag.ContinueOnError)

	fs.StringVarP(&c.ListenAddr, "address", "a", c.ListenAddr, "Server listen address")
	fs.StringVarP(&c.DatabaseDSN, "database", "d", c.DatabaseDSN, "Database connection string")
	fs.StringVarP(&c.SecretKey, "secret-key", "s", c.SecretKey, "Secret key (32 bytes minimum)")
	fs.StringVarP(&c.LogLevel, "log-level", "l", c.LogLevel, "Logging level (debug, info, warn, error)")
	fs.StringVarP(&c.Environment, "environment", "e", c.Environment, "Environment (dev, prod)")
	fs.StringVar(&c.TokenIssuer, "token-issuer", c.TokenIssuer, "Issuer claim for issued tokens")
	fs.DurationVar(&c.TokenTTL, "token-ttl", c.TokenTTL, "Token lifetime")
	fs.BoolVar(&c.EmailEnabled, "email-enabled", c.EmailEnabled, "Enable outgoing mail")
	fs.BoolVar(&c.BackupEnabled, "backup-enabled", c.BackupEnabled, "Enable nightly bucket export")
	fs.BoolVar(&c.BackupOnStartup, "backup-on-startup", c.BackupOnStartup, "Run one export right after startup")

	return fs.Parse(args)
}
