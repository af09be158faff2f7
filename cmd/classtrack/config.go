package main

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/classtrackapp/classtrack/internal/logger"
)

const (
	defaultListenAddr   = "localhost:8080"
	defaultLoggingLevel = logger.LevelInfo
	defaultEnvironment  = logger.EnvProduction
	defaultTimezone     = "UTC"
)

type Config struct {
	// Default logging level
	LogLevel string

	// Address on which the classtrack service will be run
	ListenAddr string

	// Database to connect to
	DatabaseDSN string

	// Secret key to sign session tokens
	SecretKey string

	// Environment (dev, prod)
	Environment string

	// Time zone schedule entries are rendered in
	Timezone string

	// External calendar provider OAuth client settings
	CalendarClientID     string
	CalendarClientSecret string
	CalendarAuthURL      string
	CalendarTokenURL     string
	CalendarRedirectURL  string
	CalendarScopes       string // comma separated

	// External calendar events API base url
	CalendarAPIURL string
}

func NewConfig() *Config {
	return &Config{
		LogLevel:    defaultLoggingLevel,
		ListenAddr:  defaultListenAddr,
		Environment: defaultEnvironment,
		Timezone:    defaultTimezone,
	}
}

func (c *Config) Scopes() []string {
	if c.CalendarScopes == "" {
		return nil
	}

	scopes := strings.Split(c.CalendarScopes, ",")
	for i := range scopes {
		scopes[i] = strings.TrimSpace(scopes[i])
	}
	return scopes
}

// Load variables from '.env' file (should be located at working directory)
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

	envMap := map[string]func(string){
		"RUN_ADDRESS":             setString(&c.ListenAddr),
		"DATABASE_URI":            setString(&c.DatabaseDSN),
		"SECRET_KEY":              setString(&c.SecretKey),
		"LOG_LEVEL":               setString(&c.LogLevel),
		"ENVIRONMENT":             setString(&c.Environment),
		"TIMEZONE":                setString(&c.Timezone),
		"CALENDAR_CLIENT_ID":      setString(&c.CalendarClientID),
		"CALENDAR_CLIENT_SECRET":  setString(&c.CalendarClientSecret),
		"CALENDAR_AUTH_URL":       setString(&c.CalendarAuthURL),
		"CALENDAR_TOKEN_URL":      setString(&c.CalendarTokenURL),
		"CALENDAR_REDIRECT_URL":   setString(&c.CalendarRedirectURL),
		"CALENDAR_SCOPES":         setString(&c.CalendarScopes),
		"CALENDAR_API_URL":        setString(&c.CalendarAPIURL),
	}

	for key, parseFn := range envMap {
		parseFn(getenv(key))
	}
}

func (c *Config) ParseFlags(args []string) error {
	fs := pflag.NewFlagSet("classtrack", pflag.ContinueOnError)

	fs.StringVarP(&c.ListenAddr, "address", "a", c.ListenAddr, "Server listen address")
	fs.StringVarP(&c.DatabaseDSN, "database", "d", c.DatabaseDSN, "Database connection string")
	fs.StringVarP(&c.SecretKey, "secret-key", "s", c.SecretKey, "Secret key")
	fs.StringVarP(&c.LogLevel, "log-level", "l", c.LogLevel, "Logging level (debug, info, warn, error)")
	fs.StringVarP(&c.Environment, "environment", "e", c.Environment, "Environment (dev, prod)")
	fs.StringVarP(&c.Timezone, "timezone", "t", c.Timezone, "Schedule time zone")
	fs.StringVar(&c.CalendarAPIURL, "calendar-api", c.CalendarAPIURL, "Calendar events API base url")

	return fs.Parse(args)
}
