package main

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/nkiryanov/cardservice/internal/logger"
)

const (
	defaultListenAddr    = "localhost:8000"
	defaultLoggingLevel  = logger.LevelInfo
	defaultEnvironment   = logger.EnvProduction
	defaultAdminUsername = "admin"
	defaultAdminPassword = "admin12345"
	defaultAdminFullName = "Service Admin Account"
)

type Config struct {
	// Default logging level
	LogLevel string

	// Address on which the card service will be run
	ListenAddr string

	// Database to connect to
	DatabaseDSN string

	// Secret key
	// Used to sign JWT tokens and to derive card number tokens, so it must be set
	SecretKey string

	// Environment
	Environment string

	// Bootstrap admin account, created on start if missing
	AdminUsername string
	AdminPassword string
	AdminFullName string
}

func NewConfig() *Config {
	return &Config{
		LogLevel:      defaultLoggingLevel,
		ListenAddr:    defaultListenAddr,
		Environment:   defaultEnvironment,
		AdminUsername: defaultAdminUsername,
		AdminPassword: defaultAdminPassword,
		AdminFullName: defaultAdminFullName,
	}
}

// AdminDefaultsInUse reports whether the bootstrap admin still uses
// the well known default credentials.
func (c *Config) AdminDefaultsInUse() bool {
	return c.AdminUsername == defaultAdminUsername && c.AdminPassword == defaultAdminPassword
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

	envMap := map[string]func(string){
		"RUN_ADDRESS":    setString(&c.ListenAddr),
		"DATABASE_URI":   setString(&c.DatabaseDSN),
		"SECRET_KEY":     setString(&c.SecretKey),
		"LOG_LEVEL":      setString(&c.LogLevel),
		"ENVIRONMENT":    setString(&c.Environment),
		"ADMIN_USERNAME": setString(&c.AdminUsername),
		"ADMIN_PASSWORD": setString(&c.AdminPassword),
		"ADMIN_FULLNAME": setString(&c.AdminFullName),
	}

	for key, parseFn := range envMap {
		parseFn(getenv(key))
	}
}

func (c *Config) ParseFlags(args []string) error {
	fs := pflag.NewFlagSet("cardservice", pflag.ContinueOnError)

	fs.StringVarP(&c.ListenAddr, "address", "a", c.ListenAddr, "Server listen address")
	fs.StringVarP(&c.DatabaseDSN, "database", "d", c.DatabaseDSN, "Database connection string")
	fs.StringVarP(&c.SecretKey, "secret-key", "s", c.SecretKey, "Secret key")
	fs.StringVarP(&c.LogLevel, "log-level", "l", c.LogLevel, "Logging level (debug, info, warn, error)")
	fs.StringVarP(&c.Environment, "environment", "e", c.Environment, "Environment (dev, prod)")
	fs.StringVar(&c.AdminUsername, "admin-username", c.AdminUsername, "Bootstrap admin username")
	fs.StringVar(&c.AdminPassword, "admin-password", c.AdminPassword, "Bootstrap admin password")
	fs.StringVar(&c.AdminFullName, "admin-fullname", c.AdminFullName, "Bootstrap admin full name")

	return fs.Parse(args)
}
