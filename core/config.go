package core

import (
	"fmt"
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	ServerConfig struct {
		Host               string
		Address            string
		DebugHost          string
		ShutdownTimeout    time.Duration
		JWTExpirationDelta time.Duration
		DisableReqLogs     bool
	}

	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	CacheConfig struct {
		Driver    string // memory | redis
		RedisAddr string
		TTL       time.Duration
	}

	EmailConfig struct {
		Driver         string // console | sendgrid
		SendgridAPIKey string
		FromName       string
		FromAddress    string
	}

	FeesConfig struct {
		ReceiptPrefix   string
		AdmissionPrefix string
		SnowflakeNode   int64
		DefaultDueDay   int
	}

	Config struct {
		AppName      string
		Build        string
		Env          string
		Debug        bool
		TestMode     bool
		SecretKey    string
		RollbarToken string
		Server       ServerConfig
		Database     DatabaseConfig
		Cache        CacheConfig
		Email        EmailConfig
		Fees         FeesConfig
	}
)

// Address returns the "host:port" of the database server.
func (c DatabaseConfig) Address() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// From returns the sender of outgoing emails.
func (c EmailConfig) From() mail.Address {
	return mail.Address{Name: c.FromName, Address: c.FromAddress}
}

// NewConfig loads the app configuration from defaults, the optional `config/.env.<env>` file and the environment.
// Environment variables are prefixed with the current ENV, e.g. `DEV_DATABASE_NAME`.
func NewConfig() *Config {
	conf := viper.New()

	// defaults
	conf.SetTypeByDefaultValue(true)
	conf.SetDefault("appName", "Fee Ledger")
	conf.SetDefault("build", "develop")
	conf.SetDefault("debug", true)
	conf.SetDefault("secretKey", "poq5-wer)enb$+57=dz&uoxh2(h!x)#*c2(#yg4h^$cegm2emy")
	conf.SetDefault("rollbarToken", "")

	conf.SetDefault("server.host", "localhost")
	conf.SetDefault("server.address", ":8000")
	conf.SetDefault("server.debugHost", ":4000")
	conf.SetDefault("server.shutdownTimeout", 5*time.Second)
	conf.SetDefault("server.jwtExpirationDelta", 7*24*time.Hour)
	conf.SetDefault("server.disableReqLogs", false)

	conf.SetDefault("database.engine", "postgres")
	conf.SetDefault("database.host", "localhost")
	conf.SetDefault("database.port", "5432")
	conf.SetDefault("database.name", "feeledger")
	conf.SetDefault("database.user", "feeledger")
	conf.SetDefault("database.password", "feeledger")
	conf.SetDefault("database.adminUser", "postgres")
	conf.SetDefault("database.adminPassword", "")
	conf.SetDefault("database.disableTLS", true)

	conf.SetDefault("cache.driver", "memory")
	conf.SetDefault("cache.redisAddr", "")
	conf.SetDefault("cache.ttl", time.Hour)

	conf.SetDefault("email.driver", "console")
	conf.SetDefault("email.sendgridAPIKey", "")
	conf.SetDefault("email.fromName", "Fee Ledger")
	conf.SetDefault("email.fromAddress", "accounts@feeledger.local")

	conf.SetDefault("fees.receiptPrefix", "REC")
	conf.SetDefault("fees.admissionPrefix", "ADM")
	conf.SetDefault("fees.snowflakeNode", 1)
	conf.SetDefault("fees.defaultDueDay", 10)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		conf.SetDefault("testMode", true)
	}
	conf.SetEnvPrefix(env)
	conf.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(Getwd(), "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	conf.AutomaticEnv()

	return &Config{
		AppName:      conf.GetString("appName"),
		Build:        conf.GetString("build"),
		Env:          env,
		Debug:        conf.GetBool("debug"),
		TestMode:     conf.GetBool("testMode"),
		SecretKey:    conf.GetString("secretKey"),
		RollbarToken: conf.GetString("rollbarToken"),
		Server: ServerConfig{
			Host:               conf.GetString("server.host"),
			Address:            conf.GetString("server.address"),
			DebugHost:          conf.GetString("server.debugHost"),
			ShutdownTimeout:    conf.GetDuration("server.shutdownTimeout"),
			JWTExpirationDelta: conf.GetDuration("server.jwtExpirationDelta"),
			DisableReqLogs:     conf.GetBool("server.disableReqLogs"),
		},
		Database: DatabaseConfig{
			Engine:        conf.GetString("database.engine"),
			Host:          conf.GetString("database.host"),
			Port:          conf.GetString("database.port"),
			Name:          conf.GetString("database.name"),
			User:          conf.GetString("database.user"),
			Password:      conf.GetString("database.password"),
			AdminUser:     conf.GetString("database.adminUser"),
			AdminPassword: conf.GetString("database.adminPassword"),
			DisableTLS:    conf.GetBool("database.disableTLS"),
		},
		Cache: CacheConfig{
			Driver:    conf.GetString("cache.driver"),
			RedisAddr: conf.GetString("cache.redisAddr"),
			TTL:       conf.GetDuration("cache.ttl"),
		},
		Email: EmailConfig{
			Driver:         conf.GetString("email.driver"),
			SendgridAPIKey: conf.GetString("email.sendgridAPIKey"),
			FromName:       conf.GetString("email.fromName"),
			FromAddress:    conf.GetString("email.fromAddress"),
		},
		Fees: FeesConfig{
			ReceiptPrefix:   conf.GetString("fees.receiptPrefix"),
			AdmissionPrefix: conf.GetString("fees.admissionPrefix"),
			SnowflakeNode:   conf.GetInt64("fees.snowflakeNode"),
			DefaultDueDay:   conf.GetInt("fees.defaultDueDay"),
		},
	}
}

// NewTestConfig returns a Config suitable for tests: no .env lookup, no external services.
func NewTestConfig() *Config {
	return &Config{
		AppName:   "Fee Ledger",
		Build:     "test",
		Env:       "TEST",
		TestMode:  true,
		SecretKey: "test-secret",
		Server: ServerConfig{
			Address:            ":0",
			ShutdownTimeout:    time.Second,
			JWTExpirationDelta: time.Hour,
			DisableReqLogs:     true,
		},
		Database: DatabaseConfig{Engine: "postgres", DisableTLS: true},
		Cache:    CacheConfig{Driver: "memory", TTL: time.Minute},
		Email:    EmailConfig{Driver: "console", FromName: "Fee Ledger", FromAddress: "accounts@feeledger.test"},
		Fees: FeesConfig{
			ReceiptPrefix:   "REC",
			AdmissionPrefix: "ADM",
			SnowflakeNode:   1,
			DefaultDueDay:   10,
		},
	}
}

func (c *Config) String() string {
	return fmt.Sprintf("%s (%s, build %s)", c.AppName, c.Env, c.Build)
}
