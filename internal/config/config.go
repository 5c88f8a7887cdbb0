package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration values.  Each field maps to
// an environment variable; required ones are enforced by must() and
// abort startup when missing.
type Config struct {
	Env               string        // application environment (dev, test, prod)
	Port              string        // HTTP port to listen on
	DBUser            string        // database username
	DBPass            string        // database password (optional)
	DBHost            string        // database host address
	DBPort            string        // database port number
	DBName            string        // database name
	JWTSecret         string        // secret used to verify bearer tokens issued by the identity provider
	MinDepositPercent int64         // minimum reservation deposit as a percentage of the plot price
	HoldTTL           time.Duration // how long a deposit reservation blocks a plot
	BankAccounts      []string      // accounts listed on invoices as payment instructions
	InventoryURL      string        // when set, the orchestrator reaches the plot inventory store over HTTP instead of in-process
	RabbitURL         string        // AMQP broker for the notification dispatch queue
}

// Load reads configuration from environment variables.  Missing
// required variables cause a fatal log and exit.
func Load() Config {
	return Config{
		Env:               must("APP_ENV"),
		Port:              must("APP_PORT"),
		DBUser:            must("DB_USER"),
		DBPass:            os.Getenv("DB_PASS"),
		DBHost:            must("DB_HOST"),
		DBPort:            must("DB_PORT"),
		DBName:            must("DB_NAME"),
		JWTSecret:         must("JWT_SECRET"),
		MinDepositPercent: int64(intDefault("MIN_DEPOSIT_PERCENT", 30)),
		HoldTTL:           time.Duration(intDefault("HOLD_TTL_HOURS", 24)) * time.Hour,
		BankAccounts:      splitList(os.Getenv("BANK_ACCOUNTS")),
		InventoryURL:      os.Getenv("INVENTORY_URL"),
		RabbitURL:         os.Getenv("RABBITMQ_URL"),
	}
}

// must retrieves a required environment variable or exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// intDefault reads an integer environment variable, falling back to
// def when unset, and exiting on malformed values.
func intDefault(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
