package config // package config loads application configuration from environment variables

import (
    "log"      // log is used to report configuration errors and halt execution
    "os"       // os provides access to environment variables
    "strconv"  // strconv converts strings to other types
    "time"     // time parses duration-valued settings
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  The types reflect how the values are used in
// the application: strings for identifiers and secrets, ints for durations and costs.
type Config struct {
    Env                 string        // application environment (e.g. "dev", "prod")
    Port                string        // HTTP port to listen on
    DBUser              string        // database username
    DBPass              string        // database password (optional)
    DBHost              string        // database host address
    DBPort              string        // database port number
    DBName              string        // database name
    JWTSecret           string        // secret used to sign operator JWTs
    AccessTTLMin        int           // operator access token time‑to‑live in minutes
    BcryptCost          int           // bcrypt cost for operator password hashing
    ProcessorBaseURL    string        // base URL of the payment processor API
    ProcessorSecretKey  string        // platform secret key for processor API calls
    WebhookSecret       string        // endpoint secret for verifying processor webhooks
    PublicBaseURL       string        // public base URL used in capture links sent to guests
    NotifyRelayURL      string        // optional HTTP relay for guest notices (empty = console)
    OutboxPollInterval  time.Duration // how often the outbox dispatcher scans for due work
    ChargeTimeout       time.Duration // upper bound for an off-session charge attempt
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
    return Config{
        Env:                must("APP_ENV"),             // environment (dev/test/prod)
        Port:               must("APP_PORT"),            // port to bind the HTTP server
        DBUser:             must("DB_USER"),             // database user
        DBPass:             os.Getenv("DB_PASS"),        // database password (empty allowed)
        DBHost:             must("DB_HOST"),             // database host
        DBPort:             must("DB_PORT"),             // database port
        DBName:             must("DB_NAME"),             // database name
        JWTSecret:          must("JWT_SECRET"),          // secret used for signing operator JWTs
        AccessTTLMin:       mustInt("ACCESS_TOKEN_TTL_MIN"), // TTL for operator tokens in minutes
        BcryptCost:         mustInt("BCRYPT_COST"),      // bcrypt cost factor
        ProcessorBaseURL:   must("PROCESSOR_BASE_URL"),  // processor API endpoint
        ProcessorSecretKey: must("PROCESSOR_SECRET_KEY"),
        WebhookSecret:      must("PROCESSOR_WEBHOOK_SECRET"),
        PublicBaseURL:      must("PUBLIC_BASE_URL"),
        NotifyRelayURL:     os.Getenv("NOTIFY_RELAY_URL"),
        OutboxPollInterval: envDuration("OUTBOX_POLL_INTERVAL", 5*time.Second),
        ChargeTimeout:      envDuration("CHARGE_TIMEOUT", 30*time.Second),
    }
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
    v, ok := os.LookupEnv(key)
    if !ok || v == "" {
        log.Fatalf("missing required env var: %s", key)
    }
    return v
}

// mustInt is like must() but converts the retrieved string into an integer.
// If conversion fails, the application logs a fatal error and exits.
func mustInt(key string) int {
    s := must(key)
    n, err := strconv.Atoi(s)
    if err != nil {
        log.Fatalf("invalid int for %s: %q", key, s)
    }
    return n
}

// envDuration reads an optional duration-valued variable (Go duration
// syntax, e.g. "5s" or "1m") falling back to def when unset.  A malformed
// value is fatal rather than silently defaulted.
func envDuration(key string, def time.Duration) time.Duration {
    s := os.Getenv(key)
    if s == "" {
        return def
    }
    d, err := time.ParseDuration(s)
    if err != nil {
        log.Fatalf("invalid duration for %s: %q", key, s)
    }
    return d
}
