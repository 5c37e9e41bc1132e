package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	ChangefeedPostgres = "postgres"
	ChangefeedRedis    = "redis"

	// RoomModeShared puts every open editor into one relay room.
	RoomModeShared = "shared"
	// RoomModeDocument derives the relay room from the document id.
	RoomModeDocument = "document"

	DefaultCollabRoom = "document-collaboration"
)

type Config struct {
	Port        string
	DatabaseURL string
	JWTSecret   string
	SessionTTL  time.Duration
	RedisURL    string
	CORSOrigin  string
	StaticDir   string
	LogLevel    string

	ChangefeedDriver string

	// RelayURL is the collaboration relay editors attach to. Empty means the
	// relay served by this process.
	RelayURL       string
	CollabRoomMode string
	CollabRoom     string
}

// Load reads .env (when present) and the process environment.
// The returned bool reports whether a .env file was loaded.
func Load() (Config, bool) {
	loaded := godotenv.Load() == nil

	cfg := Config{
		Port:             getenv("PORT", "8080"),
		DatabaseURL:      databaseURL(),
		JWTSecret:        getenv("JWT_SECRET", os.Getenv("SUPABASE_JWT_SECRET")),
		SessionTTL:       time.Duration(getenvInt("SESSION_TTL_SECONDS", 7*24*3600)) * time.Second,
		RedisURL:         getenv("REDIS_URL", "redis://localhost:6379/0"),
		CORSOrigin:       getenv("CORS_ORIGIN", "*"),
		StaticDir:        getenv("STATIC_DIR", ""),
		LogLevel:         getenv("LOG_LEVEL", "info"),
		ChangefeedDriver: getenv("CHANGEFEED_DRIVER", ChangefeedPostgres),
		RelayURL:         getenv("RELAY_URL", ""),
		CollabRoomMode:   getenv("COLLAB_ROOM_MODE", RoomModeShared),
		CollabRoom:       getenv("COLLAB_ROOM", DefaultCollabRoom),
	}
	return cfg, loaded
}

// Validate reports settings the server cannot start without.
func (c Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET (or SUPABASE_JWT_SECRET) must be set")
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL (or user/password/host/port/dbname) must be set")
	}
	switch c.ChangefeedDriver {
	case ChangefeedPostgres, ChangefeedRedis:
	default:
		return fmt.Errorf("unknown CHANGEFEED_DRIVER %q", c.ChangefeedDriver)
	}
	switch c.CollabRoomMode {
	case RoomModeShared, RoomModeDocument:
	default:
		return fmt.Errorf("unknown COLLAB_ROOM_MODE %q", c.CollabRoomMode)
	}
	return nil
}

// RoomFor returns the relay room an editor for docID joins.
func (c Config) RoomFor(docID string) string {
	if c.CollabRoomMode == RoomModeDocument {
		return "document-" + docID
	}
	return c.CollabRoom
}

// databaseURL prefers DATABASE_URL and falls back to the Supabase-style
// discrete variables.
func databaseURL() string {
	if v := strings.TrimSpace(os.Getenv("DATABASE_URL")); v != "" {
		return v
	}
	dbUser := strings.TrimSpace(os.Getenv("user"))
	dbPass := strings.TrimSpace(os.Getenv("password"))
	dbHost := strings.TrimSpace(os.Getenv("host"))
	dbPort := strings.TrimSpace(os.Getenv("port"))
	dbName := strings.TrimSpace(os.Getenv("dbname"))
	if dbHost == "" || dbName == "" {
		return ""
	}
	if dbPort == "" {
		dbPort = "5432"
	}
	sslMode := getenv("DB_SSLMODE", "require")
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", dbUser, dbPass, dbHost, dbPort, dbName, sslMode)
}

func getenv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
