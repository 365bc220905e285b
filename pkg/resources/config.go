package resources

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Setup binds configuration to the environment, seeds the defaults, and
// installs the base service logger into the returned context. Call it
// first; everything downstream reads viper and log.Ctx.
func Setup(ctx context.Context, name string, version string, env string) context.Context {
	viper.AutomaticEnv()

	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_USER", "postgres")
	viper.SetDefault("DB_PASSWORD", "postgres")
	viper.SetDefault("DB_NAME", "calendar")
	viper.SetDefault("HTTP_HOST", "localhost")
	viper.SetDefault("HTTP_PORT", "8080")
	viper.SetDefault("DEBUG_PORT", "6060")
	viper.SetDefault("AUTH_SECRET", "change-me")
	viper.SetDefault("AUTH_TOKEN_TTL", "24h")
	viper.SetDefault("OTLP_ENDPOINT", "localhost:4317")
	viper.SetDefault("LOG_LEVEL", "info")

	level, err := zerolog.ParseLevel(viper.GetString("LOG_LEVEL"))
	if err != nil {
		level = zerolog.InfoLevel
	}

	logger := zerolog.New(os.Stdout).Level(level).With().
		Timestamp().
		Str("service", name).
		Str("version", version).
		Str("env", env).
		Logger()

	log.Logger = logger

	return logger.WithContext(ctx)
}

func TokenTTL() time.Duration {
	ttl := viper.GetDuration("AUTH_TOKEN_TTL")
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	return ttl
}
