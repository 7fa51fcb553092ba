package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// parseEnv overlays environment variables. A .env file in the working
// directory (or its parent) is loaded first; it never overrides variables
// already present in the process environment.
func parseEnv(c *Config) error {
	_ = godotenv.Load(".env")
	_ = godotenv.Load("../.env")

	envString(&c.HTTPAddr, "HTTP_ADDR")
	envString(&c.GRPCHealthAddr, "GRPC_HEALTH_ADDR")
	envString(&c.Env, "APP_ENV")
	envString(&c.LogLevel, "LOG_LEVEL")
	envString(&c.LogFormat, "LOG_FORMAT")
	envString(&c.BrandName, "BRAND_NAME")
	envString(&c.PublicBaseURL, "PUBLIC_BASE_URL")

	envString(&c.SecretKey, "JWT_SECRET")
	envString(&c.AdminPassword, "ADMIN_PASSWORD")
	if v := lookupEnv("ADMIN_OTP_RECIPIENTS"); v != "" {
		c.OTPRecipients = SplitList(v)
	}
	if err := envBool(&c.OTPRequired, "ADMIN_OTP_REQUIRED"); err != nil {
		return err
	}
	if err := envDuration(&c.PreAuthTokenValidityDuration, "PRE_AUTH_TOKEN_TTL"); err != nil {
		return err
	}
	if err := envDuration(&c.OTPTokenValidityDuration, "OTP_TOKEN_TTL"); err != nil {
		return err
	}
	if err := envDuration(&c.SessionValidityDuration, "SESSION_TTL"); err != nil {
		return err
	}
	if err := envBool(&c.AllowManualVerify, "ALLOW_MANUAL_VERIFY"); err != nil {
		return err
	}

	envString(&c.StoreDriver, "STORE_DRIVER")
	envString(&c.DatabaseDSN, "DATABASE_DSN")
	envString(&c.S3RootUser, "S3_ROOT_USER")
	envString(&c.S3RootPassword, "S3_ROOT_PASSWORD")
	envString(&c.S3Bucket, "S3_BUCKET")
	envString(&c.S3Region, "S3_REGION")
	envString(&c.S3BaseEndpoint, "S3_BASE_ENDPOINT")
	envString(&c.S3Prefix, "S3_PREFIX")

	envString(&c.SMTPHost, "EMAIL_HOST")
	if v := lookupEnv("EMAIL_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: invalid EMAIL_PORT: %w", err)
		}
		c.SMTPPort = port
	}
	envString(&c.SMTPUser, "EMAIL_USER")
	envString(&c.SMTPPassword, "EMAIL_PASS")
	envString(&c.SMTPFrom, "EMAIL_FROM")

	if v := lookupEnv("KAFKA_BROKERS"); v != "" {
		c.KafkaBrokers = SplitList(v)
	}
	envString(&c.KafkaTopic, "KAFKA_TOPIC_TICKET")
	return nil
}

// SplitList splits "a, b,,c" into [a b c].
func SplitList(s string) []string {
	var out []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func lookupEnv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func envString(dst *string, key string) {
	if v := lookupEnv(key); v != "" {
		*dst = v
	}
}

func envBool(dst *bool, key string) error {
	v := lookupEnv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("config: invalid %s: %w", key, err)
	}
	*dst = b
	return nil
}

func envDuration(dst *time.Duration, key string) error {
	v := lookupEnv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("config: invalid %s: %w", key, err)
	}
	*dst = d
	return nil
}
