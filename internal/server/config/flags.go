package config

import (
	"fmt"

	"github.com/spf13/pflag"
)

// RegisterFlags declares the server flags on fs. Defaults are left zero:
// only flags the user explicitly sets override file and environment values.
//
// Supported flags (short forms):
//
//	-c string   config file (.json, .yaml, .yml)
//	-a string   HTTP bind address (e.g., ":8080")
//	-g string   gRPC health bind address
//	-d string   database DSN
//	-s string   JWT HMAC secret key
//	    string  store driver (memory, postgres, sqlite, s3)
//	-l string   log level
func RegisterFlags(fs *pflag.FlagSet) {
	fs.StringP("config", "c", "", "path to config file (.json, .yaml, .yml)")
	fs.StringP("http-addr", "a", "", "address and port to run the HTTP server")
	fs.StringP("grpc-health-addr", "g", "", "address and port for the gRPC health endpoint")
	fs.StringP("database-dsn", "d", "", "database DSN")
	fs.StringP("secret-key", "s", "", "JWT secret key")
	fs.String("store", "", "store driver: memory, postgres, sqlite or s3")
	fs.StringP("log-level", "l", "", "log level: debug, info, warn, error")
	fs.String("log-format", "", "log format: json or text")
	fs.Int("session-ttl", 0, "session token validity (in minutes)")
	fs.StringSlice("otp-recipient", nil, "email address allowed to receive login codes (repeatable)")
}

// applyFlags copies every flag that was explicitly set on fs into c.
// Flags that were never registered are ignored.
func applyFlags(c *Config, fs *pflag.FlagSet) error {
	strs := map[string]*string{
		"http-addr":        &c.HTTPAddr,
		"grpc-health-addr": &c.GRPCHealthAddr,
		"database-dsn":     &c.DatabaseDSN,
		"secret-key":       &c.SecretKey,
		"store":            &c.StoreDriver,
		"log-level":        &c.LogLevel,
		"log-format":       &c.LogFormat,
	}
	for name, dst := range strs {
		if !changed(fs, name) {
			continue
		}
		v, err := fs.GetString(name)
		if err != nil {
			return fmt.Errorf("config: flag %s: %w", name, err)
		}
		*dst = v
	}

	if changed(fs, "session-ttl") {
		minutes, err := fs.GetInt("session-ttl")
		if err != nil {
			return fmt.Errorf("config: flag session-ttl: %w", err)
		}
		c.SessionValidityDuration = minutesToDuration(minutes)
	}
	if changed(fs, "otp-recipient") {
		list, err := fs.GetStringSlice("otp-recipient")
		if err != nil {
			return fmt.Errorf("config: flag otp-recipient: %w", err)
		}
		c.OTPRecipients = list
	}
	return nil
}

func changed(fs *pflag.FlagSet, name string) bool {
	f := fs.Lookup(name)
	return f != nil && f.Changed
}
