package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// FileConfig is the on-disk shape of the configuration. Pointer fields tell
// "absent" apart from zero values so a partial file only overrides what it
// names.
type FileConfig struct {
	HTTPAddr       *string `json:"http_addr" yaml:"http_addr"`
	GRPCHealthAddr *string `json:"grpc_health_addr" yaml:"grpc_health_addr"`
	Env            *string `json:"env" yaml:"env"`
	LogLevel       *string `json:"log_level" yaml:"log_level"`
	LogFormat      *string `json:"log_format" yaml:"log_format"`
	BrandName      *string `json:"brand_name" yaml:"brand_name"`
	PublicBaseURL  *string `json:"public_base_url" yaml:"public_base_url"`

	SecretKey                    *string   `json:"secret_key" yaml:"secret_key"`
	AdminPassword                *string   `json:"admin_password" yaml:"admin_password"`
	OTPRecipients                []string  `json:"otp_recipients" yaml:"otp_recipients"`
	OTPRequired                  *bool     `json:"otp_required" yaml:"otp_required"`
	PreAuthTokenValidityDuration *Duration `json:"pre_auth_token_validity_duration" yaml:"pre_auth_token_validity_duration"`
	OTPTokenValidityDuration     *Duration `json:"otp_token_validity_duration" yaml:"otp_token_validity_duration"`
	SessionValidityDuration      *Duration `json:"session_validity_duration" yaml:"session_validity_duration"`
	AllowManualVerify            *bool     `json:"allow_manual_verify" yaml:"allow_manual_verify"`

	StoreDriver    *string `json:"store_driver" yaml:"store_driver"`
	DatabaseDSN    *string `json:"database_dsn" yaml:"database_dsn"`
	S3RootUser     *string `json:"s3_root_user" yaml:"s3_root_user"`
	S3RootPassword *string `json:"s3_root_password" yaml:"s3_root_password"`
	S3Bucket       *string `json:"s3_bucket" yaml:"s3_bucket"`
	S3Region       *string `json:"s3_region" yaml:"s3_region"`
	S3BaseEndpoint *string `json:"s3_base_endpoint" yaml:"s3_base_endpoint"`
	S3Prefix       *string `json:"s3_prefix" yaml:"s3_prefix"`

	SMTPHost     *string `json:"smtp_host" yaml:"smtp_host"`
	SMTPPort     *int    `json:"smtp_port" yaml:"smtp_port"`
	SMTPUser     *string `json:"smtp_user" yaml:"smtp_user"`
	SMTPPassword *string `json:"smtp_password" yaml:"smtp_password"`
	SMTPFrom     *string `json:"smtp_from" yaml:"smtp_from"`

	KafkaBrokers []string `json:"kafka_brokers" yaml:"kafka_brokers"`
	KafkaTopic   *string  `json:"kafka_topic" yaml:"kafka_topic"`
}

// parseFile loads path (JSON, or YAML for .yaml/.yml) and copies every
// field it sets into config.
func parseFile(config *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	fc := &FileConfig{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, fc)
	default:
		err = json.Unmarshal(data, fc)
	}
	if err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}

	fc.apply(config)
	return nil
}

func (fc *FileConfig) apply(c *Config) {
	setString(&c.HTTPAddr, fc.HTTPAddr)
	setString(&c.GRPCHealthAddr, fc.GRPCHealthAddr)
	setString(&c.Env, fc.Env)
	setString(&c.LogLevel, fc.LogLevel)
	setString(&c.LogFormat, fc.LogFormat)
	setString(&c.BrandName, fc.BrandName)
	setString(&c.PublicBaseURL, fc.PublicBaseURL)

	setString(&c.SecretKey, fc.SecretKey)
	setString(&c.AdminPassword, fc.AdminPassword)
	if fc.OTPRecipients != nil {
		c.OTPRecipients = fc.OTPRecipients
	}
	if fc.OTPRequired != nil {
		c.OTPRequired = *fc.OTPRequired
	}
	if fc.PreAuthTokenValidityDuration != nil {
		c.PreAuthTokenValidityDuration = fc.PreAuthTokenValidityDuration.Duration
	}
	if fc.OTPTokenValidityDuration != nil {
		c.OTPTokenValidityDuration = fc.OTPTokenValidityDuration.Duration
	}
	if fc.SessionValidityDuration != nil {
		c.SessionValidityDuration = fc.SessionValidityDuration.Duration
	}
	if fc.AllowManualVerify != nil {
		c.AllowManualVerify = *fc.AllowManualVerify
	}

	setString(&c.StoreDriver, fc.StoreDriver)
	setString(&c.DatabaseDSN, fc.DatabaseDSN)
	setString(&c.S3RootUser, fc.S3RootUser)
	setString(&c.S3RootPassword, fc.S3RootPassword)
	setString(&c.S3Bucket, fc.S3Bucket)
	setString(&c.S3Region, fc.S3Region)
	setString(&c.S3BaseEndpoint, fc.S3BaseEndpoint)
	setString(&c.S3Prefix, fc.S3Prefix)

	setString(&c.SMTPHost, fc.SMTPHost)
	if fc.SMTPPort != nil {
		c.SMTPPort = *fc.SMTPPort
	}
	setString(&c.SMTPUser, fc.SMTPUser)
	setString(&c.SMTPPassword, fc.SMTPPassword)
	setString(&c.SMTPFrom, fc.SMTPFrom)

	if fc.KafkaBrokers != nil {
		c.KafkaBrokers = fc.KafkaBrokers
	}
	setString(&c.KafkaTopic, fc.KafkaTopic)
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
