package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"s3cleanup/internal/errs"
)

const (
	ProviderS3    = "s3"
	ProviderMinIO = "minio"

	MissingBucketSkip = "skip"
	MissingBucketFail = "fail"

	DefaultSessionName  = "s3cleanup"
	DefaultPreviewCount = 10
)

type Config struct {
	Provider  string
	ApiURL    string
	AccessKey string
	SecretKey string
	Region    string

	SessionName   string
	NoSession     bool
	MissingBucket string
	PreviewCount  int

	LogLevel  string
	LogFormat string

	// envErrs holds environment values that failed to parse. Validate
	// reports them unless a flag has replaced the value since.
	envErrs map[string]error
}

// deferredKeys fixes the order unparsable environment values are reported in.
var deferredKeys = []string{"PREVIEW_COUNT", "NO_SESSION"}

// Load reads the configuration from .env and the environment. Nothing is
// validated here, so flags can still fix a bad value and commands that need
// none of it keep working; call Validate once flags are applied.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Warn(".env file not found, using environment variables only")
	}

	envErrs := map[string]error{}
	previewCount, err := getEnvInt("PREVIEW_COUNT", DefaultPreviewCount)
	if err != nil {
		envErrs["PREVIEW_COUNT"] = err
	}
	noSession, err := getEnvBool("NO_SESSION", false)
	if err != nil {
		envErrs["NO_SESSION"] = err
	}

	return &Config{
		Provider:      strings.ToLower(getEnv("PROVIDER", ProviderS3)),
		ApiURL:        getEnv("API_URL", ""),
		AccessKey:     getEnv("ACCESS_KEY", ""),
		SecretKey:     getEnv("SECRET_KEY", ""),
		Region:        getEnv("REGION", ""),
		SessionName:   getEnv("SESSION_NAME", DefaultSessionName),
		NoSession:     noSession,
		MissingBucket: strings.ToLower(getEnv("MISSING_BUCKET", MissingBucketSkip)),
		PreviewCount:  previewCount,
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFormat:     getEnv("LOG_FORMAT", "console"),
		envErrs:       envErrs,
	}, nil
}

// Override records that a flag replaced the environment value for key.
func (c *Config) Override(key string) {
	delete(c.envErrs, key)
}

// Validate checks everything a cleanup run needs, after flags are applied.
func (c *Config) Validate() error {
	for _, key := range deferredKeys {
		if err := c.envErrs[key]; err != nil {
			return err
		}
	}
	if err := c.ValidateProvider(); err != nil {
		return err
	}

	switch c.MissingBucket {
	case MissingBucketSkip, MissingBucketFail:
	default:
		return errs.New(errs.KindInvalidInput, fmt.Sprintf("unknown missing-bucket policy %q (want %s or %s)", c.MissingBucket, MissingBucketSkip, MissingBucketFail))
	}

	if c.PreviewCount <= 0 {
		return errs.New(errs.KindInvalidInput, "preview count must be greater than 0")
	}
	return c.ValidateSession()
}

// ValidateProvider checks only what connecting to the provider needs.
func (c *Config) ValidateProvider() error {
	switch c.Provider {
	case ProviderS3, ProviderMinIO:
	default:
		return errs.New(errs.KindInvalidInput, fmt.Sprintf("unknown provider %q (want %s or %s)", c.Provider, ProviderS3, ProviderMinIO))
	}
	if c.Provider == ProviderMinIO && c.ApiURL == "" {
		return errs.New(errs.KindInvalidInput, "API_URL is required for the minio provider")
	}
	return nil
}

func (c *Config) ValidateSession() error {
	if strings.TrimSpace(c.SessionName) == "" {
		return errs.New(errs.KindInvalidInput, "session name must not be empty")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, errs.Wrap(errs.KindInvalidInput, fmt.Sprintf("%s must be an integer", key), err)
	}
	return n, nil
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, errs.Wrap(errs.KindInvalidInput, fmt.Sprintf("%s must be a boolean", key), err)
	}
	return b, nil
}
