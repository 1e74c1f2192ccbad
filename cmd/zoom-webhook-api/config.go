// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/linuxfoundation/lfx-v2-zoom-webhook-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-zoom-webhook-service/internal/infrastructure/messaging"
	"github.com/linuxfoundation/lfx-v2-zoom-webhook-service/internal/infrastructure/webhook"
	"github.com/linuxfoundation/lfx-v2-zoom-webhook-service/internal/middleware"
)

// Storage backends for the config entries and the replay cache.
const (
	storeNATS   = "nats"
	storeMemory = "memory"
)

const (
	defaultPort        = "8080"
	defaultWebhookPath = "/webhooks/zoom"
	defaultEntryName   = "default"
)

// flags are the command line flags for the zoom webhook service.
type flags struct {
	Debug   bool
	Port    string
	Bind    string
	EnvFile string
}

// environment are the environment variables for the zoom webhook service.
type environment struct {
	Port          string
	WebhookPath   string
	MaxAge        time.Duration
	MaxBodyBytes  int64
	SubjectPrefix string
	EventEncoding messaging.Encoding
	Store         string
	ReplayCache   bool
	// Seeds are the config entries registered at startup.
	Seeds []models.CreateConfigEntryRequest
	NATS  natsConfig
}

// natsConfig holds the NATS connection settings
type natsConfig struct {
	URL           string
	Timeout       time.Duration
	MaxReconnect  int
	ReconnectWait time.Duration
}

// entriesFile is the layout of the YAML file named by ZOOM_WEBHOOK_ENTRIES.
type entriesFile struct {
	Entries []models.CreateConfigEntryRequest `yaml:"entries"`
}

// parseFlags parses command line flags for the zoom webhook service
func parseFlags(args []string) (flags, error) {
	fs := flag.NewFlagSet("zoom-webhook-api", flag.ContinueOnError)
	debug := fs.Bool("d", false, "enable debug logging")
	port := fs.String("p", "", "listen port (default $PORT or "+defaultPort+")")
	bind := fs.String("bind", "*", "interface to bind on")
	envFile := fs.String("env-file", "", "load environment variables from a dotenv file")

	if err := fs.Parse(args); err != nil {
		return flags{}, err
	}

	// Based on the debug flag, set the log level environment variable used by [logging.InitStructureLogConfig]
	if *debug {
		if err := os.Setenv("LOG_LEVEL", "debug"); err != nil {
			return flags{}, fmt.Errorf("error setting log level: %w", err)
		}
	}

	return flags{
		Debug:   *debug,
		Port:    *port,
		Bind:    *bind,
		EnvFile: *envFile,
	}, nil
}

// loadEnvFile loads a dotenv file. Variables already set in the environment win.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("error loading env file %q: %w", path, err)
	}
	return nil
}

// parseEnv parses environment variables for the zoom webhook service
func parseEnv() (environment, error) {
	var errs []error

	env := environment{
		Port:          getEnv("PORT", defaultPort),
		WebhookPath:   getEnv("ZOOM_WEBHOOK_PATH", defaultWebhookPath),
		SubjectPrefix: getEnv("ZOOM_WEBHOOK_SUBJECT_PREFIX", models.DefaultZoomWebhookSubjectPrefix),
		Store:         strings.ToLower(getEnv("ZOOM_WEBHOOK_STORE", storeNATS)),
		ReplayCache:   os.Getenv("ZOOM_WEBHOOK_REPLAY_CACHE") == "true",
		NATS: natsConfig{
			URL: getEnv("NATS_URL", "nats://localhost:4222"),
		},
	}

	if !strings.HasPrefix(env.WebhookPath, "/") {
		errs = append(errs, fmt.Errorf("ZOOM_WEBHOOK_PATH must start with '/', got %q", env.WebhookPath))
	}

	var err error
	if env.MaxAge, err = durationEnv("ZOOM_WEBHOOK_MAX_AGE", webhook.DefaultMaxAge); err != nil {
		errs = append(errs, err)
	}
	if env.MaxBodyBytes, err = int64Env("ZOOM_WEBHOOK_MAX_BODY_BYTES", middleware.DefaultMaxWebhookBodyBytes); err != nil {
		errs = append(errs, err)
	}
	if env.EventEncoding, err = messaging.ParseEncoding(os.Getenv("ZOOM_WEBHOOK_EVENT_ENCODING")); err != nil {
		errs = append(errs, fmt.Errorf("ZOOM_WEBHOOK_EVENT_ENCODING: %w", err))
	}
	if env.Store != storeNATS && env.Store != storeMemory {
		errs = append(errs, fmt.Errorf("ZOOM_WEBHOOK_STORE must be %q or %q, got %q", storeNATS, storeMemory, env.Store))
	}

	if env.NATS.Timeout, err = durationEnv("NATS_TIMEOUT", 10*time.Second); err != nil {
		errs = append(errs, err)
	}
	if env.NATS.ReconnectWait, err = durationEnv("NATS_RECONNECT_WAIT", 2*time.Second); err != nil {
		errs = append(errs, err)
	}
	maxReconnect, err := int64Env("NATS_MAX_RECONNECT", 3)
	if err != nil {
		errs = append(errs, err)
	}
	env.NATS.MaxReconnect = int(maxReconnect)

	if env.Seeds, err = parseSeeds(); err != nil {
		errs = append(errs, err)
	}

	return env, errors.Join(errs...)
}

// parseSeeds collects the config entries from ZOOM_WEBHOOK_ENTRIES and the
// ZOOM_WEBHOOK_SECRET_TOKEN shortcut. Names must be unique.
func parseSeeds() ([]models.CreateConfigEntryRequest, error) {
	var seeds []models.CreateConfigEntryRequest

	if path := os.Getenv("ZOOM_WEBHOOK_ENTRIES"); path != "" {
		fromFile, err := loadEntriesFile(path)
		if err != nil {
			return nil, err
		}
		seeds = append(seeds, fromFile...)
	}

	if secret := os.Getenv("ZOOM_WEBHOOK_SECRET_TOKEN"); secret != "" {
		seeds = append(seeds, models.CreateConfigEntryRequest{
			Name:        getEnv("ZOOM_WEBHOOK_ENTRY_NAME", defaultEntryName),
			SecretToken: secret,
		})
	}

	seen := make(map[string]bool, len(seeds))
	for i, seed := range seeds {
		name := strings.TrimSpace(seed.Name)
		if name == "" {
			return nil, fmt.Errorf("config entry %d: name is required", i)
		}
		if seed.SecretToken == "" {
			return nil, fmt.Errorf("config entry %q: secret_token is required", name)
		}
		key := strings.ToLower(name)
		if seen[key] {
			return nil, fmt.Errorf("config entry %q is defined more than once", name)
		}
		seen[key] = true
		seeds[i].Name = name
	}

	return seeds, nil
}

// loadEntriesFile reads the YAML entries file. ${VAR} references are expanded from the
// environment so that secrets need not be written to the file.
func loadEntriesFile(path string) ([]models.CreateConfigEntryRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading entries file %q: %w", path, err)
	}

	var file entriesFile
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &file); err != nil {
		return nil, fmt.Errorf("error parsing entries file %q: %w", path, err)
	}
	return file.Entries, nil
}

func getEnv(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

func durationEnv(name string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", name, raw)
	}
	return d, nil
}

func int64Env(name string, fallback int64) (int64, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return n, nil
}

// logEnvironment logs the effective configuration without secrets.
func logEnvironment(env environment) {
	slog.With(
		"webhook_path", env.WebhookPath,
		"max_age", env.MaxAge.String(),
		"max_body_bytes", env.MaxBodyBytes,
		"subject_prefix", env.SubjectPrefix,
		"event_encoding", string(env.EventEncoding),
		"store", env.Store,
		"replay_cache", env.ReplayCache,
		"seeded_entries", len(env.Seeds),
		"nats_url", env.NATS.URL,
	).Info("zoom webhook service configuration")
}
