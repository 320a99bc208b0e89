package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Conduit/internal/artifacts"
	"github.com/shaiso/Conduit/internal/mq"
	"github.com/shaiso/Conduit/internal/store"
)

// Виды artifact store.
const (
	ArtifactStoreLocal = "local"
	ArtifactStoreMinIO = "minio"
)

// ErrInvalidConfig — переменная окружения задана с неверным значением.
var ErrInvalidConfig = errors.New("invalid configuration")

// Проект и пользователь по умолчанию, когда CONDUIT_PROJECT_ID / CONDUIT_USER_ID не заданы.
var (
	DefaultProjectID = uuid.NewSHA1(uuid.NameSpaceURL, []byte("conduit:project:default"))
	DefaultUserID    = uuid.NewSHA1(uuid.NameSpaceURL, []byte("conduit:user:default"))
)

// Config — настройки процессов Conduit из переменных окружения.
type Config struct {
	// Metadata store (HTTP API)
	StoreURL     string        // CONDUIT_STORE_URL
	StoreToken   string        // CONDUIT_STORE_TOKEN, он же токен сервера
	StoreTimeout time.Duration // CONDUIT_STORE_TIMEOUT

	// DatabaseURL — DSN PostgreSQL для conduit-server. DB_URL
	DatabaseURL string

	// RabbitMQURL — брокер для step operator "queue". RABBITMQ_URL
	RabbitMQURL       string
	RabbitMQHeartbeat time.Duration // RABBITMQ_HEARTBEAT

	// Artifact store
	ArtifactStore   string // CONDUIT_ARTIFACT_STORE: local | minio
	ArtifactPath    string // CONDUIT_ARTIFACT_PATH (для local)
	ArtifactStoreID string // CONDUIT_ARTIFACT_STORE_ID
	MinIO           artifacts.MinIOConfig

	// Identity
	ProjectID uuid.UUID // CONDUIT_PROJECT_ID
	UserID    uuid.UUID // CONDUIT_USER_ID

	// Ports
	APIPort    string // API_PORT
	WorkerPort string // WORKER_PORT

	// OperatorTimeout — сколько launcher ждёт результата от conduit-operator.
	OperatorTimeout time.Duration // CONDUIT_OPERATOR_TIMEOUT

	// Parallelism — одновременные шаги в conduit run.
	Parallelism int // CONDUIT_PARALLELISM
}

// FromEnv читает конфигурацию из окружения процесса.
func FromEnv() (*Config, error) {
	return fromLookup(os.LookupEnv)
}

// fromLookup читает конфигурацию через lookup (для тестов).
func fromLookup(lookup func(string) (string, bool)) (*Config, error) {
	get := func(key, def string) string {
		if v, ok := lookup(key); ok && v != "" {
			return v
		}
		return def
	}

	cfg := &Config{
		StoreURL:        get("CONDUIT_STORE_URL", "http://localhost:8080"),
		StoreToken:      get("CONDUIT_STORE_TOKEN", ""),
		DatabaseURL:     get("DB_URL", ""),
		RabbitMQURL:     get("RABBITMQ_URL", ""),
		ArtifactStore:   get("CONDUIT_ARTIFACT_STORE", ArtifactStoreLocal),
		ArtifactPath:    get("CONDUIT_ARTIFACT_PATH", defaultArtifactPath()),
		ArtifactStoreID: get("CONDUIT_ARTIFACT_STORE_ID", ""),
		APIPort:         get("API_PORT", "8080"),
		WorkerPort:      get("WORKER_PORT", "8082"),
		MinIO: artifacts.MinIOConfig{
			Endpoint:  get("MINIO_ENDPOINT", ""),
			AccessKey: get("MINIO_ACCESS_KEY", ""),
			SecretKey: get("MINIO_SECRET_KEY", ""),
			Region:    get("MINIO_REGION", ""),
			Bucket:    get("MINIO_BUCKET", "conduit-artifacts"),
			Prefix:    get("MINIO_PREFIX", ""),
		},
	}
	cfg.MinIO.StoreID = cfg.ArtifactStoreID

	var err error
	if cfg.StoreTimeout, err = parseDuration(get("CONDUIT_STORE_TIMEOUT", "30s"), "CONDUIT_STORE_TIMEOUT"); err != nil {
		return nil, err
	}
	if cfg.RabbitMQHeartbeat, err = parseDuration(get("RABBITMQ_HEARTBEAT", "10s"), "RABBITMQ_HEARTBEAT"); err != nil {
		return nil, err
	}
	if cfg.OperatorTimeout, err = parseDuration(get("CONDUIT_OPERATOR_TIMEOUT", "2h"), "CONDUIT_OPERATOR_TIMEOUT"); err != nil {
		return nil, err
	}
	if cfg.MinIO.UseSSL, err = parseBool(get("MINIO_USE_SSL", "false"), "MINIO_USE_SSL"); err != nil {
		return nil, err
	}
	if cfg.Parallelism, err = strconv.Atoi(get("CONDUIT_PARALLELISM", "1")); err != nil || cfg.Parallelism < 1 {
		return nil, fmt.Errorf("%w: CONDUIT_PARALLELISM must be a positive integer", ErrInvalidConfig)
	}
	if cfg.ProjectID, err = parseUUID(get("CONDUIT_PROJECT_ID", DefaultProjectID.String()), "CONDUIT_PROJECT_ID"); err != nil {
		return nil, err
	}
	if cfg.UserID, err = parseUUID(get("CONDUIT_USER_ID", DefaultUserID.String()), "CONDUIT_USER_ID"); err != nil {
		return nil, err
	}

	switch cfg.ArtifactStore {
	case ArtifactStoreLocal, ArtifactStoreMinIO:
	default:
		return nil, fmt.Errorf("%w: CONDUIT_ARTIFACT_STORE must be %q or %q, got %q",
			ErrInvalidConfig, ArtifactStoreLocal, ArtifactStoreMinIO, cfg.ArtifactStore)
	}

	return cfg, nil
}

// StoreClient создаёт HTTP клиент metadata store.
func (c *Config) StoreClient() *store.Client {
	return store.NewClient(store.ClientConfig{
		BaseURL:   c.StoreURL,
		Token:     c.StoreToken,
		Timeout:   c.StoreTimeout,
		ProjectID: c.ProjectID,
	})
}

// MQConnection — параметры соединения с брокером для процесса name
// (mq.ConnectionLauncher или mq.ConnectionOperator).
func (c *Config) MQConnection(name string, logger *slog.Logger) mq.ConnectionConfig {
	return mq.ConnectionConfig{
		URL:       c.RabbitMQURL,
		Name:      name,
		Heartbeat: c.RabbitMQHeartbeat,
		Logger:    logger,
	}
}

// OpenArtifactStore открывает настроенный artifact store.
func (c *Config) OpenArtifactStore(ctx context.Context) (artifacts.Store, error) {
	if c.ArtifactStore == ArtifactStoreMinIO {
		s, err := artifacts.NewMinIOStore(ctx, c.MinIO)
		if err != nil {
			return nil, fmt.Errorf("open minio artifact store: %w", err)
		}
		return s, nil
	}

	s, err := artifacts.NewLocalStore(c.ArtifactStoreID, c.ArtifactPath)
	if err != nil {
		return nil, fmt.Errorf("open local artifact store: %w", err)
	}
	return s, nil
}

func defaultArtifactPath() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".conduit", "artifacts")
	}
	return filepath.Join(os.TempDir(), "conduit-artifacts")
}

func parseDuration(s, name string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%w: %s must be a positive duration, got %q", ErrInvalidConfig, name, s)
	}
	return d, nil
}

func parseBool(s, name string) (bool, error) {
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("%w: %s must be a boolean, got %q", ErrInvalidConfig, name, s)
	}
	return b, nil
}

func parseUUID(s, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %s must be a UUID, got %q", ErrInvalidConfig, name, s)
	}
	return id, nil
}
