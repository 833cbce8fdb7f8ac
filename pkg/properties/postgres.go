package properties

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	defaultPostgresTable       = "properties"
	defaultPostgresKeyColumn   = "key"
	defaultPostgresValueColumn = "value"
)

var validSSLModes = map[string]bool{
	"disable":     true,
	"allow":       true,
	"prefer":      true,
	"require":     true,
	"verify-ca":   true,
	"verify-full": true,
}

// PostgresConfig holds configuration options for a PostgreSQL property table.
type PostgresConfig struct {
	Host              string        `yaml:"host"`
	Port              uint16        `yaml:"port"`
	Database          string        `yaml:"database"`
	User              string        `yaml:"user"`
	Password          string        `yaml:"password"`
	SSLMode           string        `yaml:"ssl_mode,omitempty"`            // disable, allow, prefer, require, verify-ca, verify-full
	MaxConns          int32         `yaml:"max_conns,omitempty"`           // Maximum number of connections in the pool
	MinConns          int32         `yaml:"min_conns,omitempty"`           // Minimum number of connections in the pool
	MaxConnLifetime   time.Duration `yaml:"max_conn_lifetime,omitempty"`   // Maximum lifetime of a connection
	MaxConnIdleTime   time.Duration `yaml:"max_conn_idle_time,omitempty"`  // Maximum idle time of a connection
	HealthCheckPeriod time.Duration `yaml:"health_check_period,omitempty"` // Period between health checks
	Timeout           time.Duration `yaml:"timeout,omitempty"`             // Per lookup timeout
	Table             string        `yaml:"table,omitempty"`               // Optionally schema qualified, default "properties"
	KeyColumn         string        `yaml:"key_column,omitempty"`          // Default "key"
	ValueColumn       string        `yaml:"value_column,omitempty"`        // Default "value"
}

// Validate checks if the PostgresConfig has all required fields set
func (p PostgresConfig) Validate() error {
	if p.Host == "" {
		return errors.New("postgres host must be set and non-empty")
	}
	if p.Port == 0 {
		return errors.New("postgres port must be set and non-zero")
	}
	if p.Database == "" {
		return errors.New("postgres database must be set and non-empty")
	}
	if p.User == "" {
		return errors.New("postgres user must be set and non-empty")
	}
	if p.Password == "" {
		return errors.New("postgres password must be set and non-empty")
	}
	if p.SSLMode != "" && !validSSLModes[p.SSLMode] {
		return errors.Errorf("invalid ssl_mode %q, must be one of: disable, allow, prefer, require, verify-ca, verify-full", p.SSLMode)
	}

	if p.MaxConns < 0 {
		return errors.New("max_conns must be non-negative")
	}
	if p.MinConns < 0 {
		return errors.New("min_conns must be non-negative")
	}
	if p.MaxConns > 0 && p.MinConns > p.MaxConns {
		return errors.Errorf("min_conns (%d) cannot be greater than max_conns (%d)", p.MinConns, p.MaxConns)
	}
	if p.MaxConnLifetime < 0 {
		return errors.New("max_conn_lifetime must be non-negative")
	}
	if p.MaxConnIdleTime < 0 {
		return errors.New("max_conn_idle_time must be non-negative")
	}
	if p.HealthCheckPeriod < 0 {
		return errors.New("health_check_period must be non-negative")
	}
	if p.Timeout < 0 {
		return errors.New("timeout must be non-negative")
	}
	return nil
}

// CreateClient creates, configures and pings a PostgreSQL connection pool from this config.
// Implements the config.ClientFactory[*pgxpool.Pool] interface.
func (p PostgresConfig) CreateClient() (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(p.connectionString())
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse PostgreSQL connection string")
	}

	if p.MaxConns > 0 {
		poolConfig.MaxConns = p.MaxConns
	}
	if p.MinConns > 0 {
		poolConfig.MinConns = p.MinConns
	}
	if p.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = p.MaxConnLifetime
	}
	if p.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = p.MaxConnIdleTime
	}
	if p.HealthCheckPeriod > 0 {
		poolConfig.HealthCheckPeriod = p.HealthCheckPeriod
	}

	ctx, cancel := lookupContext(p.Timeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create PostgreSQL connection pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "failed to ping PostgreSQL database")
	}
	return pool, nil
}

func (p PostgresConfig) connectionString() string {
	sslMode := p.SSLMode
	if sslMode == "" {
		sslMode = "prefer"
	}
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		p.Host,
		p.Port,
		p.Database,
		p.User,
		p.Password,
		sslMode,
	)
}

// query builds the lookup statement with quoted identifiers.
func (p PostgresConfig) query() string {
	table := p.Table
	if table == "" {
		table = defaultPostgresTable
	}
	keyColumn := p.KeyColumn
	if keyColumn == "" {
		keyColumn = defaultPostgresKeyColumn
	}
	valueColumn := p.ValueColumn
	if valueColumn == "" {
		valueColumn = defaultPostgresValueColumn
	}
	return fmt.Sprintf(
		"SELECT %s FROM %s WHERE %s = $1",
		pgx.Identifier{valueColumn}.Sanitize(),
		pgx.Identifier(strings.Split(table, ".")).Sanitize(),
		pgx.Identifier{keyColumn}.Sanitize(),
	)
}

// RowQuerier is the part of *pgxpool.Pool used by Postgres.
type RowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Postgres reads properties from a key/value table. A NULL value reads as an empty, present
// property.
type Postgres struct {
	db      RowQuerier
	query   string
	timeout time.Duration
}

// NewPostgres queries db for the table and columns named in cfg.
func NewPostgres(db RowQuerier, cfg PostgresConfig) *Postgres {
	return &Postgres{db: db, query: cfg.query(), timeout: cfg.Timeout}
}

// Property selects the value column of the row whose key column equals key. A NULL value is
// present and empty.
func (p *Postgres) Property(key string) (string, bool) {
	ctx, cancel := lookupContext(p.timeout)
	defer cancel()

	var value *string
	err := p.db.QueryRow(ctx, p.query, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false
	}
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("PostgreSQL property lookup failed")
		return "", false
	}

	log.Debug().Str("key", key).Msg("Retrieved property from PostgreSQL")
	if value == nil {
		return "", true
	}
	return *value, true
}

// Close closes the underlying pool when it supports closing.
func (p *Postgres) Close() error {
	if closer, ok := p.db.(interface{ Close() }); ok {
		closer.Close()
	}
	return nil
}
