package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/davidmoltin/efiling-workflows/pkg/config"
	"github.com/davidmoltin/efiling-workflows/pkg/logger"
	_ "github.com/lib/pq"
	"github.com/sony/gobreaker"
)

// connectBackoff is the wait between connection attempts
var connectBackoff = []time.Duration{
	1 * time.Second,
	2 * time.Second,
	5 * time.Second,
	10 * time.Second,
}

// PostgresDB wraps the connection pool. Every statement and every
// transaction begin goes through a circuit breaker so a flapping
// database fails fast instead of piling up blocked requests.
type PostgresDB struct {
	DB             *sql.DB
	circuitBreaker *gobreaker.CircuitBreaker
	logger         *logger.Logger
}

// NewPostgresDB opens the pool and pings it, retrying on the backoff schedule
func NewPostgresDB(cfg *config.Config, log *logger.Logger) (*PostgresDB, error) {
	dsn := cfg.DatabaseDSN()

	var db *sql.DB
	var err error

	for attempt := 0; attempt < len(connectBackoff); attempt++ {
		db, err = sql.Open("postgres", dsn)
		if err == nil {
			db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
			db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
			db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err = db.PingContext(ctx)
			cancel()

			if err == nil {
				log.Info("PostgreSQL connection established",
					logger.String("host", cfg.Database.Host),
					logger.Int("port", cfg.Database.Port),
					logger.String("database", cfg.Database.Database),
					logger.Int("attempt", attempt+1),
				)
				return NewPostgresDBFromConn(db, log), nil
			}
			db.Close()
		}

		log.Warnf("Database connection attempt %d/%d failed: %v", attempt+1, len(connectBackoff), err)
		if attempt < len(connectBackoff)-1 {
			time.Sleep(connectBackoff[attempt])
		}
	}

	return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", len(connectBackoff), err)
}

// NewPostgresDBFromConn wraps an already opened pool
func NewPostgresDBFromConn(db *sql.DB, log *logger.Logger) *PostgresDB {
	return &PostgresDB{
		DB:             db,
		circuitBreaker: newCircuitBreaker(log),
		logger:         log,
	}
}

func newCircuitBreaker(log *logger.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "postgres",
		MaxRequests: 3,
		Interval:    10 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			shouldTrip := counts.Requests >= 3 && failureRatio >= 0.6
			if shouldTrip {
				log.Errorf("Circuit breaker tripping: requests=%d, failures=%d, ratio=%.2f",
					counts.Requests, counts.TotalFailures, failureRatio)
			}
			return shouldTrip
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warnf("Circuit breaker %s state changed: %s -> %s", name, from.String(), to.String())
		},
		// Domain errors such as no rows or a unique violation mean the
		// database answered; only infrastructure errors count.
		IsSuccessful: func(err error) bool {
			return err == nil || err == sql.ErrNoRows || !IsConnectionError(err)
		},
	})
}

// Close closes the database connection
func (p *PostgresDB) Close() error {
	return p.DB.Close()
}

// HealthCheck pings the database, bypassing the breaker
func (p *PostgresDB) HealthCheck(ctx context.Context) error {
	return p.DB.PingContext(ctx)
}

// Stats returns database statistics
func (p *PostgresDB) Stats() sql.DBStats {
	return p.DB.Stats()
}

// BeginTx starts a transaction with circuit breaker protection
func (p *PostgresDB) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	result, err := p.circuitBreaker.Execute(func() (interface{}, error) {
		return p.DB.BeginTx(ctx, opts)
	})
	if err != nil {
		return nil, err
	}
	return result.(*sql.Tx), nil
}

// ExecContext executes a statement with circuit breaker protection
func (p *PostgresDB) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	result, err := p.circuitBreaker.Execute(func() (interface{}, error) {
		return p.DB.ExecContext(ctx, query, args...)
	})
	if err != nil {
		return nil, err
	}
	return result.(sql.Result), nil
}

// QueryContext executes a query with circuit breaker protection
func (p *PostgresDB) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	result, err := p.circuitBreaker.Execute(func() (interface{}, error) {
		return p.DB.QueryContext(ctx, query, args...)
	})
	if err != nil {
		return nil, err
	}
	return result.(*sql.Rows), nil
}

// QueryRowContext defers its error to Scan, so it skips the breaker
func (p *PostgresDB) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return p.DB.QueryRowContext(ctx, query, args...)
}

// CircuitBreakerState returns the current state of the circuit breaker
func (p *PostgresDB) CircuitBreakerState() gobreaker.State {
	return p.circuitBreaker.State()
}

// IsCircuitBreakerOpen returns true if the circuit breaker is open
func (p *PostgresDB) IsCircuitBreakerOpen() bool {
	return p.circuitBreaker.State() == gobreaker.StateOpen
}
