package warehouse

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ClickHouse/ch-go"
	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/KI7MT/ki7mt-ssi-apps/internal/common"
)

// Record is one catalog row.
type Record struct {
	Name            string
	NT              uint32
	NW              uint32
	TimeIndependent bool
	Attrs           map[string]string
	LoadedAt        time.Time
}

// Warehouse holds the two connections: clickhouse-go for DDL and the
// catalog, ch-go for native spectrum blocks.
type Warehouse struct {
	db        string
	conn      driver.Conn
	native    *ch.Client
	batchSize int
	logger    *slog.Logger
}

// Open connects and pings both clients.
func Open(ctx context.Context, cfg common.ClickHouseConfig, logger *slog.Logger) (*Warehouse, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("connecting to clickhouse", slog.String("addr", cfg.Addr()), slog.String("database", cfg.Database))

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr()},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.User,
			Password: cfg.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
		MaxOpenConns:    2,
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Hour,
	})
	if err != nil {
		return nil, fmt.Errorf("clickhouse connection failed: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("clickhouse ping failed: %w", err)
	}

	native, err := ch.Dial(ctx, ch.Options{
		Address:     cfg.Addr(),
		Database:    cfg.Database,
		User:        cfg.User,
		Password:    cfg.Password,
		Compression: ch.CompressionLZ4,
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("clickhouse native connection failed: %w", err)
	}

	return &Warehouse{
		db:        cfg.Database,
		conn:      conn,
		native:    native,
		batchSize: cfg.BatchSize,
		logger:    logger,
	}, nil
}

// Close closes both connections.
func (w *Warehouse) Close() error {
	return errors.Join(w.native.Close(), w.conn.Close())
}

// EnsureSchema creates the database and both tables if missing.
func (w *Warehouse) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", w.db),
		DatasetsDDL(w.db),
		SpectrumDDL(w.db),
	}
	for _, s := range stmts {
		if err := w.conn.Exec(ctx, s); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// PutDataset inserts one catalog row.
func (w *Warehouse) PutDataset(ctx context.Context, rec Record) error {
	batch, err := w.conn.PrepareBatch(ctx, fmt.Sprintf("INSERT INTO %s", fqn(w.db, DatasetsTable)))
	if err != nil {
		return fmt.Errorf("prepare catalog batch: %w", err)
	}
	if err := batch.Append(rec.Name, rec.NT, rec.NW, rec.TimeIndependent, rec.Attrs, rec.LoadedAt); err != nil {
		batch.Abort()
		return fmt.Errorf("append catalog row %s: %w", rec.Name, err)
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("send catalog row %s: %w", rec.Name, err)
	}
	return nil
}

// Datasets lists the latest catalog row per dataset, by name.
func (w *Warehouse) Datasets(ctx context.Context) ([]Record, error) {
	query := fmt.Sprintf(
		"SELECT name, nt, nw, time_independent, attrs, loaded_at FROM %s FINAL ORDER BY name",
		fqn(w.db, DatasetsTable))
	rows, err := w.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query catalog: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.Name, &r.NT, &r.NW, &r.TimeIndependent, &r.Attrs, &r.LoadedAt); err != nil {
			return nil, fmt.Errorf("scan catalog: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Sink returns a pipeline sink writing through this warehouse.
func (w *Warehouse) Sink() *Sink {
	return &Sink{
		Database:  w.db,
		Blocks:    w.native,
		Catalog:   w,
		BatchSize: w.batchSize,
		Logger:    w.logger,
	}
}
