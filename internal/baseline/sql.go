package baseline

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/DukeRupert/turnover/internal/domain"
)

// Supported SQL backends.
const (
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
)

// OpenDB opens and pings a database for the given backend.
func OpenDB(ctx context.Context, store, dsn string) (*sql.DB, error) {
	var driver string
	switch store {
	case StorePostgres:
		driver = "pgx"
	case StoreSQLite:
		driver = "sqlite"
	default:
		return nil, fmt.Errorf("unsupported baseline store %q", store)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	if store == StoreSQLite {
		// One connection keeps in-memory databases alive and serializes writes.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}
	return db, nil
}

// MigrationDialect returns the goose dialect for a backend.
func MigrationDialect(store string) string {
	if store == StoreSQLite {
		return "sqlite3"
	}
	return "postgres"
}

// SQLStore is a Registry backed by the baselines table. Properties without
// rows are resolved by the fallback resolver, if any.
type SQLStore struct {
	db              *sql.DB
	store           string
	defaultProperty string
	fallback        Resolver
	logger          *slog.Logger
	now             func() time.Time
}

// NewSQLStore creates a SQL registry. Empty property ids resolve to
// defaultProperty. fallback may be nil.
func NewSQLStore(db *sql.DB, store, defaultProperty string, fallback Resolver, logger *slog.Logger) *SQLStore {
	if defaultProperty == "" {
		defaultProperty = DefaultPropertyID
	}
	return &SQLStore{
		db:              db,
		store:           store,
		defaultProperty: defaultProperty,
		fallback:        fallback,
		logger:          logger.With("component", "baseline"),
		now:             time.Now,
	}
}

// Resolve returns the stored baselines for a property.
func (s *SQLStore) Resolve(ctx context.Context, propertyID string) (domain.BaselineSet, error) {
	const op = "baseline.resolve"

	if propertyID == "" {
		propertyID = s.defaultProperty
	}

	rows, err := s.db.QueryContext(ctx,
		s.rebind("SELECT room, file_name FROM baselines WHERE property_id = ?"), propertyID)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to load baselines")
	}
	defer rows.Close()

	set := make(domain.BaselineSet)
	for rows.Next() {
		var roomName, fileName string
		if err := rows.Scan(&roomName, &fileName); err != nil {
			return nil, domain.Internal(err, op, "failed to read baseline row")
		}
		room, err := domain.ParseRoom(roomName)
		if err != nil {
			s.logger.Warn("ignoring baseline with unknown room", "property_id", propertyID, "room", roomName)
			continue
		}
		set[room] = fileName
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Internal(err, op, "failed to read baselines")
	}

	// Registered rooms override the fallback room by room.
	if s.fallback != nil {
		base, err := s.fallback.Resolve(ctx, propertyID)
		if err == nil {
			for room, fileName := range set {
				base[room] = fileName
			}
			return base, nil
		}
		if len(set) == 0 {
			return nil, err
		}
	}

	if len(set) == 0 {
		return nil, domain.NotFound(op, "property", propertyID)
	}
	return set, nil
}

// Put inserts or replaces the baseline for one room of a property.
func (s *SQLStore) Put(ctx context.Context, propertyID string, room domain.Room, fileName string) error {
	const op = "baseline.put"

	if strings.TrimSpace(propertyID) == "" {
		return domain.Invalid(op, "property id is required")
	}
	if !room.IsValid() {
		return domain.Errorf(domain.EINVALID, op, "unknown room %q", room)
	}
	if strings.TrimSpace(fileName) == "" {
		return domain.Invalid(op, "file name is required")
	}

	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO baselines (property_id, room, file_name, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (property_id, room)
		DO UPDATE SET file_name = excluded.file_name, updated_at = excluded.updated_at`),
		propertyID, room.String(), fileName, s.now().UTC())
	if err != nil {
		return domain.Internal(err, op, "failed to save baseline")
	}

	s.logger.Info("baseline registered", "property_id", propertyID, "room", room, "file_name", fileName)
	return nil
}

// rebind rewrites ? placeholders to $n for Postgres.
func (s *SQLStore) rebind(query string) string {
	if s.store != StorePostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
