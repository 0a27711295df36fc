package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/spigell/hirewire/internal/logger"
	"github.com/spigell/hirewire/internal/records"
)

var (
	ErrNotFound             = errors.New("record not found")
	ErrDuplicateApplication = errors.New("application already exists")
)

// Store is a record store backed directly by PostgreSQL. It serves the same
// operations as the REST backend for deployments without the REST gateway.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open connects with the pgx driver and checks the connection.
func Open(ctx context.Context, log *zap.Logger, dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return New(db, log), nil
}

func New(db *sql.DB, log *zap.Logger) *Store {
	return &Store{db: db, logger: logger.ForComponent(logger.OrNop(log), "postgres")}
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// where renders the filters of query as a WHERE clause with positional
// arguments. ok is false when the query cannot match anything.
func where(alias string, query any) (clause string, args []any, ok bool) {
	var parts []string
	for _, f := range records.Filters(query) {
		if f.Empty() {
			return "", nil, false
		}

		column := f.Column
		if alias != "" {
			column = alias + "." + column
		}

		if !f.Many {
			args = append(args, f.Values[0])
			parts = append(parts, fmt.Sprintf("%s = $%d", column, len(args)))
			continue
		}

		placeholders := make([]string, 0, len(f.Values))
		for _, v := range f.Values {
			args = append(args, v)
			placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
		}
		parts = append(parts, fmt.Sprintf("%s IN (%s)", column, strings.Join(placeholders, ", ")))
	}

	if len(parts) == 0 {
		return "", nil, true
	}
	return " WHERE " + strings.Join(parts, " AND "), args, true
}

// scanRows reads every row into a column map. Columns named
// "<prefix>__<name>" are folded into a nested map under prefix, which is how
// joined records come back.
func scanRows(rows *sql.Rows) ([]records.Row, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []records.Row
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		row := records.Row{}
		for i, column := range columns {
			prefix, name, nested := strings.Cut(column, "__")
			if !nested {
				row[column] = values[i]
				continue
			}
			if values[i] == nil {
				continue
			}
			sub, _ := row[prefix].(records.Row)
			if sub == nil {
				sub = records.Row{}
				row[prefix] = sub
			}
			sub[name] = values[i]
		}
		out = append(out, row)
	}

	return out, rows.Err()
}
