package dataset

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// NormalizeDriver maps user-facing driver names to registered database/sql drivers.
func NormalizeDriver(name string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "sqlite", "sqlite3":
		return "sqlite3", nil
	case "postgres", "postgresql", "pg":
		return "postgres", nil
	default:
		return "", fmt.Errorf("unsupported sql driver: %s (use sqlite3 or postgres)", name)
	}
}

// LoadSQL runs query against the database and returns its result as a Table.
// Column values are stringified; NULL becomes "".
func LoadSQL(ctx context.Context, driver, dsn, query string, opt LoadOptions) (*Table, error) {
	drv, err := NormalizeDriver(driver)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("sql query is required")
	}
	db, err := sqlx.ConnectContext(ctx, drv, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", drv, err)
	}
	defer db.Close()
	return QueryTable(ctx, db, query, opt)
}

// QueryTable runs query on an open handle.
func QueryTable(ctx context.Context, db *sqlx.DB, query string, opt LoadOptions) (*Table, error) {
	rows, err := db.QueryxContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}
	t := &Table{Name: db.DriverName() + " query", Header: cols}
	seen := 0
	for rows.Next() {
		vals, err := rows.SliceScan()
		if err != nil {
			return nil, fmt.Errorf("scan row %d: %w", seen+1, err)
		}
		seen++
		if opt.MaxRows > 0 && len(t.Rows) >= opt.MaxRows {
			continue
		}
		rec := make([]string, len(vals))
		for i, v := range vals {
			rec[i] = sqlString(v)
		}
		t.Rows = append(t.Rows, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	if opt.MaxRows > 0 && seen > len(t.Rows) {
		t.Warnings = append(t.Warnings, fmt.Sprintf("loaded only %d/%d rows due to MaxRows", len(t.Rows), seen))
	}
	return t, nil
}

func sqlString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(x)
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.Format(time.RFC3339)
	default:
		return fmt.Sprint(x)
	}
}
