package provider

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/netip"
	"regexp"

	_ "github.com/go-sql-driver/mysql"

	"hcloud-firewall-controller/internal/netparse"
)

// DefaultTable is the table queried when none is configured.
const DefaultTable = "allowlist_cidrs"

var identifierRe = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// MariaDBSource fetches additional allow-list networks from a MariaDB table
// on every reconciliation cycle. The table needs a single `cidr` column
// holding network ids in CIDR notation.
type MariaDBSource struct {
	db    *sql.DB
	table string
}

func NewMariaDBSource(dsn, table string) (*MariaDBSource, error) {
	if table == "" {
		table = DefaultTable
	}
	if !identifierRe.MatchString(table) {
		return nil, fmt.Errorf("invalid allow-list table name %q", table)
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	return &MariaDBSource{db: db, table: table}, nil
}

func (s *MariaDBSource) Close() error {
	return s.db.Close()
}

// FetchCIDRs loads the current allow-list rows. Rows that are not valid
// network ids are skipped and logged rather than failing the cycle.
func (s *MariaDBSource) FetchCIDRs(ctx context.Context) ([]netip.Prefix, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT cidr FROM "+s.table)
	if err != nil {
		return nil, fmt.Errorf("querying allow-list table %s: %w", s.table, err)
	}
	defer rows.Close()

	var prefixes []netip.Prefix
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scanning allow-list row: %w", err)
		}
		prefix, err := netparse.ParseNetworkPrefix(raw)
		if err != nil {
			slog.Warn("skipping invalid allow-list row", "table", s.table, "cidr", raw, "error", err)
			continue
		}
		prefixes = append(prefixes, prefix)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading allow-list rows: %w", err)
	}
	return prefixes, nil
}
