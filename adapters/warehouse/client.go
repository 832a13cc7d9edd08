package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"finportal/domain/pivot"
	"finportal/domain/report"
	"finportal/internal"
	"finportal/internal/config"
	"finportal/internal/errors"
	"finportal/internal/metrics"
	"finportal/ports"

	_ "github.com/databricks/databricks-sql-go"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
)

const (
	DriverDatabricks = "databricks"
	DriverPostgres   = "postgres"
)

// Client runs report queries against a SQL warehouse through sqlx.
type Client struct {
	db      *sqlx.DB
	driver  string
	timeout time.Duration
	log     *internal.Logger
}

var _ ports.Warehouse = (*Client)(nil)

// Open connects to the configured warehouse and verifies the connection.
func Open(ctx context.Context, cfg config.WarehouseConfig) (*Client, error) {
	var (
		db  *sqlx.DB
		err error
	)
	switch cfg.Driver {
	case DriverDatabricks:
		db, err = sqlx.Open(DriverDatabricks, DSN(cfg))
	case DriverPostgres:
		db, err = sqlx.Open(DriverPostgres, cfg.URL)
	default:
		return nil, errors.ConfigInvalid(fmt.Sprintf("unsupported warehouse driver %q", cfg.Driver))
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s warehouse", cfg.Driver)
	}

	client := NewClient(db, cfg.Driver, cfg.QueryTimeout)
	if err := client.Ping(ctx); err != nil {
		db.Close()
		return nil, err
	}
	client.log.Info("connected to %s warehouse", cfg.Driver)
	return client, nil
}

// NewClient wraps an open connection.
func NewClient(db *sqlx.DB, driver string, timeout time.Duration) *Client {
	return &Client{
		db:      db,
		driver:  driver,
		timeout: timeout,
		log:     internal.DefaultLogger.With("Warehouse"),
	}
}

// DSN builds a databricks-sql-go connection string:
// token:<token>@<host>:443<http path>?catalog=<catalog>
func DSN(cfg config.WarehouseConfig) string {
	dsn := fmt.Sprintf("token:%s@%s:443%s", cfg.Token, cfg.Host, cfg.HTTPPath)
	if cfg.Catalog != "" {
		dsn += "?catalog=" + url.QueryEscape(cfg.Catalog)
	}
	return dsn
}

// rebind converts ? placeholders to the driver's bind style.
func (c *Client) rebind(query string) string {
	if c.driver == DriverPostgres {
		return sqlx.Rebind(sqlx.DOLLAR, query)
	}
	return sqlx.Rebind(sqlx.QUESTION, query)
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

func (c *Client) observe(start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.WarehouseQueryDuration.WithLabelValues(c.driver, status).Observe(time.Since(start).Seconds())
}

// FetchFacts runs a report query. String columns are scanned as nullable
// text and measure columns as nullable decimals, so a SQL NULL measure is
// left out of the row instead of becoming zero.
func (c *Client) FetchFacts(ctx context.Context, q ports.FactQuery) (out []pivot.FactRow, err error) {
	start := time.Now()
	defer func() { c.observe(start, err) }()

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	rows, err := c.db.QueryxContext(ctx, c.rebind(q.SQL), q.Args...)
	if err != nil {
		return nil, errors.ExternalServiceError("warehouse", fmt.Errorf("%s query: %w", q.Report, err))
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, errors.ExternalServiceError("warehouse", err)
	}
	scanner, err := newFactScanner(columns, q.StringColumns, q.MeasureColumns)
	if err != nil {
		return nil, errors.ExternalServiceError("warehouse", fmt.Errorf("%s: %w", q.Report, err))
	}

	for rows.Next() {
		if err := rows.Scan(scanner.dest...); err != nil {
			return nil, errors.ExternalServiceError("warehouse", fmt.Errorf("%s scan: %w", q.Report, err))
		}
		out = append(out, scanner.row())
	}
	if err := rows.Err(); err != nil {
		return nil, errors.ExternalServiceError("warehouse", fmt.Errorf("%s rows: %w", q.Report, err))
	}

	metrics.WarehouseRows.WithLabelValues(c.driver).Add(float64(len(out)))
	c.log.Debug("%s returned %d rows in %s", q.Report, len(out), time.Since(start))
	return out, nil
}

// ListWeeks returns the reporting weeks between from and to.
func (c *Client) ListWeeks(ctx context.Context, from, to string) (weeks []string, err error) {
	start := time.Now()
	defer func() { c.observe(start, err) }()

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	if err := c.db.SelectContext(ctx, &weeks, c.rebind(report.WeeksQuery), from, to); err != nil {
		return nil, errors.ExternalServiceError("warehouse", fmt.Errorf("list weeks: %w", err))
	}
	return weeks, nil
}

func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := c.db.PingContext(ctx); err != nil {
		return errors.ExternalServiceError("warehouse", err)
	}
	return nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

// DB exposes the connection for migrations.
func (c *Client) DB() *sqlx.DB {
	return c.db
}

// measureValue scans a numeric column. NULL, NaN and infinities all scan
// as invalid; decimal.NewFromFloat panics on the latter two.
type measureValue struct {
	decimal.NullDecimal
}

func (m *measureValue) Scan(value any) error {
	switch v := value.(type) {
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			m.NullDecimal = decimal.NullDecimal{}
			return nil
		}
	case float32:
		if f := float64(v); math.IsNaN(f) || math.IsInf(f, 0) {
			m.NullDecimal = decimal.NullDecimal{}
			return nil
		}
	case string:
		if nonFinite(v) {
			m.NullDecimal = decimal.NullDecimal{}
			return nil
		}
	case []byte:
		if nonFinite(string(v)) {
			m.NullDecimal = decimal.NullDecimal{}
			return nil
		}
	}
	return m.NullDecimal.Scan(value)
}

// nonFinite matches the textual NaN and infinity spellings some drivers
// return for float columns.
func nonFinite(s string) bool {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return err == nil && (math.IsNaN(f) || math.IsInf(f, 0))
}

// factScanner maps result columns onto scan destinations.
type factScanner struct {
	dest     []any
	strings  map[string]*sql.NullString
	measures map[string]*measureValue
}

func newFactScanner(columns, stringCols, measureCols []string) (*factScanner, error) {
	s := &factScanner{
		dest:     make([]any, len(columns)),
		strings:  make(map[string]*sql.NullString, len(stringCols)),
		measures: make(map[string]*measureValue, len(measureCols)),
	}
	role := make(map[string]string, len(stringCols)+len(measureCols))
	for _, c := range stringCols {
		role[c] = "string"
	}
	for _, c := range measureCols {
		role[c] = "measure"
	}

	seen := make(map[string]bool, len(columns))
	for i, col := range columns {
		seen[col] = true
		switch role[col] {
		case "string":
			v := new(sql.NullString)
			s.strings[col] = v
			s.dest[i] = v
		case "measure":
			v := new(measureValue)
			s.measures[col] = v
			s.dest[i] = v
		default:
			s.dest[i] = new(any)
		}
	}
	for col := range role {
		if !seen[col] {
			return nil, fmt.Errorf("result is missing column %q", col)
		}
	}
	return s, nil
}

func (s *factScanner) row() pivot.FactRow {
	r := pivot.FactRow{
		Dimensions: make(map[string]string, len(s.strings)),
		Measures:   make(map[string]float64, len(s.measures)),
	}
	for col, v := range s.strings {
		if v.Valid {
			r.Dimensions[col] = v.String
		} else {
			r.Dimensions[col] = ""
		}
	}
	for col, v := range s.measures {
		if v.Valid {
			r.Measures[col] = v.Decimal.InexactFloat64()
		}
	}
	return r
}
