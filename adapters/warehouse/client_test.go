package warehouse

import (
	"database/sql"
	"math"
	"testing"
	"time"

	"finportal/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDSN(t *testing.T) {
	cfg := config.WarehouseConfig{
		Host:     "adb-123.azuredatabricks.net",
		HTTPPath: "/sql/1.0/warehouses/abc",
		Token:    "dapi42",
		Catalog:  "hive_metastore",
	}
	assert.Equal(t, "token:dapi42@adb-123.azuredatabricks.net:443/sql/1.0/warehouses/abc?catalog=hive_metastore", DSN(cfg))

	cfg.Catalog = ""
	assert.Equal(t, "token:dapi42@adb-123.azuredatabricks.net:443/sql/1.0/warehouses/abc", DSN(cfg))
}

func TestRebind(t *testing.T) {
	q := "SELECT a FROM t WHERE w = ? AND v IN (?, ?)"

	pg := NewClient(nil, DriverPostgres, time.Minute)
	assert.Equal(t, "SELECT a FROM t WHERE w = $1 AND v IN ($2, $3)", pg.rebind(q))

	dbx := NewClient(nil, DriverDatabricks, time.Minute)
	assert.Equal(t, q, dbx.rebind(q))
}

func scan(t *testing.T, s *factScanner, values ...any) {
	t.Helper()
	require.Len(t, values, len(s.dest))
	for i, v := range values {
		switch d := s.dest[i].(type) {
		case sql.Scanner:
			require.NoError(t, d.Scan(v))
		case *any:
			*d = v
		}
	}
}

func TestFactScannerKeepsNullMeasuresAbsent(t *testing.T) {
	columns := []string{"recipe_slot", "recipe_size", "version", "dc", "sales_count_kit", "revenue"}
	s, err := newFactScanner(columns,
		[]string{"recipe_slot", "recipe_size", "version"},
		[]string{"sales_count_kit", "revenue"})
	require.NoError(t, err)

	scan(t, s, int64(3), int64(2), "v2", "SY", []byte("120"), nil)
	row := s.row()

	assert.Equal(t, map[string]string{"recipe_slot": "3", "recipe_size": "2", "version": "v2"}, row.Dimensions)
	v, ok := row.Measure("sales_count_kit")
	assert.True(t, ok)
	assert.Equal(t, 120.0, v)
	_, ok = row.Measure("revenue")
	assert.False(t, ok, "null measure must stay absent")

	scan(t, s, nil, "4", "v3", "ML", 12.5, "99.75")
	row = s.row()
	assert.Equal(t, "", row.Dimension("recipe_slot"))
	v, _ = row.Measure("revenue")
	assert.Equal(t, 99.75, v)
}

func TestFactScannerTreatsNonFiniteMeasuresAsNull(t *testing.T) {
	s, err := newFactScanner([]string{"slot", "cost"}, []string{"slot"}, []string{"cost"})
	require.NoError(t, err)

	for _, v := range []any{math.NaN(), math.Inf(1), float32(math.Inf(-1)), "NaN", []byte("-Infinity")} {
		scan(t, s, "1", v)
		_, ok := s.row().Measure("cost")
		assert.False(t, ok, "%v must scan as null", v)
	}

	scan(t, s, "1", 4.25)
	v, ok := s.row().Measure("cost")
	assert.True(t, ok)
	assert.Equal(t, 4.25, v)
}

func TestFactScannerMissingColumn(t *testing.T) {
	_, err := newFactScanner([]string{"slot", "version"}, []string{"slot", "version", "recipe_size"}, nil)
	assert.ErrorContains(t, err, "recipe_size")
}
