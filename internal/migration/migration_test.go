package migration

import (
	"strings"
	"testing"
	"time"

	"finportal/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatementsCreateSchemasBeforeTables(t *testing.T) {
	stmts := Statements()
	require.NotEmpty(t, stmts)

	firstTable := -1
	schemas := 0
	for i, s := range stmts {
		if strings.HasPrefix(s, "CREATE SCHEMA") {
			schemas++
			assert.Equal(t, -1, firstTable, "schema after table: %s", s)
		}
		if strings.HasPrefix(s, "CREATE TABLE") && firstTable < 0 {
			firstTable = i
		}
	}
	assert.Equal(t, 4, schemas)
	joined := strings.Join(stmts, "\n")
	assert.Contains(t, joined, "CREATE TABLE IF NOT EXISTS anz_finance_app.sales_cogs_by_slots")
	assert.Contains(t, joined, "forecast_total_cost NUMERIC(18,4)")
	assert.Contains(t, joined, "ON anz_finance_stakeholders.anz_orders_recipes (hellofresh_week, bob_entity_code)")
}

func TestFindTable(t *testing.T) {
	tbl, err := FindTable("anz_operations.anz_kraken_operations_historical")
	require.NoError(t, err)
	assert.Equal(t, "anz_kraken_operations_historical", tbl.Name)

	_, err = FindTable("public.users")
	assert.True(t, errors.HasCode(err, errors.CodeNotFound))
}

func TestWeekRange(t *testing.T) {
	labels, mondays, err := WeekRange("2020-W52", "2021-W02")
	require.NoError(t, err)
	assert.Equal(t, []string{"2020-W52", "2020-W53", "2021-W01", "2021-W02"}, labels)
	assert.Equal(t, time.Date(2020, time.December, 21, 0, 0, 0, 0, time.UTC), mondays[0])
	assert.Equal(t, time.Monday, mondays[3].Weekday())

	labels, _, err = WeekRange("2025-W09", "2025-W08")
	require.NoError(t, err)
	assert.Empty(t, labels)

	_, _, err = WeekRange("2025-9", "2025-W10")
	assert.True(t, errors.HasCode(err, errors.CodeInvalidInput))
}

func TestPrepareRows(t *testing.T) {
	tbl, err := FindTable("anz_operations.anz_kraken_operations_historical")
	require.NoError(t, err)

	cols, args, err := PrepareRows(tbl,
		[]string{"hellofresh_week", " sku_category", "forecast_total_cost"},
		[]map[string]string{
			{"hellofresh_week": "2025-W09", "sku_category": "Protein", "forecast_total_cost": "1,250.50"},
			{"hellofresh_week": "2025-W09", "sku_category": "", "forecast_total_cost": ""},
		})
	require.NoError(t, err)
	assert.Equal(t, []string{"hellofresh_week", "sku_category", "forecast_total_cost"}, cols)
	assert.Equal(t, "1250.50", args[0]["forecast_total_cost"])
	assert.Nil(t, args[1]["sku_category"])
	assert.Nil(t, args[1]["forecast_total_cost"])

	assert.Equal(t,
		"INSERT INTO anz_operations.anz_kraken_operations_historical (hellofresh_week, sku_category, forecast_total_cost) "+
			"VALUES (:hellofresh_week, :sku_category, :forecast_total_cost)",
		InsertStatement(tbl, cols))

	_, _, err = PrepareRows(tbl, []string{"hellofresh_week", "country"}, nil)
	assert.ErrorContains(t, err, `"country"`)
}
