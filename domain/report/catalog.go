package report

import (
	"fmt"

	"finportal/domain/pivot"
	"finportal/internal/format"
	"finportal/internal/kpi"
)

// WeeksQuery lists the reporting weeks between two bounds.
const WeeksQuery = `SELECT DISTINCT hellofresh_week
FROM dimensions.date_dimension
WHERE hellofresh_week BETWEEN ? AND ?
ORDER BY hellofresh_week`

const salesCogsBySlots = `
SELECT %s,
       M.recipe_size,
       M.version,
       SUM(M.sales_count_kit) AS sales_count_kit,
       SUM(M.box_count) AS box_count,
       SUM(M.core_sales + M.non_core_sales) AS revenue,
       SUM(M.cogs + M.residual_cogs) AS direct_cost
FROM anz_finance_app.sales_cogs_by_slots M
WHERE M.hellofresh_week = ?
  AND M.country = ?
  AND M.version IN (?, ?)
GROUP BY %s, M.recipe_size, M.version`

var menuPlanningLabels = map[string]string{
	"recipe_slot":     "Slot",
	"title":           "Title",
	"recipe_family":   "Type",
	"primary_tag":     "Primary Tag",
	"product_type":    "Product Type",
	"recipe_size":     "Recipe Size",
	"sales_count_kit": "Kit Counts",
	"box_count":       "Box Counts",
	"revenue":         "Revenue",
	"direct_cost":     "Direct Ingr. Cost",
}

var menuPlanningFormats = map[string]format.Directive{
	"sales_count_kit": format.Integer,
	"box_count":       format.Integer,
	"revenue":         format.Currency,
	"direct_cost":     format.Currency,
}

var menuPlanningKPIs = []kpi.Definition{
	{Label: "Total Box Count", Numerator: "box_count", Format: format.Integer},
	{Label: "Total Sales", Numerator: "revenue", Format: format.Currency},
	{Label: "AOV", Numerator: "revenue", Denominator: "box_count", Format: format.Price},
	{Label: "Total COGS", Numerator: "direct_cost", Format: format.Currency},
	{Label: "COGS % of GR", Numerator: "direct_cost", Denominator: "revenue", Format: format.Share},
	{Label: "Cost per Kit", Numerator: "direct_cost", Denominator: "sales_count_kit", Format: format.Price},
}

var menuPlanningMeasures = []pivot.MeasureSpec{
	{Name: "sales_count_kit"},
	{Name: "box_count"},
	{Name: "revenue"},
	{Name: "direct_cost"},
}

func menuPlanning(id, title, description string, dims ...string) *Definition {
	selectDims, groupDims := "", ""
	for i, d := range dims {
		if i > 0 {
			selectDims += ", "
			groupDims += ", "
		}
		selectDims += "M." + d
		groupDims += "M." + d
	}
	return &Definition{
		ID:            id,
		Title:         title,
		Section:       "Menu Planning",
		Description:   description,
		Query:         fmt.Sprintf(salesCogsBySlots, selectDims, groupDims),
		Args:          []Arg{ArgWeek, ArgEntity, ArgFirst, ArgSecond},
		DimensionKeys: dims,
		FacetKey:      "recipe_size",
		VersionKey:    "version",
		WeekKey:       "hellofresh_week",
		EntityKey:     "country",
		Measures:      menuPlanningMeasures,
		MixMeasure:    "sales_count_kit",
		Axis:          AxisVersion,
		Labels:        menuPlanningLabels,
		Formats:       menuPlanningFormats,
		FacetPrefix:   "Size ",
		KPIs:          menuPlanningKPIs,
		SortMeasure:   "sales_count_kit",
		MoversMeasure: "direct_cost",
	}
}

const krakenOps = `
SELECT v.%s,
       v.recipe_size,
       v.version,
       SUM(v.forecast_sku_quantity) AS forecast_sku_quantity,
       SUM(v.forecast_total_cost) AS forecast_total_cost
FROM anz_operations.anz_kraken_operations_historical v
WHERE v.hellofresh_week = ?
  AND v.bob_entity_code = ?
  AND v.version IN (?, ?)
GROUP BY v.%s, v.recipe_size, v.version`

var krakenLabels = map[string]string{
	"slot":                  "Slot",
	"sku_category":          "SKU Category",
	"recipe_size":           "Recipe Size",
	"forecast_sku_quantity": "SKU Quantity",
	"forecast_total_cost":   "Total Cost",
}

var krakenFormats = map[string]format.Directive{
	"forecast_sku_quantity": format.Integer,
	"forecast_total_cost":   format.Currency,
}

var krakenKPIs = []kpi.Definition{
	{Label: "Forecast Total Cost", Numerator: "forecast_total_cost", Format: format.Currency},
	{Label: "Forecast SKU Quantity", Numerator: "forecast_sku_quantity", Format: format.Integer},
	{Label: "Cost per SKU Unit", Numerator: "forecast_total_cost", Denominator: "forecast_sku_quantity", Format: format.Price},
}

func kraken(id, title, description, dim string) *Definition {
	return &Definition{
		ID:          id,
		Title:       title,
		Section:     "Kraken Ops",
		Description: description,
		Query:       fmt.Sprintf(krakenOps, dim, dim),
		Args:        []Arg{ArgWeek, ArgEntity, ArgFirst, ArgSecond},

		DimensionKeys: []string{dim},
		FacetKey:      "recipe_size",
		VersionKey:    "version",
		WeekKey:       "hellofresh_week",
		EntityKey:     "bob_entity_code",
		Measures: []pivot.MeasureSpec{
			{Name: "forecast_sku_quantity"},
			{Name: "forecast_total_cost"},
		},
		MixMeasure:    "forecast_total_cost",
		Axis:          AxisVersion,
		Labels:        krakenLabels,
		Formats:       krakenFormats,
		FacetPrefix:   "Size ",
		KPIs:          krakenKPIs,
		SortMeasure:   "forecast_total_cost",
		MoversMeasure: "forecast_total_cost",
	}
}

const orderRecipes = `
SELECT r.primary_tag,
       r.product_type,
       r.box_size,
       r.hellofresh_week,
       SUM(r.kit_count) AS kit_count,
       SUM(r.box_count) AS box_count,
       SUM(r.total_gross_revenue_excl_sales_tax) AS gross_revenue,
       SUM(r.total_direct_costs) AS direct_costs,
       SUM(r.net_p1c_margin) AS p1c_margin
FROM anz_finance_stakeholders.anz_orders_recipes r
WHERE r.hellofresh_week IN (?, ?)
  AND r.bob_entity_code = ?
GROUP BY r.primary_tag, r.product_type, r.box_size, r.hellofresh_week`

func recipeMargin() *Definition {
	return &Definition{
		ID:      "recipe-margin",
		Title:   "Order Recipe Margin",
		Section: "Orders",
		Description: "Gross revenue, direct costs and P1C margin of delivered recipes by " +
			"**primary tag** and **product type**, split by box size.\n\n" +
			"Compares the selected week with the week before it.",
		Query: orderRecipes,
		Args:  []Arg{ArgFirst, ArgSecond, ArgEntity},

		DimensionKeys: []string{"primary_tag", "product_type"},
		FacetKey:      "box_size",
		VersionKey:    "hellofresh_week",
		WeekKey:       "hellofresh_week",
		EntityKey:     "bob_entity_code",
		Measures: []pivot.MeasureSpec{
			{Name: "kit_count"},
			{Name: "gross_revenue"},
			{Name: "direct_costs"},
			{Name: "p1c_margin"},
			{Name: "box_count"},
		},
		MixMeasure: "kit_count",
		Axis:       AxisWeek,
		Labels: map[string]string{
			"primary_tag":   "Primary Tag",
			"product_type":  "Product Type",
			"box_size":      "Box Size",
			"kit_count":     "Kit Counts",
			"box_count":     "Box Counts",
			"gross_revenue": "Gross Revenue",
			"direct_costs":  "Direct Costs",
			"p1c_margin":    "P1C Margin",
		},
		Formats: map[string]format.Directive{
			"kit_count":     format.Integer,
			"box_count":     format.Integer,
			"gross_revenue": format.Currency,
			"direct_costs":  format.Currency,
			"p1c_margin":    format.Currency,
		},
		FacetPrefix: "Box ",
		KPIs: []kpi.Definition{
			{Label: "Gross Revenue", Numerator: "gross_revenue", Format: format.Currency},
			{Label: "P1C Margin", Numerator: "p1c_margin", Format: format.Currency},
			{Label: "P1C Margin %", Numerator: "p1c_margin", Denominator: "gross_revenue", Format: format.Share},
			{Label: "Revenue per Box", Numerator: "gross_revenue", Denominator: "box_count", Format: format.Price},
		},
		SortMeasure:   "gross_revenue",
		MoversMeasure: "p1c_margin",
	}
}

// Default returns the portal's standard report catalog.
func Default(entities []string) *Catalog {
	return NewCatalog(entities,
		menuPlanning("menu-planning-slot", "Sales & COGS by Slot",
			"Kit counts, box counts, revenue and direct ingredient cost per **recipe slot**, "+
				"split by recipe size.\n\nMix is each slot's share of kits within a size and version.",
			"recipe_slot", "title", "recipe_family", "primary_tag"),
		menuPlanning("menu-planning-primary-tag", "Sales & COGS by Primary Tag",
			"The menu planning measures rolled up by **primary tag**.",
			"primary_tag"),
		menuPlanning("menu-planning-type", "Sales & COGS by Type",
			"The menu planning measures rolled up by **recipe family** and product type.",
			"recipe_family", "product_type"),
		kraken("kraken-ops-slot", "Kraken Forecast by Slot",
			"Forecast SKU quantities and total cost from Kraken operations, per **slot**.", "slot"),
		kraken("kraken-ops-category", "Kraken Forecast by SKU Category",
			"Forecast SKU quantities and total cost from Kraken operations, per **SKU category**.", "sku_category"),
		recipeMargin(),
	)
}
