// Package testkit generates synthetic fact extracts for local runs and
// end-to-end tests of the report catalog.
package testkit

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"strconv"

	"gonum.org/v1/gonum/stat/distuv"
)

// FactGeneratorConfig configures the synthetic fact generator
type FactGeneratorConfig struct {
	Weeks    []string `json:"weeks"`
	Entities []string `json:"entities"`
	Versions []string `json:"versions"`
	Slots    int      `json:"slots"`
	Seed     uint64   `json:"seed"`
}

// DefaultFactConfig returns a small extract covering two weeks.
func DefaultFactConfig() FactGeneratorConfig {
	return FactGeneratorConfig{
		Weeks:    []string{"2025-W08", "2025-W09"},
		Entities: []string{"AU", "AO", "NZ"},
		Versions: []string{"v2", "v3"},
		Slots:    12,
		Seed:     42,
	}
}

// Headers are the extract columns. Every report's filter, dimension and
// measure column is present, so one file serves the whole catalog.
var Headers = []string{
	"hellofresh_week", "country", "bob_entity_code", "version",
	"recipe_slot", "slot", "title", "recipe_family", "primary_tag", "product_type",
	"sku_category", "recipe_size", "box_size",
	"sales_count_kit", "box_count", "revenue", "direct_cost",
	"forecast_sku_quantity", "forecast_total_cost",
	"kit_count", "gross_revenue", "direct_costs", "p1c_margin",
}

var (
	families      = []string{"Classic", "Family", "Quick", "Premium"}
	primaryTags   = []string{"Beef", "Chicken", "Fish", "Pork", "Veggie"}
	productTypes  = []string{"Meal Kit", "Add-on", "Ready Meal"}
	skuCategories = []string{"Protein", "Produce", "Dry Goods", "Dairy", "Packaging"}
	sizes         = []string{"2", "4"}
)

// FactGenerator produces deterministic synthetic fact rows
type FactGenerator struct {
	config FactGeneratorConfig
	src    rand.Source
	rng    *rand.Rand
}

// NewFactGenerator creates a generator seeded from the config
func NewFactGenerator(config FactGeneratorConfig) *FactGenerator {
	src := rand.NewPCG(config.Seed, config.Seed^0x9e3779b97f4a7c15)
	return &FactGenerator{config: config, src: src, rng: rand.New(src)}
}

// Rows generates one row per week, entity, version, slot and size.
func (g *FactGenerator) Rows() []map[string]string {
	var rows []map[string]string
	price := distuv.Normal{Mu: 11.5, Sigma: 1.2, Src: g.src}
	unitCost := distuv.Normal{Mu: 4.4, Sigma: 0.5, Src: g.src}

	for _, week := range g.config.Weeks {
		for _, entity := range g.config.Entities {
			for vi, version := range g.config.Versions {
				drift := 1 + 0.05*float64(vi)
				for slot := 1; slot <= g.config.Slots; slot++ {
					for si, size := range sizes {
						base := float64(400/(slot+1)+20) * float64(si+1) * drift
						kits := distuv.Poisson{Lambda: base, Src: g.src}.Rand()
						boxes := math.Max(1, math.Round(kits/3))
						revenue := kits * math.Max(price.Rand(), 1)
						cost := kits * math.Max(unitCost.Rand(), 0.5)
						residual := cost * 0.02
						rows = append(rows, map[string]string{
							"hellofresh_week":       week,
							"country":               entity,
							"bob_entity_code":       entity,
							"version":               version,
							"recipe_slot":           strconv.Itoa(slot),
							"slot":                  strconv.Itoa(slot),
							"title":                 fmt.Sprintf("Recipe %02d", slot),
							"recipe_family":         families[slot%len(families)],
							"primary_tag":           primaryTags[slot%len(primaryTags)],
							"product_type":          productTypes[slot%len(productTypes)],
							"sku_category":          skuCategories[g.rng.IntN(len(skuCategories))],
							"recipe_size":           size,
							"box_size":              size,
							"sales_count_kit":       num(kits),
							"box_count":             num(boxes),
							"revenue":               num(revenue),
							"direct_cost":           num(cost + residual),
							"forecast_sku_quantity": num(kits * 5),
							"forecast_total_cost":   num(cost * 1.02),
							"kit_count":             num(kits),
							"gross_revenue":         num(revenue),
							"direct_costs":          num(cost + residual),
							"p1c_margin":            num(revenue - cost - residual),
						})
					}
				}
			}
		}
	}
	return rows
}

func num(v float64) string {
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
}

// WriteCSV writes the generated rows with a header line.
func (g *FactGenerator) WriteCSV(w io.Writer) (int, error) {
	rows := g.Rows()
	cw := csv.NewWriter(w)
	if err := cw.Write(Headers); err != nil {
		return 0, err
	}
	record := make([]string, len(Headers))
	for _, row := range rows {
		for i, h := range Headers {
			record[i] = row[h]
		}
		if err := cw.Write(record); err != nil {
			return 0, err
		}
	}
	cw.Flush()
	return len(rows), cw.Error()
}
