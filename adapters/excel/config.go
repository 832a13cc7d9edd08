package excel

// ExcelConfig holds configuration for the file-backed fact source
type ExcelConfig struct {
	FilePath   string `json:"file_path"`
	Sheet      string `json:"sheet"`
	WeekColumn string `json:"week_column"`
	Enabled    bool   `json:"enabled"`
}

// DefaultExcelConfig returns sensible defaults for fact extracts
func DefaultExcelConfig() ExcelConfig {
	return ExcelConfig{
		Sheet:      "Sheet1",
		WeekColumn: "hellofresh_week",
		Enabled:    false,
	}
}
