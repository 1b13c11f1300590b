// Package warehouse loads canonical datasets into ClickHouse.
//
// Two tables live in the configured database:
//   - ssi_datasets: one catalog row per dataset, global attributes as a Map
//   - ssi_spectrum: one row per (dataset, t, w) cell
//
// Both are ReplacingMergeTree tables versioned by loaded_at, so loading the
// same dataset twice converges on the latest load.
package warehouse

import "fmt"

const (
	DatasetsTable = "ssi_datasets"
	SpectrumTable = "ssi_spectrum"
)

// spectrumColumns is the native insert column order.
const spectrumColumns = "dataset, t, date, w, ssi, loaded_at"

// DatasetsDDL returns the catalog table definition.
func DatasetsDDL(db string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s
(
    name             String,
    nt               UInt32,
    nw               UInt32,
    time_independent Bool,
    attrs            Map(String, String),
    loaded_at        DateTime
)
ENGINE = ReplacingMergeTree(loaded_at)
ORDER BY name`, db, DatasetsTable)
}

// SpectrumDDL returns the spectrum table definition. t is days since
// 1970-01-01; date is its calendar day.
func SpectrumDDL(db string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s
(
    dataset   LowCardinality(String),
    t         Float64,
    date      Date32,
    w         Float32,
    ssi       Float32,
    loaded_at DateTime
)
ENGINE = ReplacingMergeTree(loaded_at)
PARTITION BY dataset
ORDER BY (dataset, t, w)`, db, SpectrumTable)
}

func fqn(db, table string) string {
	return fmt.Sprintf("%s.%s", db, table)
}
