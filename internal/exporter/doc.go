// Package exporter renders reports as CSV.
//
// WriteReportSummary writes one row per report column with one cell per
// catalog indicator. A UTF-8 BOM can be prepended so Excel detects the
// encoding:
//
//	err := exporter.WriteReportSummary(w, catalog, report, exporter.Options{BOMPrefix: true})
package exporter
