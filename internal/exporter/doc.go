// Package exporter writes analysis tables to disk and publishes them.
//
// This package contains four components:
//
// CSVStorer: comma separated text with a fixed number of decimals, an optional
// unnamed index column, optional UTF-8 BOM for Excel compatibility and snappy
// framed output for paths ending in ".sz".
//
// XLSXStorer: one worksheet per table inside a workbook.
//
// SQLiteStorer: one SQL table per stored table, replaced on every store.
//
// S3Publisher: uploads stored artifacts to a bucket.
//
// Every storer creates missing parent directories right before writing and
// never modifies the table it is given. StoreOptions.Translate replaces cell
// values of selected columns, and of the indexes, through a dictionary.
//
// Example usage:
//
//	storer := exporter.NewCSVStorer(3, false, logger)
//	err := storer.Store(ctx, spikes.ToTable(), "output/glider/spikes.csv", exporter.StoreOptions{
//		Index: true,
//	})
package exporter
