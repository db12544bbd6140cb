// Package dataprocessing holds the data-plane of the sensor pipeline: the
// typed Frame that flows between stages, the extractors that produce it, the
// transforms applied to it and the loaders that turn it into domain readings.
//
// # Architecture
//
// The package is organized into four components:
//
// 1. Extractors: read CSV (plain, whitespace separated or snappy compressed),
// XLSX worksheets and GeoJSON point collections into a Frame
// 2. Transforms: pure functions from Frame to Frame (rename, sort, filter,
// interpolate, date correction, merge, concat, semi-join)
// 3. Temporal aggregation: clock-time averaging and calendar-hour averaging
// with same-hour-of-day gap filling
// 4. Loaders: typed views of the final frame (seabed, glider ocean, glider
// weather, spikes)
//
// # Usage
//
//	ex := dataprocessing.NewDatedCSVExtractor(
//	    dataprocessing.CSVOptions{Columns: []int{0, 1, 2, 3}},
//	    dataprocessing.DateParsing{Columns: []string{"TimeStamp"}},
//	    logger)
//	frame, err := ex.Extract(ctx, "seabed.csv")
//	if err != nil {
//	    return err
//	}
//	frame, err = dataprocessing.SortValues(frame, "TimeStamp")
//	readings, err := dataprocessing.SeabedLoader{}.Load(frame)
//
// # Nulls
//
// Float cells use NaN, timestamps the zero time and strings the empty string.
// Interpolation only touches float columns.
//
// # Error Handling
//
// Errors wrap one of the package sentinels (ErrExtract, ErrMissingColumn,
// ErrKindMismatch, ErrLengthMismatch, ErrParse, ErrJoin) so callers can
// classify them with errors.Is.
package dataprocessing
