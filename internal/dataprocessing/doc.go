// Package dataprocessing turns an uploaded spreadsheet into validated numeric columns.
//
// # Architecture
//
// The package has two steps:
//
// 1. Parser: reads the first worksheet of an .xlsx workbook into a Sheet of raw strings
// 2. Validator: checks the header row and keeps the columns that are fully numeric
//
// Structural problems with the header reject the whole sheet. Content problems only
// drop the affected column; the sheet is rejected when no column survives.
//
// # Usage
//
//	sheet, err := dataprocessing.ParseSheet(file)
//	if err != nil {
//	    return err
//	}
//	columns, err := dataprocessing.NewValidator(logger).Validate(ctx, sheet)
package dataprocessing
