package main

import (
	"fmt"
	"math"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/spf13/cobra"
	"github.com/xuri/excelize/v2"

	"datafit/pkg/contracts/domain"
)

var (
	demoOut     string
	demoRows    int
	demoColumns int
	demoSeed    int64
)

var demoCmd = &cobra.Command{
	Use:   "demo-sheet",
	Short: "Write a synthetic workbook for trying out uploads",
	Long: `Write an .xlsx workbook with random numeric columns. Two extra columns are
added that validation drops: one with text cells and one with fewer than
three values.

Example usage:
  datafit demo-sheet --out demo.xlsx --rows 40 --columns 3 --seed 7`,
	RunE: runDemo,
}

func init() {
	rootCmd.AddCommand(demoCmd)
	demoCmd.Flags().StringVar(&demoOut, "out", "demo.xlsx", "Output path")
	demoCmd.Flags().IntVar(&demoRows, "rows", 30, "Data rows")
	demoCmd.Flags().IntVar(&demoColumns, "columns", 3, "Numeric columns")
	demoCmd.Flags().Int64Var(&demoSeed, "seed", 0, "Random seed, 0 for a random one")
}

func runDemo(cmd *cobra.Command, args []string) error {
	f, err := buildDemoWorkbook(gofakeit.New(demoSeed), demoRows, demoColumns)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.SaveAs(demoOut); err != nil {
		return fmt.Errorf("failed to write %s: %w", demoOut, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d rows, %d numeric columns)\n", demoOut, demoRows, demoColumns)
	return nil
}

// buildDemoWorkbook lays out numeric columns followed by a text column and a
// sparse column on the first sheet.
func buildDemoWorkbook(faker *gofakeit.Faker, rows, columns int) (*excelize.File, error) {
	if rows < 3 {
		return nil, fmt.Errorf("rows must be at least 3, got %d", rows)
	}
	if columns < 1 {
		return nil, fmt.Errorf("columns must be at least 1, got %d", columns)
	}

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)

	header := make([]interface{}, 0, columns+2)
	for c := 0; c < columns; c++ {
		header = append(header, demoColumnName(faker.Noun(), c))
	}
	header = append(header, "notes", "sparse")
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		f.Close()
		return nil, err
	}

	centers := make([]float64, columns)
	spreads := make([]float64, columns)
	for c := range centers {
		centers[c] = faker.Float64Range(10, 500)
		spreads[c] = faker.Float64Range(1, centers[c]/4)
	}

	for r := 0; r < rows; r++ {
		row := make([]interface{}, 0, columns+2)
		for c := 0; c < columns; c++ {
			v := centers[c] + spreads[c]*faker.Float64Range(-1, 1)
			row = append(row, math.Round(v*100)/100)
		}
		row = append(row, faker.Word())
		if r < 2 {
			row = append(row, faker.Number(1, 9))
		}

		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			f.Close()
			return nil, err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			f.Close()
			return nil, err
		}
	}
	return f, nil
}

func demoColumnName(noun string, i int) string {
	suffix := fmt.Sprintf("_%d", i+1)
	max := domain.MaxColumnNameLength - len(suffix)
	if len(noun) > max {
		noun = noun[:max]
	}
	return noun + suffix
}
