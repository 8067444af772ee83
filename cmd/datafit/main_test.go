package main

import (
	"bytes"
	"context"
	"strconv"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"datafit/internal/dataprocessing"
	"datafit/internal/infrastructure"
)

func TestBuildDemoWorkbookPassesValidation(t *testing.T) {
	f, err := buildDemoWorkbook(gofakeit.New(42), 12, 3)
	require.NoError(t, err)
	defer f.Close()

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	sheet, err := dataprocessing.ParseSheet(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	columns, err := dataprocessing.NewValidator(infrastructure.NopLogger()).Validate(context.Background(), sheet)
	require.NoError(t, err)

	require.Len(t, columns, 3, "text and sparse columns are dropped")
	for i, c := range columns {
		assert.Len(t, c.Values, 12)
		assert.Contains(t, c.Name, "_"+strconv.Itoa(i+1))
		assert.LessOrEqual(t, len(c.Name), 20)
	}
}

func TestBuildDemoWorkbookRejectsTinySheets(t *testing.T) {
	_, err := buildDemoWorkbook(gofakeit.New(1), 2, 3)
	assert.Error(t, err)
	_, err = buildDemoWorkbook(gofakeit.New(1), 5, 0)
	assert.Error(t, err)
}

func TestDemoColumnName(t *testing.T) {
	assert.Equal(t, "cat_1", demoColumnName("cat", 0))
	assert.Equal(t, "abcdefghijklmnopq_12", demoColumnName("abcdefghijklmnopqrstuvwxyz", 11))
}
