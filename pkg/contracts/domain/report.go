package domain

import (
	"encoding/json"
	"time"
)

// MaxColumnNameLength is the longest accepted column header after trimming.
const MaxColumnNameLength = 20

// Role identifies what an owner may see.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

// Owner is an account that uploads reports.
type Owner struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name" validate:"required,max=100"`
	Email     string    `json:"email" validate:"required,email"`
	Role      Role      `json:"role" validate:"required,oneof=customer admin"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// ReportIndicator is one entry of the statistic catalog, e.g. "Median".
type ReportIndicator struct {
	ID   int64  `json:"id"`
	Name string `json:"name" validate:"required,max=50"`
}

// IndicatorValue is the result of one ReportIndicator applied to one Column.
type IndicatorValue struct {
	ID                int64         `json:"id"`
	ColumnID          int64         `json:"column_id"`
	ReportIndicatorID int64         `json:"report_indicator_id"`
	IndicatorName     string        `json:"indicator_name"`
	Value             OptionalFloat `json:"value"`
	IsActive          bool          `json:"is_active"`
}

// Column is a validated numeric column of an uploaded sheet.
type Column struct {
	ID              int64            `json:"id"`
	Name            string           `json:"name" validate:"required,max=20"`
	Values          []OptionalFloat  `json:"values" validate:"min=1"`
	IndicatorValues []IndicatorValue `json:"indicator_values"`
	IsActive        bool             `json:"is_active"`
}

// Report is the persisted result of one successful upload.
type Report struct {
	ID                       int64     `json:"id"`
	OwnerID                  int64     `json:"owner_id"`
	StorageLink              string    `json:"storage_link"`
	UploadedAt               time.Time `json:"uploaded_at"`
	Columns                  []Column  `json:"columns"`
	FitsCorrelationAnalysis  bool      `json:"fits_correlation_analysis"`
	FitsDiscriminantAnalysis bool      `json:"fits_discriminant_analysis"`
	IsActive                 bool      `json:"is_active"`
}

// ColumnIDs returns the ids of the report's columns in order.
func (r *Report) ColumnIDs() []int64 {
	ids := make([]int64, len(r.Columns))
	for i, c := range r.Columns {
		ids[i] = c.ID
	}
	return ids
}

// IndicatorReading pairs a computed value with its indicator name.
// It marshals as a two element array: [value, name].
type IndicatorReading struct {
	Value OptionalFloat
	Name  string
}

// MarshalJSON renders the reading as [value, name].
func (r IndicatorReading) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{r.Value, r.Name})
}
