// Package events contains the event contracts pushed over the WebSocket stream.
package events

import (
	"time"
)

// MessageType defines the type of WebSocket message
type MessageType string

const (
	MessageTypeReportStage MessageType = "report:stage"
	MessageTypeConnect     MessageType = "connect"
	MessageTypeError       MessageType = "error"
)

// Stage is a step of the upload pipeline.
type Stage string

const (
	StageUploading           Stage = "uploading"
	StageValidating          Stage = "validating"
	StageComputingIndicators Stage = "computing_indicators"
	StageClassifying         Stage = "classifying"
	StagePersisted           Stage = "persisted"
	StageRejected            Stage = "rejected"
	StageFailed              Stage = "failed"
)

// Terminal reports whether no further stage follows s.
func (s Stage) Terminal() bool {
	return s == StagePersisted || s == StageRejected || s == StageFailed
}

// Message is the envelope of every WebSocket message.
type Message struct {
	ID        string      `json:"id"`
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	TraceID   string      `json:"trace_id,omitempty"`
	Data      interface{} `json:"data,omitempty"`
}

// ReportStageEvent announces that an upload entered a stage.
type ReportStageEvent struct {
	UploadID string `json:"upload_id"`
	OwnerID  int64  `json:"owner_id"`
	Filename string `json:"filename"`
	Stage    Stage  `json:"stage"`
	ReportID int64  `json:"report_id,omitempty"`
	Columns  int    `json:"columns,omitempty"`
	Error    string `json:"error,omitempty"`
}
