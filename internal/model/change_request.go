package model

import "time"

type RequestType string

const (
	RequestExtension           RequestType = "extension"
	RequestAdditionalWorkers   RequestType = "additional_workers"
	RequestAdditionalMaterials RequestType = "additional_materials"
)

func (t RequestType) Valid() bool {
	switch t {
	case RequestExtension, RequestAdditionalWorkers, RequestAdditionalMaterials:
		return true
	}
	return false
}

type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestRejected RequestStatus = "rejected"
)

func (s RequestStatus) Valid() bool {
	return s == RequestPending || s == RequestApproved || s == RequestRejected
}

// ChangeRequest asks to modify a WeeklyTask's scope: extend the period by
// Magnitude days, or add Magnitude workers/material units.
type ChangeRequest struct {
	ID         int64         `json:"id"`
	TaskID     int64         `json:"task_id"`
	Type       RequestType   `json:"type"`
	Magnitude  int           `json:"magnitude"`
	Reason     string        `json:"reason"`
	Status     RequestStatus `json:"status"`
	CreatedAt  time.Time     `json:"created_at"`
	ResolvedAt *time.Time    `json:"resolved_at,omitempty"`
}
