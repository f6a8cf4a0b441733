package scheduling

import "errors"

// Domain errors. All are recoverable and returned to the caller; none
// crash the engine. Store failures are wrapped in ErrStoreUnavailable so
// callers can tell infrastructure trouble from domain rejections.
var (
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrCapacityExceeded    = errors.New("specialization capacity exceeded")
	ErrDuplicateAssignment = errors.New("worker already assigned to task")
	ErrWorkerNotAssigned   = errors.New("worker not assigned to task")
	ErrDateOutOfRange      = errors.New("date outside task period")
	ErrWorkerNotEligible   = errors.New("worker specialization not eligible for task")
	ErrRequestNotPending   = errors.New("change request already resolved")
	ErrValidation          = errors.New("validation failed")

	ErrTaskNotFound      = errors.New("weekly task not found")
	ErrDailyTaskNotFound = errors.New("daily task not found")
	ErrRequestNotFound   = errors.New("change request not found")
	ErrWorkerNotFound    = errors.New("worker not found")

	ErrStoreUnavailable = errors.New("store unavailable")
)
