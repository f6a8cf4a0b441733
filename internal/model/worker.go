package model

type WorkerStatus string

const (
	WorkerActive   WorkerStatus = "active"
	WorkerInactive WorkerStatus = "inactive"
)

func (s WorkerStatus) Valid() bool {
	return s == WorkerActive || s == WorkerInactive
}

// SpecializationGeneral is the wildcard tag: a general worker is a
// candidate for any specialization slot.
const SpecializationGeneral = "general"

type Worker struct {
	ID             int64        `json:"id"`
	Name           string       `json:"name"`
	Specialization string       `json:"specialization"`
	Status         WorkerStatus `json:"status"`
	AssignedTasks  int          `json:"assigned_tasks"`
	Rating         float64      `json:"rating"`
}

// Covers reports whether the worker can fill a slot of the given
// specialization.
func (w Worker) Covers(specialization string) bool {
	return w.Specialization == specialization || w.Specialization == SpecializationGeneral
}
