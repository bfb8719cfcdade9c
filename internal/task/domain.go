package task

import "time"

// Task is a federated computation request. The per-organization input
// arrives at the coordinator already sealed to each organization's public
// key; the coordinator stores and relays it as an opaque string.
type Task struct {
	ID            int64
	Name          string
	Image         string
	Description   string
	InitiatorKind string
	InitiatorID   int64
	ParentTaskID  int64
	Completed     bool
	Organizations []Assignment
	CreatedAt     time.Time
}

// Assignment is one organization's share of a task.
type Assignment struct {
	OrganizationID int64
	Input          string
	ResultID       int64
}

// Result is one organization's answer for a task.
type Result struct {
	ID             int64
	TaskID         int64
	OrganizationID int64
	Result         string
	Log            string
	StartedAt      time.Time
	FinishedAt     time.Time
}
