package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskRoleAudit re-validates every stored role permission document.
	TaskRoleAudit = "rbac:role_audit"
)

// RoleAuditPayload describes a role audit run.
type RoleAuditPayload struct {
	// Trigger records who asked for the run, "cron" or "manual".
	Trigger string `json:"trigger"`
}

// NewRoleAuditTask constructs an Asynq task for the role document audit.
func NewRoleAuditTask(trigger string) (*asynq.Task, error) {
	if trigger == "" {
		trigger = "manual"
	}
	data, err := json.Marshal(RoleAuditPayload{Trigger: trigger})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskRoleAudit, data), nil
}
