package auditlog

import (
	"log"

	"fieldstock/pkg/models"
)

type LogRepository interface {
	PersistLog(auditLog models.AuditLog, data interface{}) error
}

type Auditlog struct {
	r LogRepository
}

type Auditable interface {
	CreateLogView() models.AuditLog
}

// Log persists an activity entry. Best effort: a failed write is logged and
// never propagated, the ledger operation it annotates has already committed.
func (a *Auditlog) Log(action string, data interface{}, item Auditable) {
	auditLog := item.CreateLogView()
	auditLog.Action = action

	err := a.r.PersistLog(auditLog, data)

	if err != nil {
		log.Println("Unable to create AuditLog entry for id ", auditLog.ResourceID)
		return
	}
}

// LogNoop records the "activity recorded, no balance mutation" outcome for
// untracked or unresolvable items.
func (a *Auditlog) LogNoop(reason string, data interface{}, item Auditable) {
	auditLog := item.CreateLogView()
	auditLog.Action = "noop"

	payload := map[string]interface{}{
		"reason": reason,
		"data":   data,
	}

	if err := a.r.PersistLog(auditLog, payload); err != nil {
		log.Println("Unable to create no-op AuditLog entry for id ", auditLog.ResourceID)
	}
}

func NewAuditLog(repository LogRepository) *Auditlog {
	a := Auditlog{r: repository}

	return &a
}
