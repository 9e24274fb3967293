package syncer

import (
	"github.com/MrJamesThe3rd/pocketbook/internal/ledger"
	"github.com/MrJamesThe3rd/pocketbook/internal/queue"
)

// RepairRule is a (predicate, repair) pair evaluated before a record is
// abandoned. Rules must return a repaired copy and leave the input intact.
type RepairRule struct {
	Name    string
	Applies func(op queue.PendingOperation) bool
	Repair  func(op queue.PendingOperation) queue.PendingOperation
}

func defaultRepairs() []RepairRule {
	return []RepairRule{missingTagsRepair()}
}

// missingTagsRepair normalizes create-transaction payloads whose tags field
// is missing or nil to an empty set and strips nil-valued keys.
func missingTagsRepair() RepairRule {
	return RepairRule{
		Name: "transaction-missing-tags",
		Applies: func(op queue.PendingOperation) bool {
			if op.Kind != queue.KindCreate || op.Collection != ledger.CollectionTransactions {
				return false
			}

			tags, ok := op.Payload["tags"]

			return !ok || tags == nil
		},
		Repair: func(op queue.PendingOperation) queue.PendingOperation {
			payload := queue.StripNil(op.Payload)
			payload["tags"] = []string{}
			op.Payload = payload

			return op
		},
	}
}
