package listener

import (
	"time"

	"github.com/MrJamesThe3rd/pocketbook/internal/docstore"
	"github.com/MrJamesThe3rd/pocketbook/internal/ledger"
)

var timestampKeys = []string{"created_at", "updated_at"}

// normalize coerces one incoming document to its canonical shape: backend
// timestamp representations become RFC3339 strings and structural defaults
// are filled in. Documents without an id are rejected; the caller logs and
// skips them so one bad record cannot sink a whole batch.
func normalize(collection string, doc docstore.Document) (docstore.Document, bool) {
	if doc.String("id") == "" {
		return nil, false
	}

	out := doc.Clone()

	for _, key := range timestampKeys {
		if _, present := out[key]; !present {
			continue
		}

		if t, ok := out.Time(key); ok {
			out[key] = t.UTC().Format(time.RFC3339Nano)
		} else {
			delete(out, key)
		}
	}

	switch collection {
	case ledger.CollectionAccounts:
		fillDefault(out, "name", "Unnamed account")
		fillDefault(out, "type", string(ledger.AccountWallet))
	case ledger.CollectionCategories:
		fillDefault(out, "name", "Uncategorized")
		fillDefault(out, "type", string(ledger.TypeExpense))
		fillDefault(out, "color", "#9E9E9E")
	case ledger.CollectionTransactions:
		if out["tags"] == nil {
			out["tags"] = []string{}
		}
	}

	return out, true
}

func fillDefault(doc docstore.Document, key, value string) {
	if doc.String(key) == "" {
		doc[key] = value
	}
}
