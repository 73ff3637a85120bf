package models

// SyncAck identifies the exact record version a remote write covered.
type SyncAck struct {
	ID       string
	Revision int64
}

// ItemStatus is the outcome of pushing one record.
type ItemStatus string

const (
	StatusSynced ItemStatus = "synced"
	// StatusFailed is a transient failure; the record may be retried.
	StatusFailed ItemStatus = "failed"
	// StatusRejected means the remote refused the record itself.
	StatusRejected     ItemStatus = "rejected"
	StatusUnauthorized ItemStatus = "unauthorized"
)

type ItemResult struct {
	ID       string
	OwnerID  string
	Revision int64
	Status   ItemStatus
	Err      error
}

func (r ItemResult) Ack() SyncAck {
	return SyncAck{ID: r.ID, Revision: r.Revision}
}

// BatchResult reports a PushBatch call item by item.
type BatchResult struct {
	Items []ItemResult
	// Attempts counts batch-mode transport calls across all owner groups.
	Attempts int
	// FellBack is set when at least one owner group was pushed item by item.
	FellBack bool
}

func (b BatchResult) filter(s ItemStatus) []ItemResult {
	var out []ItemResult
	for _, it := range b.Items {
		if it.Status == s {
			out = append(out, it)
		}
	}
	return out
}

func (b BatchResult) Synced() []ItemResult       { return b.filter(StatusSynced) }
func (b BatchResult) Failed() []ItemResult       { return b.filter(StatusFailed) }
func (b BatchResult) Rejected() []ItemResult     { return b.filter(StatusRejected) }
func (b BatchResult) Unauthorized() []ItemResult { return b.filter(StatusUnauthorized) }

// Acks returns the acknowledgements of every synced item.
func (b BatchResult) Acks() []SyncAck {
	synced := b.Synced()
	acks := make([]SyncAck, 0, len(synced))
	for _, it := range synced {
		acks = append(acks, it.Ack())
	}
	return acks
}
