package core

// OwnerKind classifies what entity references an attachment. The owner
// kind determines whether a recency timestamp is available: only
// message-owned attachments carry the received-at time of their message.
type OwnerKind int

const (
	OwnerKindMessage OwnerKind = iota
	OwnerKindStory
	OwnerKindThread
)

func (k OwnerKind) String() string {
	switch k {
	case OwnerKindMessage:
		return "message"
	case OwnerKindStory:
		return "story"
	case OwnerKindThread:
		return "thread"
	default:
		return "unknown"
	}
}

// AttachmentReference identifies an attachment discovered during backup
// restore, as handed to the download queue by the restore pipeline.
// AttachmentRowID is a stable foreign key into the attachment catalog.
type AttachmentReference struct {
	AttachmentRowID int64
	Owner           OwnerKind

	// MessageReceivedAtMs is the received-at time of the owning message
	// in milliseconds. Only meaningful when Owner is OwnerKindMessage.
	MessageReceivedAtMs uint64
}

// ReceivedAtTimestamp returns the reference's priority timestamp, or nil
// when the owner kind carries no recency information. Absent timestamps
// sort as +infinity in queue priority comparisons.
func (r AttachmentReference) ReceivedAtTimestamp() *uint64 {
	if r.Owner != OwnerKindMessage {
		return nil
	}
	ts := r.MessageReceivedAtMs
	return &ts
}

// QueuedAttachmentDownload is one row of the backup attachment download
// queue. InsertionOrderID is assigned by the store on insert and grows
// monotonically; Peek returns rows in descending insertion order.
type QueuedAttachmentDownload struct {
	InsertionOrderID int64
	AttachmentRowID  int64

	// ReceivedAtMs is the priority timestamp, nil for story- and
	// thread-owned attachments.
	ReceivedAtMs *uint64
}
