package shared

// Direction defines which side of the proximity link produced a transfer
type Direction string

const (
	DirectionOutgoing Direction = "OUTGOING"
	DirectionIncoming Direction = "INCOMING"
)

// TransferStatus defines transfer lifecycle states
type TransferStatus string

const (
	TransferStatusCreated          TransferStatus = "CREATED"
	TransferStatusSigned           TransferStatus = "SIGNED"
	TransferStatusReceived         TransferStatus = "RECEIVED"
	TransferStatusFinalized        TransferStatus = "FINALIZED"
	TransferStatusPendingBroadcast TransferStatus = "PENDING_BROADCAST"
	TransferStatusCompleted        TransferStatus = "COMPLETED"

	// TransferStatusRejected marks a discarded incoming transfer; it is never persisted
	TransferStatusRejected TransferStatus = "REJECTED"
)

// HasSignedPayload reports whether a record in this status must carry a signed payload
func (s TransferStatus) HasSignedPayload() bool {
	switch s {
	case TransferStatusSigned, TransferStatusReceived, TransferStatusFinalized,
		TransferStatusPendingBroadcast, TransferStatusCompleted:
		return true
	default:
		return false
	}
}

// Valid reports whether s is a known status
func (s TransferStatus) Valid() bool {
	return s == TransferStatusCreated || s.HasSignedPayload()
}

// AuditAction defines journaled lifecycle actions
type AuditAction string

const (
	AuditActionCreated     AuditAction = "CREATED"
	AuditActionSigned      AuditAction = "SIGNED"
	AuditActionTransmitted AuditAction = "TRANSMITTED"
	AuditActionReceived    AuditAction = "RECEIVED"
	AuditActionRejected    AuditAction = "REJECTED"
	AuditActionQueued      AuditAction = "QUEUED"
	AuditActionBroadcast   AuditAction = "BROADCAST"
	AuditActionFailed      AuditAction = "BROADCAST_FAILED"
)

// EventType defines transfer lifecycle events published to the event stream
type EventType string

const (
	EventTypeTransferQueued    EventType = "TRANSFER_QUEUED"
	EventTypeTransferCompleted EventType = "TRANSFER_COMPLETED"
	EventTypeTransferRejected  EventType = "TRANSFER_REJECTED"
)
