package shared

// Origin identifies which of the two independent invoice sources a record came from
type Origin string

const (
	OriginExternal Origin = "EXTERNAL" // accounting sync feed
	OriginManual   Origin = "MANUAL"   // upload/OCR pipeline backed by a Document
)

// PrincipalType identifies who performed an action
type PrincipalType string

const (
	PrincipalSystem PrincipalType = "SYSTEM"
	PrincipalUser   PrincipalType = "USER"
)

// Principal is the acting identity recorded on audit events
type Principal struct {
	Type PrincipalType `json:"type" bson:"type"`
	ID   string        `json:"id" bson:"id"`
}

// SystemPrincipal is used for automatic actions triggered without a user
func SystemPrincipal(component string) Principal {
	return Principal{Type: PrincipalSystem, ID: component}
}

// OutboxStatus defines message publishing states
type OutboxStatus string

const (
	OutboxStatusPending         OutboxStatus = "PENDING"
	OutboxStatusProcessed       OutboxStatus = "PROCESSED"
	OutboxStatusFailedToPublish OutboxStatus = "FAILED_TO_PUBLISH"
)
