package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// SchemaVersion is the payload layout written by this build.
const SchemaVersion = 1

type EventType string

const (
	EventQuoteCreated         EventType = "quote.created"
	EventQuoteItemAdded       EventType = "quote.item_added"
	EventQuoteItemUpdated     EventType = "quote.item_updated"
	EventQuoteItemRemoved     EventType = "quote.item_removed"
	EventQuoteStatusChanged   EventType = "quote.status_changed"
	EventApprovalRequested    EventType = "approval.requested"
	EventApprovalStepAdvanced EventType = "approval.step_advanced"
	EventApprovalApproved     EventType = "approval.approved"
	EventApprovalRejected     EventType = "approval.rejected"
	EventApprovalExpired      EventType = "approval.expired"
	EventApprovalEscalated    EventType = "approval.escalated"
	EventApprovalSLAWarning   EventType = "approval.sla_warning"
	EventQuoteSent            EventType = "quote.sent"
	EventQuoteConverted       EventType = "quote.converted"
)

// Payload is implemented by the typed body of each event type.
type Payload interface {
	EventType() EventType
}

type QuoteCreated struct {
	QuoteNumber string `json:"quote_number"`
	CustomerID  string `json:"customer_id"`
	Region      string `json:"region"`
	IsInterLab  bool   `json:"is_inter_lab"`
}

// ItemSnapshot captures the priced state of a line.
type ItemSnapshot struct {
	ItemID        string          `json:"item_id"`
	ProductID     string          `json:"product_id"`
	Quantity      int64           `json:"quantity"`
	OfferedPrice  decimal.Decimal `json:"offered_price"`
	MarginPercent decimal.Decimal `json:"margin_percent"`
	IsAuthorized  bool            `json:"is_authorized"`
	RequiredRole  string          `json:"required_role,omitempty"`
}

type ItemAdded struct {
	Item ItemSnapshot `json:"item"`
}

type ItemUpdated struct {
	Before ItemSnapshot `json:"before"`
	After  ItemSnapshot `json:"after"`
}

type ItemRemoved struct {
	Item ItemSnapshot `json:"item"`
}

type StatusChanged struct {
	Reason        string `json:"reason,omitempty"`
	ApprovalCycle int    `json:"approval_cycle"`
}

type ApprovalRequested struct {
	RequestID     string          `json:"request_id"`
	RuleID        string          `json:"rule_id,omitempty"`
	RequiredRole  string          `json:"required_role"`
	StepOrder     int             `json:"step_order"`
	TotalSteps    int             `json:"total_steps"`
	ExpiresAt     time.Time       `json:"expires_at"`
	Reason        string          `json:"reason"`
	QuoteTotal    decimal.Decimal `json:"quote_total"`
	MarginPercent decimal.Decimal `json:"margin_percent"`
}

type ApprovalStepAdvanced struct {
	PreviousRequestID string    `json:"previous_request_id"`
	RequestID         string    `json:"request_id"`
	RequiredRole      string    `json:"required_role"`
	StepOrder         int       `json:"step_order"`
	TotalSteps        int       `json:"total_steps"`
	ExpiresAt         time.Time `json:"expires_at"`
}

type ApprovalApproved struct {
	RequestID  string `json:"request_id"`
	ApprovedBy string `json:"approved_by"`
	Comments   string `json:"comments"`
	StepOrder  int    `json:"step_order"`
	TotalSteps int    `json:"total_steps"`
	Final      bool   `json:"final"`
}

type ApprovalRejected struct {
	RequestID  string `json:"request_id"`
	RejectedBy string `json:"rejected_by"`
	Comments   string `json:"comments"`
	StepOrder  int    `json:"step_order"`
}

type ApprovalExpired struct {
	RequestID    string    `json:"request_id"`
	RequiredRole string    `json:"required_role"`
	ExpiresAt    time.Time `json:"expires_at"`
	Policy       string    `json:"policy"`
	RequestedBy  string    `json:"requested_by"`
}

type ApprovalEscalated struct {
	PreviousRequestID string    `json:"previous_request_id"`
	RequestID         string    `json:"request_id"`
	FromRole          string    `json:"from_role"`
	ToRole            string    `json:"to_role"`
	ExpiresAt         time.Time `json:"expires_at"`
}

type ApprovalSLAWarning struct {
	RequestID      string          `json:"request_id"`
	RequiredRole   string          `json:"required_role"`
	ExpiresAt      time.Time       `json:"expires_at"`
	RemainingHours decimal.Decimal `json:"remaining_business_hours"`
}

type QuoteSent struct {
	TotalOffered decimal.Decimal `json:"total_offered"`
}

type QuoteConverted struct {
	OrderReference string `json:"order_reference,omitempty"`
}

func (QuoteCreated) EventType() EventType         { return EventQuoteCreated }
func (ItemAdded) EventType() EventType            { return EventQuoteItemAdded }
func (ItemUpdated) EventType() EventType          { return EventQuoteItemUpdated }
func (ItemRemoved) EventType() EventType          { return EventQuoteItemRemoved }
func (StatusChanged) EventType() EventType        { return EventQuoteStatusChanged }
func (ApprovalRequested) EventType() EventType    { return EventApprovalRequested }
func (ApprovalStepAdvanced) EventType() EventType { return EventApprovalStepAdvanced }
func (ApprovalApproved) EventType() EventType     { return EventApprovalApproved }
func (ApprovalRejected) EventType() EventType     { return EventApprovalRejected }
func (ApprovalExpired) EventType() EventType      { return EventApprovalExpired }
func (ApprovalEscalated) EventType() EventType    { return EventApprovalEscalated }
func (ApprovalSLAWarning) EventType() EventType   { return EventApprovalSLAWarning }
func (QuoteSent) EventType() EventType            { return EventQuoteSent }
func (QuoteConverted) EventType() EventType       { return EventQuoteConverted }

var payloadTypes = map[EventType]func() Payload{
	EventQuoteCreated:         func() Payload { return &QuoteCreated{} },
	EventQuoteItemAdded:       func() Payload { return &ItemAdded{} },
	EventQuoteItemUpdated:     func() Payload { return &ItemUpdated{} },
	EventQuoteItemRemoved:     func() Payload { return &ItemRemoved{} },
	EventQuoteStatusChanged:   func() Payload { return &StatusChanged{} },
	EventApprovalRequested:    func() Payload { return &ApprovalRequested{} },
	EventApprovalStepAdvanced: func() Payload { return &ApprovalStepAdvanced{} },
	EventApprovalApproved:     func() Payload { return &ApprovalApproved{} },
	EventApprovalRejected:     func() Payload { return &ApprovalRejected{} },
	EventApprovalExpired:      func() Payload { return &ApprovalExpired{} },
	EventApprovalEscalated:    func() Payload { return &ApprovalEscalated{} },
	EventApprovalSLAWarning:   func() Payload { return &ApprovalSLAWarning{} },
	EventQuoteSent:            func() Payload { return &QuoteSent{} },
	EventQuoteConverted:       func() Payload { return &QuoteConverted{} },
}

// EncodePayload serializes p for storage.
func EncodePayload(p Payload) ([]byte, error) {
	if p == nil {
		return nil, ErrMissingPayload
	}
	if _, ok := payloadTypes[p.EventType()]; !ok {
		return nil, ErrUnknownEventType
	}
	return json.Marshal(p)
}

// DecodePayload returns the typed payload of a stored event. Events written
// with a schema version this build does not know are rejected.
func DecodePayload(e QuoteEvent) (Payload, error) {
	if e.SchemaVersion != SchemaVersion {
		return nil, ErrUnsupportedSchema
	}
	factory, ok := payloadTypes[e.EventType]
	if !ok {
		return nil, ErrUnknownEventType
	}
	p := factory()
	if len(e.Payload) == 0 {
		return p, nil
	}
	if err := json.Unmarshal(e.Payload, p); err != nil {
		return nil, err
	}
	return p, nil
}
