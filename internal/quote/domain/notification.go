package domain

import (
	"github.com/shopspring/decimal"
)

// NotificationPayload is the body handed to the order channel when a quote
// is approved or sent.
type NotificationPayload struct {
	QuoteID            string             `json:"quote_id"`
	QuoteNumber        string             `json:"quote_number"`
	CustomerID         string             `json:"customer_id"`
	Region             string             `json:"region"`
	Status             Status             `json:"status"`
	ApprovalCycle      int                `json:"approval_cycle"`
	PaymentConditionID *string            `json:"payment_condition_id,omitempty"`
	DecidedBy          string             `json:"decided_by,omitempty"`
	Totals             Totals             `json:"totals"`
	Items              []NotificationItem `json:"items"`
}

type NotificationItem struct {
	ProductID    string          `json:"product_id"`
	ProductName  string          `json:"product_name"`
	Quantity     int64           `json:"quantity"`
	OfferedPrice decimal.Decimal `json:"offered_price"`
}

func NewNotificationPayload(q Quote, decidedBy string) NotificationPayload {
	items := make([]NotificationItem, 0, len(q.Items))
	for _, item := range q.Items {
		items = append(items, NotificationItem{
			ProductID:    item.ProductID,
			ProductName:  item.ProductName,
			Quantity:     item.Quantity,
			OfferedPrice: item.OfferedPrice,
		})
	}
	return NotificationPayload{
		QuoteID:            q.ID.String(),
		QuoteNumber:        q.QuoteNumber,
		CustomerID:         q.CustomerID,
		Region:             string(q.Region),
		Status:             q.Status,
		ApprovalCycle:      q.ApprovalCycle,
		PaymentConditionID: q.PaymentConditionID,
		DecidedBy:          decidedBy,
		Totals:             q.Totals,
		Items:              items,
	}
}
