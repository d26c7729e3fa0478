package domain

type Status string

const (
	StatusDraft           Status = "draft"
	StatusCalculated      Status = "calculated"
	StatusPendingApproval Status = "pending_approval"
	StatusApproved        Status = "approved"
	StatusRejected        Status = "rejected"
	StatusSent            Status = "sent"
	StatusExpired         Status = "expired"
	StatusConverted       Status = "converted"
)

var transitions = map[Status][]Status{
	StatusDraft:           {StatusCalculated, StatusPendingApproval, StatusApproved, StatusExpired, StatusRejected},
	StatusCalculated:      {StatusPendingApproval, StatusApproved, StatusSent, StatusExpired, StatusRejected},
	StatusPendingApproval: {StatusApproved, StatusRejected, StatusExpired},
	StatusApproved:        {StatusSent, StatusExpired, StatusRejected},
	StatusSent:            {StatusConverted, StatusExpired},
	StatusRejected:        {StatusDraft},
	StatusExpired:         {StatusDraft},
}

// CanTransition reports whether a quote may move from s to next.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Editable reports whether items may change in status s. Rejected and
// expired quotes are reset to draft first.
func (s Status) Editable() bool {
	switch s {
	case StatusDraft, StatusCalculated, StatusRejected, StatusExpired:
		return true
	}
	return false
}

// NeedsReset reports whether an edit must first start a new approval cycle.
func (s Status) NeedsReset() bool {
	return s == StatusRejected || s == StatusExpired
}

func (s Status) Terminal() bool {
	return s == StatusConverted
}
