package account

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EventType names a subscription audit event.
type EventType string

const (
	EventSubscribed     EventType = "subscribed"
	EventPlanChanged    EventType = "plan_changed"
	EventPaused         EventType = "paused"
	EventResumed        EventType = "resumed"
	EventCancelled      EventType = "cancelled"
	EventReactivated    EventType = "reactivated"
	EventEnded          EventType = "ended"
	EventRenewed        EventType = "renewed"
	EventDiscountUsed   EventType = "discount_used"
	EventCreditsExpired EventType = "credits_expired"
)

// EventData is implemented by every event payload.
type EventData interface {
	EventType() EventType
}

// Event is an immutable audit record. Business logic never reads events to
// derive state.
type Event struct {
	ID        uuid.UUID `json:"id"`
	AccountID uuid.UUID `json:"account_id"`
	Type      EventType `json:"type"`
	Data      EventData `json:"data"`
	CreatedAt time.Time `json:"created_at"`
}

func NewEvent(accountID uuid.UUID, data EventData, now time.Time) Event {
	return Event{
		ID:        uuid.New(),
		AccountID: accountID,
		Type:      data.EventType(),
		Data:      data,
		CreatedAt: now.UTC(),
	}
}

type SubscribedData struct {
	Plan            string    `json:"plan"`
	SubscriptionRef string    `json:"subscription_ref"`
	PeriodEnd       time.Time `json:"period_end"`
	CreditsGranted  int64     `json:"credits_granted"`
}

type PlanChangedData struct {
	FromPlan         string          `json:"from_plan"`
	ToPlan           string          `json:"to_plan"`
	IsUpgrade        bool            `json:"is_upgrade"`
	ImmediateCharge  decimal.Decimal `json:"immediate_charge"`
	CreditBalance    decimal.Decimal `json:"credit_balance"`
	CreditAdjustment int64           `json:"credit_adjustment"`
	DaysRemaining    int             `json:"days_remaining"`
}

type PausedData struct {
	Duration  string    `json:"duration"`
	PausedAt  time.Time `json:"paused_at"`
	ResumeAt  time.Time `json:"resume_at"`
	PeriodEnd time.Time `json:"period_end"`
}

type ResumedData struct {
	Automatic bool      `json:"automatic"`
	ResumedAt time.Time `json:"resumed_at"`
}

type CancelledData struct {
	Reason    string    `json:"reason,omitempty"`
	PeriodEnd time.Time `json:"period_end"`
}

type ReactivatedData struct {
	PeriodEnd time.Time `json:"period_end"`
}

type EndedData struct {
	Plan    string    `json:"plan"`
	EndedAt time.Time `json:"ended_at"`
}

type RenewedData struct {
	Plan        string    `json:"plan"`
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`
	Credits     int64     `json:"credits"`
}

type DiscountUsedData struct {
	CouponID       string          `json:"coupon_id"`
	PercentOff     decimal.Decimal `json:"percent_off"`
	OriginalAmount decimal.Decimal `json:"original_amount"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	FinalAmount    decimal.Decimal `json:"final_amount"`
	Currency       string          `json:"currency"`
}

type CreditsExpiredData struct {
	Forfeited int64     `json:"forfeited"`
	Floor     int64     `json:"floor"`
	ExpiredAt time.Time `json:"expired_at"`
}

func (SubscribedData) EventType() EventType     { return EventSubscribed }
func (PlanChangedData) EventType() EventType    { return EventPlanChanged }
func (PausedData) EventType() EventType         { return EventPaused }
func (ResumedData) EventType() EventType        { return EventResumed }
func (CancelledData) EventType() EventType      { return EventCancelled }
func (ReactivatedData) EventType() EventType    { return EventReactivated }
func (EndedData) EventType() EventType          { return EventEnded }
func (RenewedData) EventType() EventType        { return EventRenewed }
func (DiscountUsedData) EventType() EventType   { return EventDiscountUsed }
func (CreditsExpiredData) EventType() EventType { return EventCreditsExpired }

// DecodeEventData turns a persisted payload back into its typed form.
func DecodeEventData(t EventType, raw []byte) (EventData, error) {
	var data EventData
	switch t {
	case EventSubscribed:
		data = &SubscribedData{}
	case EventPlanChanged:
		data = &PlanChangedData{}
	case EventPaused:
		data = &PausedData{}
	case EventResumed:
		data = &ResumedData{}
	case EventCancelled:
		data = &CancelledData{}
	case EventReactivated:
		data = &ReactivatedData{}
	case EventEnded:
		data = &EndedData{}
	case EventRenewed:
		data = &RenewedData{}
	case EventDiscountUsed:
		data = &DiscountUsedData{}
	case EventCreditsExpired:
		data = &CreditsExpiredData{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, t)
	}
	if err := json.Unmarshal(raw, data); err != nil {
		return nil, errors.Join(ErrUnknownEventType, err)
	}
	return deref(data), nil
}

func deref(d EventData) EventData {
	switch v := d.(type) {
	case *SubscribedData:
		return *v
	case *PlanChangedData:
		return *v
	case *PausedData:
		return *v
	case *ResumedData:
		return *v
	case *CancelledData:
		return *v
	case *ReactivatedData:
		return *v
	case *EndedData:
		return *v
	case *RenewedData:
		return *v
	case *DiscountUsedData:
		return *v
	case *CreditsExpiredData:
		return *v
	}
	return d
}
