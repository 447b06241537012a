package checkout

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"gamecenter/internal/station"
)

// PaymentRecord is one entry of the append-only payment ledger.
type PaymentRecord struct {
	Amount int64     `json:"amount"`
	Date   time.Time `json:"date"`
	Note   string    `json:"note,omitempty"`
}

// PlayHistoryItem is the record of a checked-out session. Money fields change
// only through AddPayment.
type PlayHistoryItem struct {
	ID              string            `json:"id"`
	SessionType     station.Kind      `json:"sessionType,omitempty"`
	TableKind       station.TableKind `json:"tableKind,omitempty"`
	WinnerCode      string            `json:"winnerCode,omitempty"`
	PlayersCount    int               `json:"playersCount,omitempty"`
	Players         []station.Player  `json:"players,omitempty"`
	CardID          string            `json:"cardId"`
	CardTitle       string            `json:"cardTitle"`
	ClientID        string            `json:"clientId,omitempty"`
	SessionDate     *time.Time        `json:"sessionDate,omitempty"`
	StartedAt       *time.Time        `json:"startedAt,omitempty"`
	StoppedAt       *time.Time        `json:"stoppedAt,omitempty"`
	SecondsPlayed   int64             `json:"secondsPlayed"`
	CostPerHour     int64             `json:"costPerHour"`
	TotalCost       int64             `json:"totalCost"`
	FirstName       string            `json:"firstName"`
	LastName        string            `json:"lastName"`
	PhoneNumber     string            `json:"phoneNumber"`
	ClientCode      string            `json:"clientCode,omitempty"`
	PaidAmount      int64             `json:"paidAmount"`
	PaidFully       bool              `json:"paidFully"`
	RemainingAmount int64             `json:"remainingAmount"`
	CreatedAt       time.Time         `json:"createdAt"`
	PaymentHistory  []PaymentRecord   `json:"paymentHistory,omitempty"`
}

// FullName is "first last" with surrounding space trimmed.
func (h PlayHistoryItem) FullName() string {
	return strings.TrimSpace(h.FirstName + " " + h.LastName)
}

// customerKey groups history rows by phone, else by full name.
func (h PlayHistoryItem) customerKey() string {
	if phone := strings.TrimSpace(h.PhoneNumber); phone != "" {
		return phone
	}
	return h.FullName()
}

// seenAt is when the session ended, falling back to when it was recorded.
func (h PlayHistoryItem) seenAt() time.Time {
	if h.StoppedAt != nil && !h.StoppedAt.IsZero() {
		return *h.StoppedAt
	}
	return h.CreatedAt
}

// settle clamps the paid amount into [0, totalCost] and derives the
// remaining amount and the paid flag from it.
func (h *PlayHistoryItem) settle() {
	if h.TotalCost < 0 {
		h.TotalCost = 0
	}
	h.PaidAmount = clamp(h.PaidAmount, 0, h.TotalCost)
	h.RemainingAmount = h.TotalCost - h.PaidAmount
	h.PaidFully = h.RemainingAmount == 0
}

func (h PlayHistoryItem) clone() PlayHistoryItem {
	c := h
	c.Players = append([]station.Player(nil), h.Players...)
	c.PaymentHistory = append([]PaymentRecord(nil), h.PaymentHistory...)
	c.SessionDate = copyTime(h.SessionDate)
	c.StartedAt = copyTime(h.StartedAt)
	c.StoppedAt = copyTime(h.StoppedAt)
	return c
}

// UnmarshalJSON accepts rows written with a numeric cardId.
func (h *PlayHistoryItem) UnmarshalJSON(data []byte) error {
	type plain PlayHistoryItem
	aux := struct {
		*plain
		CardID json.RawMessage `json:"cardId"`
	}{plain: (*plain)(h)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	id, err := flexibleID(aux.CardID)
	if err != nil {
		return err
	}
	h.CardID = id
	return nil
}

func flexibleID(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	switch {
	case len(raw) == 0 || bytes.Equal(raw, []byte("null")):
		return "", nil
	case raw[0] == '"':
		var s string
		err := json.Unmarshal(raw, &s)
		return s, err
	default:
		return string(raw), nil
	}
}

func clamp(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
