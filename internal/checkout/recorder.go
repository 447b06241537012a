package checkout

import (
	"context"
	"errors"
	"strings"
	"sync"

	"gamecenter/internal/events"
	"gamecenter/internal/station"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

var (
	ErrNotFound      = errors.New("history item not found")
	ErrUnknownWinner = errors.New("winner code is not on the roster")
	ErrNameRequired  = errors.New("client needs a first or last name")
)

type deps struct {
	clock clockwork.Clock
	pub   events.Publisher
	newID func() string
}

type Option func(*deps)

func WithClock(clock clockwork.Clock) Option {
	return func(d *deps) { d.clock = clock }
}

func WithPublisher(pub events.Publisher) Option {
	return func(d *deps) { d.pub = pub }
}

func WithIDGenerator(fn func() string) Option {
	return func(d *deps) { d.newID = fn }
}

func newDeps(opts []Option) deps {
	d := deps{
		clock: clockwork.NewRealClock(),
		pub:   events.Discard,
		newID: func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(&d)
	}
	return d
}

// Customer is the operator-entered identity at checkout. FullName is split
// into first and last name when those are empty. A matched client fills any
// field left blank and links the record.
type Customer struct {
	FirstName     string
	LastName      string
	PhoneNumber   string
	FullName      string
	MatchedClient *Client
	WinnerCode    string
}

// Payment is the operator-entered payment at checkout.
type Payment struct {
	PaidFully  bool
	PaidAmount int64
}

// Recorder owns the play history list.
type Recorder struct {
	deps

	mu    sync.Mutex
	items []PlayHistoryItem
}

func NewRecorder(opts ...Option) *Recorder {
	return &Recorder{deps: newDeps(opts)}
}

// Checkout turns a stop draft into a new history item and appends it.
func (r *Recorder) Checkout(ctx context.Context, draft station.StopDraft, c Customer, p Payment) (PlayHistoryItem, error) {
	winner := strings.TrimSpace(c.WinnerCode)
	if winner != "" {
		if _, ok := station.PlayerByCode(draft.Players, winner); !ok {
			return PlayHistoryItem{}, ErrUnknownWinner
		}
	}

	now := r.clock.Now()
	stopped := draft.StoppedAt
	if stopped.IsZero() {
		stopped = now
	}
	item := PlayHistoryItem{
		ID:            r.newID(),
		SessionType:   draft.Kind,
		TableKind:     draft.TableKind,
		WinnerCode:    winner,
		CardID:        draft.StationID,
		CardTitle:     draft.Title,
		ClientID:      draft.ClientID,
		SessionDate:   copyTime(draft.SessionDate),
		StartedAt:     copyTime(draft.StartedAt),
		StoppedAt:     &stopped,
		SecondsPlayed: draft.ElapsedSeconds,
		CostPerHour:   draft.CostPerHour,
		TotalCost:     draft.TotalCost,
		CreatedAt:     now,
	}
	if draft.Kind == station.KindTable {
		item.Players = append([]station.Player(nil), draft.Players...)
		item.PlayersCount = len(draft.Players)
		if item.SessionDate == nil {
			item.SessionDate = copyTime(draft.StartedAt)
		}
	}
	applyCustomer(&item, c, draft.CustomerFullName)

	if p.PaidFully {
		item.PaidAmount = item.TotalCost
	} else {
		item.PaidAmount = p.PaidAmount
	}
	item.settle()
	if item.PaidAmount > 0 {
		item.PaymentHistory = []PaymentRecord{{Amount: item.PaidAmount, Date: now}}
	}

	r.mu.Lock()
	r.items = append(r.items, item)
	out := item.clone()
	r.mu.Unlock()

	r.publish(ctx, events.CheckoutCompleted, out)
	return out, nil
}

func applyCustomer(item *PlayHistoryItem, c Customer, sessionName string) {
	first := strings.TrimSpace(c.FirstName)
	last := strings.TrimSpace(c.LastName)
	if first == "" && last == "" {
		full := strings.TrimSpace(c.FullName)
		if full == "" {
			full = strings.TrimSpace(sessionName)
		}
		first, last = SplitName(full)
	}
	phone := strings.TrimSpace(c.PhoneNumber)

	if m := c.MatchedClient; m != nil {
		if first == "" && last == "" {
			first, last = m.FirstName, m.LastName
		}
		if phone == "" {
			phone = m.PhoneNumber
		}
		item.ClientCode = m.Code
		if item.ClientID == "" {
			item.ClientID = m.ID
		}
	}
	item.FirstName = first
	item.LastName = last
	item.PhoneNumber = phone
}

// SplitName takes the first token as first name and the rest as last name.
func SplitName(full string) (first, last string) {
	parts := strings.Fields(full)
	if len(parts) == 0 {
		return "", ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}

// AddPayment appends a top-up to the ledger. Non-positive amounts and items
// already paid in full are left untouched. The recorded amount is capped at
// what was still owed.
func (r *Recorder) AddPayment(ctx context.Context, id string, amount int64, note string) (PlayHistoryItem, error) {
	r.mu.Lock()
	item := r.findLocked(id)
	if item == nil {
		r.mu.Unlock()
		return PlayHistoryItem{}, ErrNotFound
	}
	if amount <= 0 || item.PaidFully {
		out := item.clone()
		r.mu.Unlock()
		log.Debug().Str("history_id", id).Int64("amount", amount).Msg("payment ignored")
		return out, nil
	}
	applied := amount
	if applied > item.RemainingAmount {
		applied = item.RemainingAmount
	}
	item.PaymentHistory = append(item.PaymentHistory, PaymentRecord{
		Amount: applied,
		Date:   r.clock.Now(),
		Note:   strings.TrimSpace(note),
	})
	item.PaidAmount += applied
	item.settle()
	out := item.clone()
	r.mu.Unlock()

	r.publish(ctx, events.PaymentRecorded, out)
	return out, nil
}

// CustomerPatch corrects identity fields. Nil fields are left as they are.
type CustomerPatch struct {
	FirstName   *string `json:"firstName,omitempty"`
	LastName    *string `json:"lastName,omitempty"`
	PhoneNumber *string `json:"phoneNumber,omitempty"`
	ClientCode  *string `json:"clientCode,omitempty"`
	ClientID    *string `json:"clientId,omitempty"`
}

func (r *Recorder) EditCustomerInfo(ctx context.Context, id string, patch CustomerPatch) (PlayHistoryItem, error) {
	r.mu.Lock()
	item := r.findLocked(id)
	if item == nil {
		r.mu.Unlock()
		return PlayHistoryItem{}, ErrNotFound
	}
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = strings.TrimSpace(*v)
		}
	}
	set(&item.FirstName, patch.FirstName)
	set(&item.LastName, patch.LastName)
	set(&item.PhoneNumber, patch.PhoneNumber)
	set(&item.ClientCode, patch.ClientCode)
	set(&item.ClientID, patch.ClientID)
	out := item.clone()
	r.mu.Unlock()

	r.publish(ctx, events.HistoryEdited, out)
	return out, nil
}

func (r *Recorder) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	idx := -1
	for i := range r.items {
		if r.items[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		r.mu.Unlock()
		return ErrNotFound
	}
	out := r.items[idx].clone()
	r.items = append(r.items[:idx], r.items[idx+1:]...)
	r.mu.Unlock()

	r.publish(ctx, events.HistoryDeleted, out)
	return nil
}

func (r *Recorder) Get(id string) (PlayHistoryItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item := r.findLocked(id)
	if item == nil {
		return PlayHistoryItem{}, ErrNotFound
	}
	return item.clone(), nil
}

// List returns copies of the history in checkout order.
func (r *Recorder) List() []PlayHistoryItem {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]PlayHistoryItem, len(r.items))
	for i := range r.items {
		out[i] = r.items[i].clone()
	}
	return out
}

// Restore replaces the history with persisted rows. Rows whose money fields
// disagree are settled from their paid amount.
func (r *Recorder) Restore(items []PlayHistoryItem) {
	restored := make([]PlayHistoryItem, 0, len(items))
	for _, it := range items {
		it = it.clone()
		if it.ID == "" {
			it.ID = r.newID()
		}
		it.settle()
		restored = append(restored, it)
	}
	r.mu.Lock()
	r.items = restored
	r.mu.Unlock()
}

func (r *Recorder) findLocked(id string) *PlayHistoryItem {
	for i := range r.items {
		if r.items[i].ID == id {
			return &r.items[i]
		}
	}
	return nil
}

func (r *Recorder) publish(ctx context.Context, eventType string, item PlayHistoryItem) {
	r.pub.Publish(ctx, events.New(eventType, item.ID, item, r.clock.Now()))
}
