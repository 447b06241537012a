package checkout

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"gamecenter/internal/events"
	"gamecenter/internal/station"
)

var ErrClientNotFound = errors.New("client not found")

// Client is a named customer, independent of any station.
type Client struct {
	ID          string    `json:"id"`
	FirstName   string    `json:"firstName"`
	LastName    string    `json:"lastName"`
	PhoneNumber string    `json:"phoneNumber,omitempty"`
	Code        string    `json:"code"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (c Client) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

func (c Client) Identity() station.Identity {
	return station.Identity{ClientID: c.ID, Code: c.Code, FullName: c.FullName()}
}

type NewClient struct {
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	PhoneNumber string `json:"phoneNumber"`
}

type ClientPatch struct {
	FirstName   *string `json:"firstName,omitempty"`
	LastName    *string `json:"lastName,omitempty"`
	PhoneNumber *string `json:"phoneNumber,omitempty"`
}

// Clients is the client directory. Codes are unique among active clients.
type Clients struct {
	deps

	mu      sync.Mutex
	clients []Client
}

func NewClients(opts ...Option) *Clients {
	return &Clients{deps: newDeps(opts)}
}

func (d *Clients) Add(ctx context.Context, in NewClient) (Client, error) {
	first := strings.TrimSpace(in.FirstName)
	last := strings.TrimSpace(in.LastName)
	if first == "" && last == "" {
		return Client{}, ErrNameRequired
	}

	d.mu.Lock()
	c := Client{
		ID:          d.newID(),
		FirstName:   first,
		LastName:    last,
		PhoneNumber: strings.TrimSpace(in.PhoneNumber),
		Code:        station.UniqueCode(d.codeTakenLocked),
		CreatedAt:   d.clock.Now(),
	}
	d.clients = append(d.clients, c)
	d.mu.Unlock()

	d.publish(ctx, events.ClientAdded, c)
	return c, nil
}

func (d *Clients) Update(ctx context.Context, id string, patch ClientPatch) (Client, error) {
	d.mu.Lock()
	c := d.findLocked(id)
	if c == nil {
		d.mu.Unlock()
		return Client{}, ErrClientNotFound
	}
	next := *c
	if patch.FirstName != nil {
		next.FirstName = strings.TrimSpace(*patch.FirstName)
	}
	if patch.LastName != nil {
		next.LastName = strings.TrimSpace(*patch.LastName)
	}
	if patch.PhoneNumber != nil {
		next.PhoneNumber = strings.TrimSpace(*patch.PhoneNumber)
	}
	if next.FullName() == "" {
		d.mu.Unlock()
		return Client{}, ErrNameRequired
	}
	*c = next
	d.mu.Unlock()

	d.publish(ctx, events.ClientUpdated, next)
	return next, nil
}

func (d *Clients) Remove(ctx context.Context, id string) error {
	d.mu.Lock()
	for i := range d.clients {
		if d.clients[i].ID == id {
			c := d.clients[i]
			d.clients = append(d.clients[:i], d.clients[i+1:]...)
			d.mu.Unlock()
			d.publish(ctx, events.ClientRemoved, c)
			return nil
		}
	}
	d.mu.Unlock()
	return ErrClientNotFound
}

func (d *Clients) Get(id string) (Client, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if c := d.findLocked(id); c != nil {
		return *c, nil
	}
	return Client{}, ErrClientNotFound
}

// ByCode looks a client up by code, ignoring case.
func (d *Clients) ByCode(code string) (Client, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return Client{}, false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, c := range d.clients {
		if strings.ToUpper(c.Code) == code {
			return c, true
		}
	}
	return Client{}, false
}

func (d *Clients) List() []Client {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Client(nil), d.clients...)
}

func (d *Clients) Identities() []station.Identity {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]station.Identity, len(d.clients))
	for i, c := range d.clients {
		out[i] = c.Identity()
	}
	return out
}

// Restore replaces the directory with persisted clients. Missing or duplicate
// codes are reissued.
func (d *Clients) Restore(clients []Client) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.clients = make([]Client, 0, len(clients))
	for _, c := range clients {
		if c.ID == "" {
			c.ID = d.newID()
		}
		if c.Code == "" || d.codeTakenLocked(c.Code) {
			c.Code = station.UniqueCode(d.codeTakenLocked)
		}
		d.clients = append(d.clients, c)
	}
}

func (d *Clients) codeTakenLocked(code string) bool {
	for _, c := range d.clients {
		if strings.EqualFold(c.Code, code) {
			return true
		}
	}
	return false
}

func (d *Clients) findLocked(id string) *Client {
	for i := range d.clients {
		if d.clients[i].ID == id {
			return &d.clients[i]
		}
	}
	return nil
}

func (d *Clients) publish(ctx context.Context, eventType string, c Client) {
	d.pub.Publish(ctx, events.New(eventType, c.ID, c, d.clock.Now()))
}
