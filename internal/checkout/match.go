package checkout

import (
	"sort"
	"strings"
	"time"
)

// Lookup is what the operator has typed into a checkout form.
type Lookup struct {
	FullName    string
	PhoneNumber string
	Code        string
}

// MatchClient finds the client a checkout form refers to. It tries, in order:
// an exact full name, a name containing every typed token, a phone number
// containing the typed phone, and the client code. No match is not an error.
func MatchClient(clients []Client, q Lookup) (Client, bool) {
	full := strings.ToLower(strings.TrimSpace(q.FullName))
	if full != "" {
		for _, c := range clients {
			if strings.ToLower(c.FullName()) == full {
				return c, true
			}
		}
		tokens := strings.Fields(full)
		for _, c := range clients {
			name := strings.ToLower(c.FullName())
			if containsAll(name, tokens) {
				return c, true
			}
		}
	}

	if phone := strings.TrimSpace(q.PhoneNumber); phone != "" {
		for _, c := range clients {
			if c.PhoneNumber != "" && strings.Contains(c.PhoneNumber, phone) {
				return c, true
			}
		}
	}

	if code := strings.TrimSpace(q.Code); code != "" {
		for _, c := range clients {
			if strings.EqualFold(c.Code, code) {
				return c, true
			}
		}
	}
	return Client{}, false
}

func containsAll(s string, tokens []string) bool {
	if len(tokens) == 0 {
		return false
	}
	for _, t := range tokens {
		if !strings.Contains(s, t) {
			return false
		}
	}
	return true
}

// Suggestion is a past customer offered for auto-fill.
type Suggestion struct {
	FirstName   string    `json:"firstName"`
	LastName    string    `json:"lastName"`
	PhoneNumber string    `json:"phoneNumber"`
	LastSeen    time.Time `json:"lastSeen"`
}

const (
	maxSuggestions     = 6
	minSuggestionQuery = 2
)

// SuggestCustomers returns past customers whose name or phone contains query,
// newest first. Customers are deduplicated by phone, else by name, keeping
// their latest sighting.
func SuggestCustomers(history []PlayHistoryItem, query string) []Suggestion {
	q := strings.ToLower(strings.TrimSpace(query))
	if len(q) < minSuggestionQuery {
		return nil
	}

	latest := make(map[string]Suggestion)
	for _, h := range history {
		first := strings.TrimSpace(h.FirstName)
		last := strings.TrimSpace(h.LastName)
		phone := strings.TrimSpace(h.PhoneNumber)
		if first == "" && last == "" && phone == "" {
			continue
		}
		key := h.customerKey()
		seen := h.seenAt()
		if prev, ok := latest[key]; ok && !seen.After(prev.LastSeen) {
			continue
		}
		latest[key] = Suggestion{FirstName: first, LastName: last, PhoneNumber: phone, LastSeen: seen}
	}

	out := make([]Suggestion, 0, len(latest))
	for _, s := range latest {
		name := strings.ToLower(strings.TrimSpace(s.FirstName + " " + s.LastName))
		if strings.Contains(name, q) || strings.Contains(strings.ToLower(s.PhoneNumber), q) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].LastSeen.Equal(out[j].LastSeen) {
			return out[i].LastSeen.After(out[j].LastSeen)
		}
		return out[i].PhoneNumber+out[i].FirstName+out[i].LastName < out[j].PhoneNumber+out[j].FirstName+out[j].LastName
	})
	if len(out) > maxSuggestions {
		out = out[:maxSuggestions]
	}
	return out
}
