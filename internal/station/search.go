package station

import "strings"

// Identity is the client data the search projection needs.
type Identity struct {
	ClientID string
	Code     string
	FullName string
}

// Filter selects which identity fields a query is matched against. With both
// flags off the query matches codes only.
type Filter struct {
	Query  string
	ByCode bool
	ByName bool
}

func (f Filter) matches(id Identity) bool {
	q := strings.ToLower(strings.TrimSpace(f.Query))
	if q == "" {
		return false
	}
	code := strings.ToLower(strings.TrimSpace(id.Code))
	name := strings.ToLower(strings.TrimSpace(id.FullName))
	if !f.ByCode && !f.ByName {
		return strings.Contains(code, q)
	}
	return (f.ByCode && strings.Contains(code, q)) || (f.ByName && strings.Contains(name, q))
}

// MatchIdentities returns at most limit identities matching f, in input
// order. A non-positive limit means no limit.
func MatchIdentities(ids []Identity, f Filter, limit int) []Identity {
	out := make([]Identity, 0)
	for _, id := range ids {
		if !f.matches(id) {
			continue
		}
		out = append(out, id)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// Search projects stations onto the identities matching f. A station matches
// through its client link, or by exact title for stations without one. An
// empty query returns nil, meaning "no filter applied".
func Search(stations []Station, ids []Identity, f Filter) []Station {
	if strings.TrimSpace(f.Query) == "" {
		return nil
	}
	matched := MatchIdentities(ids, f, 0)
	byClient := make(map[string]bool, len(matched))
	byName := make(map[string]bool, len(matched))
	for _, id := range matched {
		if id.ClientID != "" {
			byClient[id.ClientID] = true
		}
		byName[id.FullName] = true
	}

	out := make([]Station, 0)
	for _, st := range stations {
		if st.ClientID != "" && byClient[st.ClientID] {
			out = append(out, st)
			continue
		}
		if st.ClientID == "" && byName[st.Title] {
			out = append(out, st)
		}
	}
	return out
}
