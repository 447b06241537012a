// Package backup exports and imports the game center as a single JSON
// snapshot, and flattens it to CSV for spreadsheets.
package backup

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"gamecenter/internal/bracket"
	"gamecenter/internal/station"
)

// Snapshot is the export file. A nil slice or settings document means the
// section was absent and is left alone on import.
type Snapshot struct {
	GameCards   []station.Station    `json:"gameCards"`
	Tournaments []bracket.Tournament `json:"tournaments"`
	Settings    json.RawMessage      `json:"settings"`
	ExportDate  time.Time            `json:"exportDate"`
}

func New(cards []station.Station, tournaments []bracket.Tournament, settings any, now time.Time) (Snapshot, error) {
	raw, err := json.Marshal(settings)
	if err != nil {
		return Snapshot{}, fmt.Errorf("encode settings: %w", err)
	}
	if cards == nil {
		cards = []station.Station{}
	}
	if tournaments == nil {
		tournaments = []bracket.Tournament{}
	}
	return Snapshot{GameCards: cards, Tournaments: tournaments, Settings: raw, ExportDate: now}, nil
}

func WriteJSON(w io.Writer, s Snapshot) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}

func ReadJSON(r io.Reader) (Snapshot, error) {
	var s Snapshot
	if err := json.NewDecoder(r).Decode(&s); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	if string(s.Settings) == "null" {
		s.Settings = nil
	}
	if s.Settings != nil {
		normalized, err := NormalizeSettings(s.Settings)
		if err != nil {
			return Snapshot{}, err
		}
		s.Settings = normalized
	}
	return s, nil
}

// NormalizeSettings rewrites values older exports stored with another type:
// a numeric costPerHour becomes a string and homeDefaultTab falls back to
// stable when it names no station kind.
func NormalizeSettings(raw json.RawMessage) (json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	if v, ok := fields["costPerHour"]; ok {
		var n json.Number
		if err := json.Unmarshal(v, &n); err == nil {
			quoted, _ := json.Marshal(n.String())
			fields["costPerHour"] = quoted
		}
	}
	if v, ok := fields["homeDefaultTab"]; ok {
		var tab string
		_ = json.Unmarshal(v, &tab)
		switch station.Kind(tab) {
		case station.KindTimer, station.KindTable:
		default:
			tab = string(station.KindStable)
		}
		fields["homeDefaultTab"], _ = json.Marshal(tab)
	}
	return json.Marshal(fields)
}

var csvHeader = []string{"Type", "Name", "Time", "Status", "Created"}

// WriteCSV writes one row per game card and one per tournament.
func WriteCSV(w io.Writer, s Snapshot, loc *time.Location) error {
	if loc == nil {
		loc = time.Local
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, card := range s.GameCards {
		status := "Stopped"
		if card.IsRunning {
			status = "Running"
		}
		created := ""
		if card.StartedAt != nil {
			created = card.StartedAt.In(loc).Format(time.DateTime)
		}
		row := []string{"Game Card", card.Title, strconv.FormatInt(card.ElapsedSeconds, 10), status, created}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	for _, t := range s.Tournaments {
		name := t.Name
		if name == "" {
			name = "Tournament"
		}
		status := "In progress"
		if t.Completed {
			status = "Completed"
		}
		row := []string{
			"Tournament", name,
			fmt.Sprintf("%d players", len(t.RealPlayers())),
			status,
			t.CreatedAt.In(loc).Format(time.DateTime),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// CSV renders the snapshot as CSV bytes.
func CSV(s Snapshot, loc *time.Location) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, s, loc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
