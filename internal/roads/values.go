package roads

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Date is a calendar day serialised as YYYY-MM-DD.
type Date struct {
	time.Time
}

// NewDate truncates t to its UTC calendar day.
func NewDate(t time.Time) Date {
	t = t.UTC()
	return Date{Time: time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)}
}

// ParseDate accepts YYYY-MM-DD or RFC 3339.
func ParseDate(raw string) (Date, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range []string{time.DateOnly, time.RFC3339} {
		if t, err := time.Parse(layout, raw); err == nil {
			return NewDate(t), nil
		}
	}
	return Date{}, Invalid("malformed date %q", raw)
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(time.DateOnly)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.Format(time.DateOnly))
}

func (d *Date) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*d = Date{}
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	if strings.TrimSpace(raw) == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(raw)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Ptr returns nil for the zero date so it can be stored as NULL.
func (d Date) Ptr() *time.Time {
	if d.IsZero() {
		return nil
	}
	t := d.Time
	return &t
}

// Point is a WGS84 coordinate, persisted as {"longitude":…,"latitude":…} JSON.
type Point struct {
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
}

func (p Point) Validate() error {
	if p.Longitude < -180 || p.Longitude > 180 {
		return Invalid("longitude out of range")
	}
	if p.Latitude < -90 || p.Latitude > 90 {
		return Invalid("latitude out of range")
	}
	return nil
}

// EncodePoint returns the JSON text stored in the coordinates column.
func EncodePoint(p *Point) (*string, error) {
	if p == nil {
		return nil, nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	s := string(b)
	return &s, nil
}

// DecodePoint parses the stored coordinates column; empty text means no point.
func DecodePoint(raw []byte) (*Point, error) {
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, nil
	}
	var p Point
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode coordinates: %w", err)
	}
	return &p, nil
}

// RawJSON validates that raw is a JSON document; nil and "null" stay nil.
func RawJSON(field string, raw json.RawMessage) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	if !json.Valid(trimmed) {
		return nil, Invalid("%s must be valid JSON", field)
	}
	return json.RawMessage(trimmed), nil
}

// Urgency levels attached to messages and notifications.
const (
	UrgencyLow    = "low"
	UrgencyNormal = "normal"
	UrgencyMedium = "medium"
	UrgencyHigh   = "high"
)

// NormalizeUrgency defaults to normal and rejects unknown levels.
func NormalizeUrgency(u string) (string, error) {
	switch v := strings.ToLower(strings.TrimSpace(u)); v {
	case "":
		return UrgencyNormal, nil
	case UrgencyLow, UrgencyNormal, UrgencyMedium, UrgencyHigh:
		return v, nil
	}
	return "", Invalid("unknown urgency %q", u)
}

func clean(s string) string { return strings.TrimSpace(s) }

func cleanPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}
