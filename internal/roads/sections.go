package roads

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"roadwatch.mg/internal/query"
)

// Section condition statuses.
const (
	StatusExcellent = "excellent"
	StatusBon       = "bon"
	StatusMoyen     = "moyen"
	StatusMauvais   = "mauvais"
	StatusCritique  = "critique"
	StatusInconnu   = "inconnu"
)

var sectionStatuses = map[string]struct{}{
	StatusExcellent: {}, StatusBon: {}, StatusMoyen: {},
	StatusMauvais: {}, StatusCritique: {}, StatusInconnu: {},
}

// ValidStatus reports whether s is a known section status.
func ValidStatus(s string) bool {
	_, ok := sectionStatuses[s]
	return ok
}

// Column names shared by the SQL store and the in-memory filter.
const (
	FieldSectionStatus     = "sr.status"
	FieldSectionLotName    = "l.name"
	FieldSectionLotID      = "sr.lot_id"
	FieldSectionRegion     = "sr.region"
	FieldSectionInspection = "sr.last_inspection"
)

// Section is a geolocated stretch of road.
type Section struct {
	ID             int64        `json:"id"`
	Name           string       `json:"name"`
	Description    string       `json:"description"`
	LotID          *int64       `json:"lotId"`
	Lot            string       `json:"lot"`
	Status         string       `json:"status"`
	Coordinates    *Point       `json:"coordinates"`
	LengthKM       *float64     `json:"length"`
	Region         string       `json:"region"`
	Progress       float64      `json:"progress"`
	LastInspection Date         `json:"lastInspection"`
	NextInspection Date         `json:"nextInspection"`
	Inspections    []Inspection `json:"inspections"`
	CreatedBy      *int64       `json:"createdBy,omitempty"`
	CreatedAt      time.Time    `json:"createdAt"`
	UpdatedAt      time.Time    `json:"updatedAt"`
}

// Inspection is a recorded visit of a section.
type Inspection struct {
	ID        int64  `json:"id"`
	SectionID int64  `json:"sectionId,omitempty"`
	Type      string `json:"type"`
	Date      Date   `json:"date"`
	Status    string `json:"status"`
	Inspector string `json:"inspector,omitempty"`
	Notes     string `json:"notes,omitempty"`
}

// SectionDetail is a section with its attached documents.
type SectionDetail struct {
	Section
	Documents []DocumentSummary `json:"documents"`
}

// Geodata is the geospatial payload of a section.
type Geodata struct {
	Coordinates *Point          `json:"coordinates"`
	GeoJSON     json.RawMessage `json:"geojson"`
	BoundingBox json.RawMessage `json:"boundingBox"`
}

// SectionInput creates a section.
type SectionInput struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	LotID       *int64          `json:"lot_id"`
	Status      string          `json:"status"`
	Coordinates *Point          `json:"coordinates"`
	GeoJSON     json.RawMessage `json:"geojson"`
	BoundingBox json.RawMessage `json:"bounding_box"`
	LengthKM    *float64        `json:"length_km"`
	Region      string          `json:"region"`
	Progress    *float64        `json:"progress_percentage"`
	CreatedBy   int64           `json:"-"`
}

// Normalize trims fields, applies defaults and validates the input.
func (in *SectionInput) Normalize() error {
	in.Name = clean(in.Name)
	in.Description = clean(in.Description)
	in.Region = clean(in.Region)
	in.Status = strings.ToLower(clean(in.Status))
	if in.Name == "" {
		return Invalid("name is required")
	}
	if in.Status == "" {
		in.Status = StatusInconnu
	}
	if !ValidStatus(in.Status) {
		return Invalid("unknown status %q", in.Status)
	}
	if in.Progress == nil {
		zero := 0.0
		in.Progress = &zero
	}
	if err := validateSectionNumbers(in.LengthKM, in.Progress); err != nil {
		return err
	}
	if in.Coordinates != nil {
		if err := in.Coordinates.Validate(); err != nil {
			return err
		}
	}
	var err error
	if in.GeoJSON, err = RawJSON("geojson", in.GeoJSON); err != nil {
		return err
	}
	if in.BoundingBox, err = RawJSON("bounding_box", in.BoundingBox); err != nil {
		return err
	}
	return nil
}

// SectionPatch updates a section; nil fields are left untouched.
type SectionPatch struct {
	Name           *string         `json:"name"`
	Description    *string         `json:"description"`
	LotID          *int64          `json:"lot_id"`
	Status         *string         `json:"status"`
	Coordinates    *Point          `json:"coordinates"`
	GeoJSON        json.RawMessage `json:"geojson"`
	BoundingBox    json.RawMessage `json:"bounding_box"`
	LengthKM       *float64        `json:"length_km"`
	Region         *string         `json:"region"`
	Progress       *float64        `json:"progress_percentage"`
	LastInspection *Date           `json:"last_inspection"`
	NextInspection *Date           `json:"next_inspection"`
}

func (p *SectionPatch) Normalize() error {
	p.Name = cleanPtr(p.Name)
	p.Description = cleanPtr(p.Description)
	p.Region = cleanPtr(p.Region)
	if p.Name != nil && *p.Name == "" {
		return Invalid("name cannot be empty")
	}
	if p.Status != nil {
		s := strings.ToLower(clean(*p.Status))
		if !ValidStatus(s) {
			return Invalid("unknown status %q", *p.Status)
		}
		p.Status = &s
	}
	if err := validateSectionNumbers(p.LengthKM, p.Progress); err != nil {
		return err
	}
	if p.Coordinates != nil {
		if err := p.Coordinates.Validate(); err != nil {
			return err
		}
	}
	var err error
	if p.GeoJSON, err = RawJSON("geojson", p.GeoJSON); err != nil {
		return err
	}
	if p.BoundingBox, err = RawJSON("bounding_box", p.BoundingBox); err != nil {
		return err
	}
	if p.LastInspection != nil && p.LastInspection.IsZero() {
		p.LastInspection = nil
	}
	if p.NextInspection != nil && p.NextInspection.IsZero() {
		p.NextInspection = nil
	}
	return nil
}

func validateSectionNumbers(length, progress *float64) error {
	if length != nil && *length < 0 {
		return Invalid("length_km must be >= 0")
	}
	if progress != nil && (*progress < 0 || *progress > 100) {
		return Invalid("progress_percentage must be between 0 and 100")
	}
	return nil
}

// InspectionInput records an inspection.
type InspectionInput struct {
	Type      string `json:"type"`
	Date      Date   `json:"date"`
	Status    string `json:"status"`
	Inspector string `json:"inspector"`
	Notes     string `json:"notes"`
}

func (in *InspectionInput) Normalize(now time.Time) error {
	in.Type = clean(in.Type)
	in.Status = strings.ToLower(clean(in.Status))
	in.Inspector = clean(in.Inspector)
	in.Notes = clean(in.Notes)
	if in.Type == "" {
		return Invalid("type is required")
	}
	if in.Date.IsZero() {
		in.Date = NewDate(now)
	}
	if in.Status != "" && !ValidStatus(in.Status) {
		return Invalid("unknown status %q", in.Status)
	}
	return nil
}

// SectionFilter is the parsed query of the section listing.
type SectionFilter struct {
	Status    string
	Lot       string
	LotID     string
	Region    string
	StartDate time.Time
	EndDate   time.Time
	Page      query.Page
}

// SectionFilterFromQuery maps request parameters to a filter. Malformed
// values are dropped rather than rejected.
func SectionFilterFromQuery(get func(string) string, page query.Page) SectionFilter {
	return SectionFilter{
		Status:    get("status"),
		Lot:       get("lot"),
		LotID:     get("lot_id"),
		Region:    get("region"),
		StartDate: query.ParseDate(get("start_date")),
		EndDate:   query.ParseDate(get("end_date")),
		Page:      page,
	}
}

// Builder folds the filter into typed predicates.
func (f SectionFilter) Builder() *query.Builder {
	var b query.Builder
	lotID, err := strconv.ParseInt(strings.TrimSpace(f.LotID), 10, 64)
	b.Eq(FieldSectionStatus, strings.ToLower(strings.TrimSpace(f.Status))).
		Eq(FieldSectionLotName, f.Lot).
		EqInt(FieldSectionLotID, lotID, err == nil && lotID > 0).
		Eq(FieldSectionRegion, f.Region).
		Gte(FieldSectionInspection, f.StartDate).
		Lte(FieldSectionInspection, f.EndDate)
	return &b
}

// SectionPage is one page of the section listing.
type SectionPage struct {
	Sections   []Section        `json:"sections"`
	Pagination query.Pagination `json:"pagination"`
}

// MapStats aggregates the network for the map dashboard.
type MapStats struct {
	Overview MapOverview  `json:"overview"`
	Regions  []RegionStat `json:"regions"`
	Lots     []LotStat    `json:"lots"`
}

type MapOverview struct {
	TotalSections      int     `json:"totalSections"`
	TotalLength        float64 `json:"totalLength"`
	ExcellentCondition int     `json:"excellentCondition"`
	GoodCondition      int     `json:"goodCondition"`
	FairCondition      int     `json:"fairCondition"`
	PoorCondition      int     `json:"poorCondition"`
	CriticalCondition  int     `json:"criticalCondition"`
	UnknownCondition   int     `json:"unknownCondition"`
	RecentlyInspected  int     `json:"recentlyInspected"`
	AverageProgress    float64 `json:"averageProgress"`
}

type RegionStat struct {
	Region       string  `json:"region"`
	SectionCount int     `json:"section_count"`
	TotalLength  float64 `json:"total_length"`
}

type LotStat struct {
	LotID        int64   `json:"lot_id"`
	LotName      string  `json:"lot_name"`
	SectionCount int     `json:"section_count"`
	TotalLength  float64 `json:"total_length"`
	AvgProgress  float64 `json:"avg_progress"`
}

// RecentInspectionWindow is how far back an inspection counts as recent.
const RecentInspectionWindow = 30 * 24 * time.Hour
