package roads

import (
	"context"
	"sort"

	"roadwatch.mg/internal/query"
)

func (s *InMemory) ListSections(ctx context.Context, f SectionFilter) (SectionPage, error) {
	page := query.NewPage(f.Page.Page, f.Page.Limit)
	preds := f.Builder().Predicates()
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows := []Section{}
	for _, sec := range s.sections {
		if query.Match(preds, s.sectionLookup(sec)) {
			rows = append(rows, s.sectionView(sec))
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Name != rows[j].Name {
			return rows[i].Name < rows[j].Name
		}
		return rows[i].ID < rows[j].ID
	})
	start, end := page.Window(len(rows))
	return SectionPage{Sections: rows[start:end], Pagination: page.Result(len(rows))}, nil
}

func (s *InMemory) sectionLookup(sec *Section) func(string) (any, bool) {
	return func(field string) (any, bool) {
		switch field {
		case FieldSectionStatus:
			return sec.Status, true
		case FieldSectionLotName:
			if sec.LotID == nil {
				return nil, false
			}
			l, ok := s.lots[*sec.LotID]
			if !ok {
				return nil, false
			}
			return l.Name, true
		case FieldSectionLotID:
			if sec.LotID == nil {
				return nil, false
			}
			return *sec.LotID, true
		case FieldSectionRegion:
			return sec.Region, sec.Region != ""
		case FieldSectionInspection:
			return sec.LastInspection.Time, !sec.LastInspection.IsZero()
		}
		return nil, false
	}
}

// sectionView copies a section with its lot name and inspections, newest first.
func (s *InMemory) sectionView(sec *Section) Section {
	out := *sec
	out.Lot = ""
	if sec.LotID != nil {
		if l, ok := s.lots[*sec.LotID]; ok {
			out.Lot = l.Name
		}
		out.LotID = copyID(sec.LotID)
	}
	out.Coordinates = copyPoint(sec.Coordinates)
	out.LengthKM = copyFloat(sec.LengthKM)
	out.CreatedBy = copyID(sec.CreatedBy)
	ins := append([]Inspection{}, s.inspections[sec.ID]...)
	sort.SliceStable(ins, func(i, j int) bool {
		if !ins[i].Date.Equal(ins[j].Date.Time) {
			return ins[i].Date.After(ins[j].Date.Time)
		}
		return ins[i].ID > ins[j].ID
	})
	out.Inspections = ins
	return out
}

func (s *InMemory) GetSection(ctx context.Context, id int64) (SectionDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sec, ok := s.sections[id]
	if !ok {
		return SectionDetail{}, NotFound("section")
	}
	docs := []DocumentSummary{}
	for _, d := range s.documents {
		if d.SectionID != nil && *d.SectionID == id {
			docs = append(docs, DocumentSummary{ID: d.ID, Title: d.Title, TypeName: s.typeName(d.TypeID), CreatedAt: d.CreatedAt})
		}
	}
	sort.Slice(docs, func(i, j int) bool {
		if !docs[i].CreatedAt.Equal(docs[j].CreatedAt) {
			return docs[i].CreatedAt.After(docs[j].CreatedAt)
		}
		return docs[i].ID > docs[j].ID
	})
	return SectionDetail{Section: s.sectionView(sec), Documents: docs}, nil
}

func (s *InMemory) SectionGeodata(ctx context.Context, id int64) (Geodata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sec, ok := s.sections[id]
	if !ok {
		return Geodata{}, NotFound("section")
	}
	g := s.geo[id]
	if sec.Coordinates != nil {
		p := *sec.Coordinates
		g.Coordinates = &p
	}
	return g, nil
}

func (s *InMemory) CreateSection(ctx context.Context, in SectionInput) (Section, error) {
	if err := in.Normalize(); err != nil {
		return Section{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if in.LotID != nil {
		if _, ok := s.lots[*in.LotID]; !ok {
			return Section{}, NotFound("lot")
		}
	}
	now := s.stamp()
	sec := &Section{
		ID:          s.next("sections"),
		Name:        in.Name,
		Description: in.Description,
		LotID:       copyID(in.LotID),
		Status:      in.Status,
		Coordinates: copyPoint(in.Coordinates),
		LengthKM:    copyFloat(in.LengthKM),
		Region:      in.Region,
		Progress:    *in.Progress,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if in.CreatedBy > 0 {
		sec.CreatedBy = &in.CreatedBy
	}
	s.sections[sec.ID] = sec
	s.geo[sec.ID] = Geodata{GeoJSON: in.GeoJSON, BoundingBox: in.BoundingBox}
	return s.sectionView(sec), nil
}

func (s *InMemory) UpdateSection(ctx context.Context, id int64, p SectionPatch) (Section, error) {
	if err := p.Normalize(); err != nil {
		return Section{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sec, ok := s.sections[id]
	if !ok {
		return Section{}, NotFound("section")
	}
	if p.LotID != nil {
		if _, ok := s.lots[*p.LotID]; !ok {
			return Section{}, NotFound("lot")
		}
		sec.LotID = copyID(p.LotID)
	}
	if p.Name != nil {
		sec.Name = *p.Name
	}
	if p.Description != nil {
		sec.Description = *p.Description
	}
	if p.Status != nil {
		sec.Status = *p.Status
	}
	if p.Coordinates != nil {
		sec.Coordinates = copyPoint(p.Coordinates)
	}
	if p.LengthKM != nil {
		sec.LengthKM = copyFloat(p.LengthKM)
	}
	if p.Region != nil {
		sec.Region = *p.Region
	}
	if p.Progress != nil {
		sec.Progress = *p.Progress
	}
	if p.LastInspection != nil {
		sec.LastInspection = *p.LastInspection
	}
	if p.NextInspection != nil {
		sec.NextInspection = *p.NextInspection
	}
	g := s.geo[id]
	if p.GeoJSON != nil {
		g.GeoJSON = p.GeoJSON
	}
	if p.BoundingBox != nil {
		g.BoundingBox = p.BoundingBox
	}
	s.geo[id] = g
	sec.UpdatedAt = s.stamp()
	return s.sectionView(sec), nil
}

func (s *InMemory) DeleteSection(ctx context.Context, id int64) (Section, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sec, ok := s.sections[id]
	if !ok {
		return Section{}, NotFound("section")
	}
	out := s.sectionView(sec)
	for _, d := range s.documents {
		if d.SectionID != nil && *d.SectionID == id {
			d.SectionID = nil
		}
	}
	delete(s.sections, id)
	delete(s.geo, id)
	delete(s.inspections, id)
	return out, nil
}

// AddInspection records a visit and moves the section's last inspection
// forward; a backdated inspection never rewinds it.
func (s *InMemory) AddInspection(ctx context.Context, sectionID int64, in InspectionInput) (Inspection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := in.Normalize(s.now()); err != nil {
		return Inspection{}, err
	}
	sec, ok := s.sections[sectionID]
	if !ok {
		return Inspection{}, NotFound("section")
	}
	ins := Inspection{
		ID:        s.next("inspections"),
		SectionID: sectionID,
		Type:      in.Type,
		Date:      in.Date,
		Status:    in.Status,
		Inspector: in.Inspector,
		Notes:     in.Notes,
	}
	s.inspections[sectionID] = append(s.inspections[sectionID], ins)
	if sec.LastInspection.IsZero() || in.Date.After(sec.LastInspection.Time) {
		sec.LastInspection = in.Date
	}
	if in.Status != "" {
		sec.Status = in.Status
	}
	sec.UpdatedAt = s.stamp()
	return ins, nil
}

func (s *InMemory) MapStats(ctx context.Context) (MapStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := MapStats{Regions: []RegionStat{}, Lots: []LotStat{}}
	ov := &st.Overview
	since := s.stamp().Add(-RecentInspectionWindow)
	regions := map[string]*RegionStat{}
	lots := map[int64]*LotStat{}
	progress := 0.0
	for _, sec := range s.sections {
		length := 0.0
		if sec.LengthKM != nil {
			length = *sec.LengthKM
		}
		ov.TotalSections++
		ov.TotalLength += length
		progress += sec.Progress
		switch sec.Status {
		case StatusExcellent:
			ov.ExcellentCondition++
		case StatusBon:
			ov.GoodCondition++
		case StatusMoyen:
			ov.FairCondition++
		case StatusMauvais:
			ov.PoorCondition++
		case StatusCritique:
			ov.CriticalCondition++
		default:
			ov.UnknownCondition++
		}
		if !sec.LastInspection.IsZero() && !sec.LastInspection.Before(since) {
			ov.RecentlyInspected++
		}
		if sec.Region != "" {
			r := regions[sec.Region]
			if r == nil {
				r = &RegionStat{Region: sec.Region}
				regions[sec.Region] = r
			}
			r.SectionCount++
			r.TotalLength += length
		}
		if sec.LotID != nil {
			l := lots[*sec.LotID]
			if l == nil {
				l = &LotStat{LotID: *sec.LotID}
				if lot, ok := s.lots[*sec.LotID]; ok {
					l.LotName = lot.Name
				}
				lots[*sec.LotID] = l
			}
			l.SectionCount++
			l.TotalLength += length
			l.AvgProgress += sec.Progress
		}
	}
	if ov.TotalSections > 0 {
		ov.AverageProgress = round2(progress / float64(ov.TotalSections))
	}
	for _, r := range regions {
		st.Regions = append(st.Regions, *r)
	}
	sort.Slice(st.Regions, func(i, j int) bool { return st.Regions[i].Region < st.Regions[j].Region })
	for _, l := range lots {
		l.AvgProgress = round2(l.AvgProgress / float64(l.SectionCount))
		st.Lots = append(st.Lots, *l)
	}
	sort.Slice(st.Lots, func(i, j int) bool { return st.Lots[i].LotName < st.Lots[j].LotName })
	return st, nil
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
