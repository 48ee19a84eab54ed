package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"roadwatch.mg/internal/query"
	"roadwatch.mg/internal/roads"
)

const sectionColumns = `
	sr.id, sr.name, sr.description, sr.lot_id, coalesce(l.name, ''), sr.status,
	sr.coordinates, sr.length_km, coalesce(sr.region, ''), sr.progress_percentage,
	sr.last_inspection, sr.next_inspection, sr.created_by, sr.created_at, sr.updated_at,
	coalesce(json_agg(json_build_object(
		'id', si.id,
		'type', si.inspection_type,
		'date', si.inspection_date,
		'status', coalesce(si.status, ''),
		'inspector', si.inspector_name,
		'notes', si.notes
	) order by si.inspection_date desc, si.id desc) filter (where si.id is not null), '[]')`

const sectionFrom = `
	from road_sections sr
	left join lots l on l.id = sr.lot_id
	left join section_inspections si on si.section_id = sr.id`

func scanSection(row interface{ Scan(...any) error }) (roads.Section, error) {
	var (
		sec                 roads.Section
		lotID, createdBy    sql.NullInt64
		coords, inspections []byte
		length              sql.NullFloat64
		lastInsp, nextInsp  sql.NullTime
	)
	if err := row.Scan(&sec.ID, &sec.Name, &sec.Description, &lotID, &sec.Lot, &sec.Status,
		&coords, &length, &sec.Region, &sec.Progress,
		&lastInsp, &nextInsp, &createdBy, &sec.CreatedAt, &sec.UpdatedAt, &inspections); err != nil {
		return roads.Section{}, err
	}
	sec.LotID = idPtr(lotID)
	sec.CreatedBy = idPtr(createdBy)
	if length.Valid {
		v := length.Float64
		sec.LengthKM = &v
	}
	sec.LastInspection = dateOf(lastInsp)
	sec.NextInspection = dateOf(nextInsp)
	var err error
	if sec.Coordinates, err = roads.DecodePoint(coords); err != nil {
		return roads.Section{}, err
	}
	sec.Inspections = []roads.Inspection{}
	if len(inspections) > 0 {
		if err := json.Unmarshal(inspections, &sec.Inspections); err != nil {
			return roads.Section{}, fmt.Errorf("decode inspections: %w", err)
		}
	}
	return sec, nil
}

func (s *Store) ListSections(ctx context.Context, f roads.SectionFilter) (roads.SectionPage, error) {
	page := query.NewPage(f.Page.Page, f.Page.Limit)
	where, args := f.Builder().Where(0)

	var total int
	if err := s.db.QueryRowContext(ctx, `
		select count(*) from road_sections sr
		left join lots l on l.id = sr.lot_id `+where, args...).Scan(&total); err != nil {
		return roads.SectionPage{}, err
	}

	n := len(args)
	rows, err := s.db.QueryContext(ctx, `select `+sectionColumns+sectionFrom+` `+where+`
		group by sr.id, l.name
		order by sr.name, sr.id
		limit $`+fmt.Sprint(n+1)+` offset $`+fmt.Sprint(n+2),
		append(args, page.Limit, page.Offset())...)
	if err != nil {
		return roads.SectionPage{}, err
	}
	defer rows.Close()

	out := []roads.Section{}
	for rows.Next() {
		sec, err := scanSection(rows)
		if err != nil {
			return roads.SectionPage{}, err
		}
		out = append(out, sec)
	}
	if err := rows.Err(); err != nil {
		return roads.SectionPage{}, err
	}
	return roads.SectionPage{Sections: out, Pagination: page.Result(total)}, nil
}

func (s *Store) getSection(ctx context.Context, q queryer, id int64) (roads.Section, error) {
	sec, err := scanSection(q.QueryRowContext(ctx, `select `+sectionColumns+sectionFrom+`
		where sr.id = $1
		group by sr.id, l.name`, id))
	if err != nil {
		return roads.Section{}, mapErr(err, "section")
	}
	return sec, nil
}

func (s *Store) GetSection(ctx context.Context, id int64) (roads.SectionDetail, error) {
	sec, err := s.getSection(ctx, s.db, id)
	if err != nil {
		return roads.SectionDetail{}, err
	}
	rows, err := s.db.QueryContext(ctx, `
		select d.id, d.title, coalesce(dt.name, ''), d.created_at
		from documents d
		left join document_types dt on dt.id = d.type_id
		where d.section_id = $1
		order by d.created_at desc, d.id desc`, id)
	if err != nil {
		return roads.SectionDetail{}, err
	}
	defer rows.Close()
	docs := []roads.DocumentSummary{}
	for rows.Next() {
		var d roads.DocumentSummary
		if err := rows.Scan(&d.ID, &d.Title, &d.TypeName, &d.CreatedAt); err != nil {
			return roads.SectionDetail{}, err
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return roads.SectionDetail{}, err
	}
	return roads.SectionDetail{Section: sec, Documents: docs}, nil
}

func (s *Store) SectionGeodata(ctx context.Context, id int64) (roads.Geodata, error) {
	var coords, geo, bbox []byte
	err := s.db.QueryRowContext(ctx, `
		select coordinates, geojson, bounding_box from road_sections where id = $1`, id).
		Scan(&coords, &geo, &bbox)
	if err != nil {
		return roads.Geodata{}, mapErr(err, "section")
	}
	g := roads.Geodata{}
	if g.Coordinates, err = roads.DecodePoint(coords); err != nil {
		return roads.Geodata{}, err
	}
	if len(geo) > 0 {
		g.GeoJSON = json.RawMessage(geo)
	}
	if len(bbox) > 0 {
		g.BoundingBox = json.RawMessage(bbox)
	}
	return g, nil
}

func (s *Store) CreateSection(ctx context.Context, in roads.SectionInput) (roads.Section, error) {
	if err := in.Normalize(); err != nil {
		return roads.Section{}, err
	}
	coords, err := roads.EncodePoint(in.Coordinates)
	if err != nil {
		return roads.Section{}, err
	}
	var createdBy sql.NullInt64
	if in.CreatedBy > 0 {
		createdBy = sql.NullInt64{Int64: in.CreatedBy, Valid: true}
	}
	var id int64
	err = s.db.QueryRowContext(ctx, `
		insert into road_sections
			(name, description, lot_id, status, coordinates, geojson, bounding_box,
			 length_km, region, progress_percentage, created_by)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		returning id`,
		in.Name, in.Description, nullID(in.LotID), in.Status, coords,
		nullJSON(in.GeoJSON), nullJSON(in.BoundingBox),
		in.LengthKM, nullString(in.Region), *in.Progress, createdBy).Scan(&id)
	if err != nil {
		return roads.Section{}, mapErr(err, "section")
	}
	return s.getSection(ctx, s.db, id)
}

func (s *Store) UpdateSection(ctx context.Context, id int64, p roads.SectionPatch) (roads.Section, error) {
	if err := p.Normalize(); err != nil {
		return roads.Section{}, err
	}
	coords, err := roads.EncodePoint(p.Coordinates)
	if err != nil {
		return roads.Section{}, err
	}
	var lastInsp, nextInsp any
	if p.LastInspection != nil {
		lastInsp = p.LastInspection.Time
	}
	if p.NextInspection != nil {
		nextInsp = p.NextInspection.Time
	}
	res, err := s.db.ExecContext(ctx, `
		update road_sections set
			name = coalesce($2, name),
			description = coalesce($3, description),
			lot_id = coalesce($4, lot_id),
			status = coalesce($5, status),
			coordinates = coalesce($6::jsonb, coordinates),
			geojson = coalesce($7::jsonb, geojson),
			bounding_box = coalesce($8::jsonb, bounding_box),
			length_km = coalesce($9, length_km),
			region = coalesce($10, region),
			progress_percentage = coalesce($11, progress_percentage),
			last_inspection = coalesce($12::date, last_inspection),
			next_inspection = coalesce($13::date, next_inspection),
			updated_at = now()
		where id = $1`,
		id, p.Name, p.Description, nullID(p.LotID), p.Status, coords,
		nullJSON(p.GeoJSON), nullJSON(p.BoundingBox), p.LengthKM, p.Region, p.Progress,
		lastInsp, nextInsp)
	if err != nil {
		return roads.Section{}, mapErr(err, "section")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return roads.Section{}, roads.NotFound("section")
	}
	return s.getSection(ctx, s.db, id)
}

func (s *Store) DeleteSection(ctx context.Context, id int64) (roads.Section, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return roads.Section{}, err
	}
	defer func() { _ = tx.Rollback() }()

	sec, err := s.getSection(ctx, tx, id)
	if err != nil {
		return roads.Section{}, err
	}
	if _, err := tx.ExecContext(ctx, `delete from road_sections where id = $1`, id); err != nil {
		return roads.Section{}, err
	}
	if err := tx.Commit(); err != nil {
		return roads.Section{}, err
	}
	return sec, nil
}

// AddInspection stores the inspection and advances the section's
// last_inspection (never backwards) in one transaction.
func (s *Store) AddInspection(ctx context.Context, sectionID int64, in roads.InspectionInput) (roads.Inspection, error) {
	if err := in.Normalize(time.Now()); err != nil {
		return roads.Inspection{}, err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return roads.Inspection{}, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		update road_sections set
			last_inspection = greatest(coalesce(last_inspection, $2::date), $2::date),
			status = coalesce($3, status),
			updated_at = now()
		where id = $1`, sectionID, in.Date.Time, nullString(in.Status))
	if err != nil {
		return roads.Inspection{}, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return roads.Inspection{}, roads.NotFound("section")
	}
	ins := roads.Inspection{
		SectionID: sectionID,
		Type:      in.Type,
		Date:      in.Date,
		Status:    in.Status,
		Inspector: in.Inspector,
		Notes:     in.Notes,
	}
	if err := tx.QueryRowContext(ctx, `
		insert into section_inspections
			(section_id, inspection_type, inspection_date, status, inspector_name, notes)
		values ($1, $2, $3, $4, $5, $6)
		returning id`,
		sectionID, in.Type, in.Date.Time, nullString(in.Status), in.Inspector, in.Notes).Scan(&ins.ID); err != nil {
		return roads.Inspection{}, mapErr(err, "section")
	}
	if err := tx.Commit(); err != nil {
		return roads.Inspection{}, err
	}
	return ins, nil
}

func (s *Store) MapStats(ctx context.Context) (roads.MapStats, error) {
	st := roads.MapStats{Regions: []roads.RegionStat{}, Lots: []roads.LotStat{}}
	ov := &st.Overview
	err := s.db.QueryRowContext(ctx, `
		select
			count(*),
			coalesce(sum(length_km), 0),
			count(*) filter (where status = 'excellent'),
			count(*) filter (where status = 'bon'),
			count(*) filter (where status = 'moyen'),
			count(*) filter (where status = 'mauvais'),
			count(*) filter (where status = 'critique'),
			count(*) filter (where status not in ('excellent', 'bon', 'moyen', 'mauvais', 'critique')),
			count(*) filter (where last_inspection >= current_date - $1::int),
			coalesce(round(avg(progress_percentage)::numeric, 2), 0)::float8
		from road_sections`, int(roads.RecentInspectionWindow.Hours()/24)).Scan(
		&ov.TotalSections, &ov.TotalLength,
		&ov.ExcellentCondition, &ov.GoodCondition, &ov.FairCondition,
		&ov.PoorCondition, &ov.CriticalCondition, &ov.UnknownCondition,
		&ov.RecentlyInspected, &ov.AverageProgress)
	if err != nil {
		return roads.MapStats{}, err
	}

	rows, err := s.db.QueryContext(ctx, `
		select region, count(*), coalesce(sum(length_km), 0)
		from road_sections
		where region is not null and region <> ''
		group by region
		order by region`)
	if err != nil {
		return roads.MapStats{}, err
	}
	for rows.Next() {
		var r roads.RegionStat
		if err := rows.Scan(&r.Region, &r.SectionCount, &r.TotalLength); err != nil {
			rows.Close()
			return roads.MapStats{}, err
		}
		st.Regions = append(st.Regions, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return roads.MapStats{}, err
	}

	rows, err = s.db.QueryContext(ctx, `
		select l.id, l.name, count(sr.id), coalesce(sum(sr.length_km), 0),
			coalesce(round(avg(sr.progress_percentage)::numeric, 2), 0)::float8
		from lots l
		join road_sections sr on sr.lot_id = l.id
		group by l.id, l.name
		order by l.name`)
	if err != nil {
		return roads.MapStats{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var l roads.LotStat
		if err := rows.Scan(&l.LotID, &l.LotName, &l.SectionCount, &l.TotalLength, &l.AvgProgress); err != nil {
			return roads.MapStats{}, err
		}
		st.Lots = append(st.Lots, l)
	}
	return st, rows.Err()
}
