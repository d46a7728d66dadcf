// Package ingest parses seed workbooks into mining jobs and ICP profiles.
//
// A workbook carries an optional "profiles" sheet and an optional "jobs"
// sheet (at least one must be present). The first row of each sheet is a
// header row; column order is free. Recognized profile columns: id, site_id,
// name, titles, seniorities, locations, industries, employee_range,
// keywords. Recognized job columns: site_id, profile_id, total_targets.
// List-valued cells are comma separated.
package ingest

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/icp-miner/internal/model"
)

const (
	profileSheet = "profiles"
	jobSheet     = "jobs"
)

// Seed is the parsed content of a workbook.
type Seed struct {
	Profiles []model.ICPProfile
	Jobs     []model.MiningJob
}

// ReadWorkbook parses an XLSX seed workbook. A non-empty siteID fills rows
// that omit their site_id column.
func ReadWorkbook(path, siteID string) (*Seed, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: open workbook")
	}

	seed := &Seed{}

	if sheet, ok := findSheet(f, profileSheet); ok {
		seed.Profiles, err = parseProfiles(sheet, siteID)
		if err != nil {
			return nil, err
		}
	}
	if sheet, ok := findSheet(f, jobSheet); ok {
		seed.Jobs, err = parseJobs(sheet, siteID)
		if err != nil {
			return nil, err
		}
	}

	if len(seed.Profiles) == 0 && len(seed.Jobs) == 0 {
		return nil, eris.Errorf("ingest: workbook %s has no %q or %q sheet with rows", path, profileSheet, jobSheet)
	}
	return seed, nil
}

func findSheet(f *xlsx.File, name string) (*xlsx.Sheet, bool) {
	for _, sheet := range f.Sheets {
		if strings.EqualFold(sheet.Name, name) {
			return sheet, true
		}
	}
	return nil, false
}

func parseProfiles(sheet *xlsx.Sheet, siteID string) ([]model.ICPProfile, error) {
	rows, cols := sheetTable(sheet)

	var profiles []model.ICPProfile
	for i, row := range rows {
		p := model.ICPProfile{
			ID:            cols.get(row, "id"),
			SiteID:        cols.get(row, "site_id"),
			Name:          cols.get(row, "name"),
			Titles:        splitList(cols.get(row, "titles")),
			Seniorities:   splitList(cols.get(row, "seniorities")),
			Locations:     splitList(cols.get(row, "locations")),
			Industries:    splitList(cols.get(row, "industries")),
			EmployeeRange: cols.get(row, "employee_range"),
			Keywords:      cols.get(row, "keywords"),
		}
		if p.SiteID == "" {
			p.SiteID = siteID
		}
		if p.Name == "" {
			return nil, eris.Errorf("ingest: profiles row %d missing name", i+2)
		}
		if p.SiteID == "" {
			return nil, eris.Errorf("ingest: profiles row %d missing site_id (pass --site or add the column)", i+2)
		}
		profiles = append(profiles, p)
	}
	return profiles, nil
}

func parseJobs(sheet *xlsx.Sheet, siteID string) ([]model.MiningJob, error) {
	rows, cols := sheetTable(sheet)

	var jobs []model.MiningJob
	for i, row := range rows {
		j := model.MiningJob{
			SiteID:    cols.get(row, "site_id"),
			ProfileID: cols.get(row, "profile_id"),
			Status:    model.JobStatusPending,
		}
		if j.SiteID == "" {
			j.SiteID = siteID
		}
		if j.ProfileID == "" {
			return nil, eris.Errorf("ingest: jobs row %d missing profile_id", i+2)
		}
		if j.SiteID == "" {
			return nil, eris.Errorf("ingest: jobs row %d missing site_id (pass --site or add the column)", i+2)
		}
		if raw := cols.get(row, "total_targets"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil {
				return nil, eris.Wrapf(err, "ingest: jobs row %d total_targets", i+2)
			}
			j.TotalTargets = &n
		}
		jobs = append(jobs, j)
	}
	return jobs, nil
}

// columns maps lowercased header names to their cell index.
type columns map[string]int

func (c columns) get(row []string, name string) string {
	idx, ok := c[name]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// sheetTable splits a sheet into its header mapping and data rows. Rows with
// no non-empty cell are dropped.
func sheetTable(sheet *xlsx.Sheet) ([][]string, columns) {
	cols := columns{}
	var rows [][]string
	for i, row := range sheet.Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		if i == 0 {
			for j, name := range cells {
				cols[strings.ToLower(strings.TrimSpace(name))] = j
			}
			continue
		}
		if !blank(cells) {
			rows = append(rows, cells)
		}
	}
	return rows, cols
}

func blank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
