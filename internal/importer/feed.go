package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// CandidateRow is one normalized record from the legacy scheduling feed.
type CandidateRow struct {
	StudyID          string
	ProjectID        string
	SubjectID        string
	FirstName        string
	LastName         string
	DOB              string
	ScanDate         string
	DarisID          string
	ArchiveSubjectID string
	ArchiveVisitID   string
	MRReport         string
	PETReport        string
}

// feedColumns maps feed header names onto CandidateRow fields.
var feedColumns = map[string]func(*CandidateRow, string){
	"StudyID":       func(r *CandidateRow, v string) { r.StudyID = v },
	"ProjectID":     func(r *CandidateRow, v string) { r.ProjectID = v },
	"SubjectID":     func(r *CandidateRow, v string) { r.SubjectID = v },
	"FirstName":     func(r *CandidateRow, v string) { r.FirstName = v },
	"LastName":      func(r *CandidateRow, v string) { r.LastName = v },
	"DOB":           func(r *CandidateRow, v string) { r.DOB = v },
	"ScanDate":      func(r *CandidateRow, v string) { r.ScanDate = v },
	"DarisID":       func(r *CandidateRow, v string) { r.DarisID = v },
	"XnatSubjectID": func(r *CandidateRow, v string) { r.ArchiveSubjectID = v },
	"XnatVisitID":   func(r *CandidateRow, v string) { r.ArchiveVisitID = v },
	"MrReport":      func(r *CandidateRow, v string) { r.MRReport = v },
	"PetReport":     func(r *CandidateRow, v string) { r.PETReport = v },
}

// ReadFeed parses the legacy CSV export into candidate rows keyed by the
// header line. Unknown columns are ignored so feed extensions do not break
// the import.
func ReadFeed(r io.Reader) ([]CandidateRow, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read feed header: %w", err)
	}
	setters := make([]func(*CandidateRow, string), len(header))
	for i, name := range header {
		setters[i] = feedColumns[strings.TrimSpace(name)]
	}

	var rows []CandidateRow
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read feed row: %w", err)
		}
		var row CandidateRow
		for i, value := range record {
			if i < len(setters) && setters[i] != nil {
				setters[i](&row, strings.TrimSpace(value))
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}
