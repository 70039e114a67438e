package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"flipscore/scoring"
)

// ParseWarning describes a row skipped during parsing. Row is the 1-based
// line number within the file, header included.
type ParseWarning struct {
	Row     int
	Message string
}

// headerAliases maps the column spellings seen across county exports onto
// canonical field names.
var headerAliases = map[string]string{
	"jurisdiction":      "jurisdiction",
	"county":            "jurisdiction",
	"precinct":          "precinct",
	"precinct_name":     "precinct",
	"contest":           "contest",
	"contest_name":      "contest",
	"race":              "contest",
	"election_date":     "date",
	"date":              "date",
	"party":             "party",
	"party_affiliation": "party",
	"candidate":         "candidate",
	"candidate_name":    "candidate",
	"votes":             "votes",
	"vote_count":        "votes",
	"total_votes":       "votes",
}

var requiredColumns = []string{"jurisdiction", "precinct", "contest", "date", "party", "votes"}

// ParseResults reads a county results CSV. Malformed rows produce warnings
// and are skipped; a missing required column fails the whole file.
func ParseResults(r io.Reader) ([]scoring.VoteRecord, []ParseWarning, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, errors.New("empty file")
		}
		return nil, nil, fmt.Errorf("read header: %w", err)
	}

	cols := make(map[string]int)
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		key = strings.ReplaceAll(key, " ", "_")
		if canonical, ok := headerAliases[key]; ok {
			if _, dup := cols[canonical]; !dup {
				cols[canonical] = i
			}
		}
	}
	for _, col := range requiredColumns {
		if _, ok := cols[col]; !ok {
			return nil, nil, fmt.Errorf("missing required column %q", col)
		}
	}

	var records []scoring.VoteRecord
	var warnings []ParseWarning
	rowNum := 1
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		rowNum++
		if err != nil {
			warnings = append(warnings, ParseWarning{Row: rowNum, Message: err.Error()})
			continue
		}

		field := func(name string) string {
			idx := cols[name]
			if idx >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[idx])
		}

		votes, err := strconv.ParseInt(field("votes"), 10, 64)
		if err != nil {
			warnings = append(warnings, ParseWarning{Row: rowNum, Message: fmt.Sprintf("bad vote count %q", field("votes"))})
			continue
		}
		date, err := normalizeDate(field("date"))
		if err != nil {
			warnings = append(warnings, ParseWarning{Row: rowNum, Message: err.Error()})
			continue
		}

		records = append(records, scoring.VoteRecord{
			Jurisdiction: strings.ToLower(field("jurisdiction")),
			Precinct:     field("precinct"),
			Contest:      field("contest"),
			ElectionDate: date,
			Party:        scoring.Party(strings.ToLower(field("party"))),
			Candidate:    field("candidate"),
			Votes:        votes,
		})
	}
	return records, warnings, nil
}

var dateLayouts = []string{"2006-01-02", "01/02/2006", "1/2/2006"}

// normalizeDate canonicalizes the export's date spelling to ISO so that
// string comparison downstream orders elections chronologically.
func normalizeDate(raw string) (string, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format("2006-01-02"), nil
		}
	}
	return "", fmt.Errorf("bad election date %q", raw)
}
