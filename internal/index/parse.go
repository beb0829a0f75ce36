package index

import (
	"bufio"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"

	"github.com/JakeFAU/insider-filings-crawler/internal/edgar"
)

const fieldCount = 5

// Parse reads the master index layout:
//
//	Description:           Daily Index of EDGAR Dissemination Feed by Company Name
//	...
//	CIK|Company Name|Form Type|Date Filed|File Name
//	--------------------------------------------------------------------------------
//	320193|Apple Inc.|4|20250213|edgar/data/320193/0000320193-25-000010.txt
//
// Everything up to the dashed separator is preamble. Text without a separator holds
// no data and yields an empty slice.
func Parse(text string) ([]edgar.IndexEntry, error) {
	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var (
		entries []edgar.IndexEntry
		inData  bool
		lineNo  int
	)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if !inData {
			inData = isSeparator(line)
			continue
		}
		if line == "" {
			continue
		}
		entry, err := parseLine(line)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %w", edgar.ErrParse, lineNo, err)
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: scan index: %w", edgar.ErrParse, err)
	}
	return entries, nil
}

func isSeparator(line string) bool {
	return len(line) >= 3 && strings.Trim(line, "-") == ""
}

func parseLine(line string) (edgar.IndexEntry, error) {
	fields := strings.Split(line, "|")
	if len(fields) != fieldCount {
		return edgar.IndexEntry{}, fmt.Errorf("expected %d fields, got %d", fieldCount, len(fields))
	}
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	filed, err := parseFiledDate(fields[3])
	if err != nil {
		return edgar.IndexEntry{}, err
	}
	return edgar.IndexEntry{
		CIK:       fields[0],
		Company:   fields[1],
		FormType:  fields[2],
		DateFiled: filed,
		Path:      fields[4],
	}, nil
}

// parseFiledDate accepts the daily index form (20250213) and the full index form (2025-02-13).
func parseFiledDate(raw string) (civil.Date, error) {
	layout := "20060102"
	if strings.Contains(raw, "-") {
		layout = "2006-01-02"
	}
	t, err := time.Parse(layout, raw)
	if err != nil {
		return civil.Date{}, fmt.Errorf("date filed %q: %w", raw, err)
	}
	return civil.DateOf(t), nil
}
