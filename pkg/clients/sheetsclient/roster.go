package sheetsclient

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Fixed roster columns. Any column an association adds to the right of these
// (attendance, notes) is preserved across exports.
var rosterColumns = []string{"Nom", "E-mail", "Statut", "Inscrit le"}

const (
	rosterHeaderRow = 2 // zero-based: two lines of mission details above the header
	maxTabTitleLen  = 100
)

// RosterRow is one volunteer line of a mission roster
type RosterRow struct {
	Name         string
	Email        string
	Status       string
	RegisteredAt string
}

// Roster is the list of volunteers for a single mission occurrence
type Roster struct {
	MissionTitle string
	Date         string // 2006-01-02
	StartTime    string // 15:04
	Rows         []RosterRow
}

// PublishRoster writes a roster to its own tab, named after the mission date
// and title. An existing tab is refreshed in place: volunteer rows are matched
// by email (or name) so values in extra columns stay on the right person.
func (c *Client) PublishRoster(spreadsheetID string, roster *Roster) error {
	title := rosterTabTitle(roster)

	exists, err := c.SheetExists(spreadsheetID, title)
	if err != nil {
		return err
	}

	var values [][]interface{}
	if !exists {
		if _, err := c.CreateSheet(spreadsheetID, title); err != nil {
			return fmt.Errorf("failed to create roster tab: %w", err)
		}
		values = newRosterValues(roster)
	} else {
		existing, err := c.GetValues(spreadsheetID, quotedRange(title, "A1:ZZ"))
		if err != nil {
			return fmt.Errorf("failed to read existing roster tab: %w", err)
		}
		values, err = mergeRosterValues(existing, roster)
		if err != nil {
			return err
		}
	}

	if err := c.UpdateValues(spreadsheetID, quotedRange(title, "A1"), values); err != nil {
		return fmt.Errorf("failed to write roster tab: %w", err)
	}
	return nil
}

// rosterTabTitle returns "2025-03-08 Title", cut to the Sheets title limit
func rosterTabTitle(roster *Roster) string {
	title := strings.TrimSpace(roster.Date + " " + roster.MissionTitle)
	if utf8.RuneCountInString(title) <= maxTabTitleLen {
		return title
	}
	runes := []rune(title)
	return strings.TrimSpace(string(runes[:maxTabTitleLen]))
}

// quotedRange builds an A1 range on a tab whose title may contain spaces or quotes
func quotedRange(title, cells string) string {
	return fmt.Sprintf("'%s'!%s", strings.ReplaceAll(title, "'", "''"), cells)
}

func rosterPreamble(roster *Roster) [][]interface{} {
	return [][]interface{}{
		{roster.MissionTitle},
		{fmt.Sprintf("Le %s à %s", roster.Date, roster.StartTime), fmt.Sprintf("%d bénévole(s)", len(roster.Rows))},
	}
}

func rowCells(row RosterRow) []interface{} {
	return []interface{}{row.Name, row.Email, row.Status, row.RegisteredAt}
}

// newRosterValues lays out a fresh tab
func newRosterValues(roster *Roster) [][]interface{} {
	values := rosterPreamble(roster)

	header := make([]interface{}, len(rosterColumns))
	for i, col := range rosterColumns {
		header[i] = col
	}
	values = append(values, header)

	for _, row := range roster.Rows {
		values = append(values, rowCells(row))
	}
	return values
}

// mergeRosterValues rewrites the fixed columns of an existing tab and keeps
// extra columns attached to the matching volunteer. Rows of volunteers no
// longer on the roster are blanked so stale lines do not linger.
func mergeRosterValues(existing [][]interface{}, roster *Roster) ([][]interface{}, error) {
	if len(existing) <= rosterHeaderRow {
		return nil, fmt.Errorf("existing roster tab has no header row")
	}

	header := existing[rosterHeaderRow]
	nameCol := findColumnIndex(header, "Nom")
	emailCol := findColumnIndex(header, "E-mail")
	if nameCol == -1 || emailCol == -1 {
		return nil, fmt.Errorf("existing roster tab is missing the Nom or E-mail column")
	}

	// Extra columns are everything the fixed set does not claim
	var extraCols []int
	for i, cell := range header {
		name, _ := cell.(string)
		if name != "" && !isRosterColumn(name) {
			extraCols = append(extraCols, i)
		}
	}

	previous := make(map[string][]interface{})
	oldRows := existing[rosterHeaderRow+1:]
	for _, row := range oldRows {
		if key := rowKey(cellString(row, emailCol), cellString(row, nameCol)); key != "" {
			previous[key] = row
		}
	}

	newHeader := make([]interface{}, 0, len(rosterColumns)+len(extraCols))
	for _, col := range rosterColumns {
		newHeader = append(newHeader, col)
	}
	for _, i := range extraCols {
		newHeader = append(newHeader, header[i])
	}

	values := rosterPreamble(roster)
	values = append(values, newHeader)
	for _, row := range roster.Rows {
		cells := rowCells(row)
		old := previous[rowKey(row.Email, row.Name)]
		for _, i := range extraCols {
			cells = append(cells, cellValue(old, i))
		}
		values = append(values, cells)
	}

	// Blank out leftover lines from a longer previous roster
	width := len(newHeader)
	for i := len(roster.Rows); i < len(oldRows); i++ {
		values = append(values, make([]interface{}, width))
		for j := range values[len(values)-1] {
			values[len(values)-1][j] = ""
		}
	}

	return values, nil
}

func isRosterColumn(name string) bool {
	for _, col := range rosterColumns {
		if col == name {
			return true
		}
	}
	return false
}

func rowKey(email, name string) string {
	if email = strings.ToLower(strings.TrimSpace(email)); email != "" {
		return "email:" + email
	}
	if name = strings.TrimSpace(name); name != "" {
		return "name:" + name
	}
	return ""
}

func cellValue(row []interface{}, i int) interface{} {
	if i < len(row) {
		return row[i]
	}
	return ""
}

func cellString(row []interface{}, i int) string {
	s, _ := cellValue(row, i).(string)
	return s
}

// findColumnIndex finds the index of a column by its header name
func findColumnIndex(header []interface{}, columnName string) int {
	for i, cell := range header {
		if str, ok := cell.(string); ok && str == columnName {
			return i
		}
	}
	return -1
}
