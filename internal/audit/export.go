package audit

import "github.com/gocarina/gocsv"

// WriteCSV renders rows with a header line.
func WriteCSV(rows []TimelineRow) ([]byte, error) {
	if rows == nil {
		rows = []TimelineRow{}
	}
	return gocsv.MarshalBytes(&rows)
}
