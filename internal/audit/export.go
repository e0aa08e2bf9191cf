package audit

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
	"time"
)

// WriteTimelineCSV serialises timeline entries to CSV for offline review.
// Entries are written as stored, so redaction has already been applied.
func WriteTimelineCSV(w io.Writer, entries []Entry) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	header := []string{"ID", "Timestamp", "UserID", "Action", "ResourceType", "ResourceID", "IPAddress", "UserAgent", "Metadata", "Success", "ErrorMessage"}
	if err := writer.Write(header); err != nil {
		return err
	}
	for _, entry := range entries {
		meta := ""
		if len(entry.Metadata) > 0 {
			data, err := json.Marshal(entry.Metadata)
			if err != nil {
				return err
			}
			meta = string(data)
		}
		record := []string{
			entry.ID,
			entry.Timestamp.Format(time.RFC3339),
			entry.UserID,
			entry.Action,
			entry.ResourceType,
			entry.ResourceID,
			entry.IPAddress,
			entry.UserAgent,
			meta,
			strconv.FormatBool(entry.Success),
			entry.ErrorMessage,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
