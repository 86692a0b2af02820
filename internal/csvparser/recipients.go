package csvparser

import (
	"encoding/csv"
	"errors"
	"io"
	"strings"

	"mailflow/internal/models"
)

// ParseRecipients parses a recipient CSV into campaign recipients. The CSV
// must contain a header row with an "Email" column (case-insensitive); all
// other columns become per-recipient template fields.
//
// maxRows limits how many data rows are parsed (excluding header).
func ParseRecipients(r io.Reader, maxRows int) ([]models.CampaignRecipient, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	headers, err := reader.Read()
	if err != nil {
		return nil, err
	}
	if len(headers) == 0 {
		return nil, errors.New("csv header row is empty")
	}

	emailIdx := -1
	normalized := make([]string, len(headers))
	for i, h := range headers {
		h = strings.TrimSpace(h)
		normalized[i] = h
		if strings.EqualFold(h, "email") {
			emailIdx = i
		}
	}
	if emailIdx == -1 {
		return nil, errors.New("csv must contain an Email column")
	}

	if maxRows <= 0 {
		maxRows = 10000
	}

	recipients := make([]models.CampaignRecipient, 0)
	for len(recipients) < maxRows {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(record) != len(headers) {
			// skip malformed row
			continue
		}

		email := strings.TrimSpace(record[emailIdx])
		if email == "" {
			continue
		}

		fields := make(map[string]string, len(headers)-1)
		for i := range record {
			if i == emailIdx {
				continue
			}
			key := normalized[i]
			if key == "" {
				continue
			}
			fields[key] = strings.TrimSpace(record[i])
		}

		recipients = append(recipients, models.CampaignRecipient{
			Address: email,
			Fields:  fields,
			Status:  models.RecipientPending,
		})
	}

	if len(recipients) == 0 {
		return nil, errors.New("csv must contain at least one recipient row")
	}

	return recipients, nil
}
