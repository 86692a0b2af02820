package orchestrator

import (
	"bytes"
	"fmt"
	"html/template"

	"mailflow/internal/models"
	"mailflow/internal/transport"
)

// buildMessage renders the campaign body template with the recipient's
// per-row fields.
func buildMessage(c *models.Campaign, r *models.CampaignRecipient) (transport.Message, error) {
	tmpl, err := template.New("campaign").Parse(c.Template)
	if err != nil {
		return transport.Message{}, fmt.Errorf("template parse error: %w", err)
	}

	data := make(map[string]string, len(r.Fields)+1)
	for k, v := range r.Fields {
		data[k] = v
	}
	data["Email"] = r.Address

	var body bytes.Buffer
	if err := tmpl.Execute(&body, data); err != nil {
		return transport.Message{}, fmt.Errorf("template execution error: %w", err)
	}

	return transport.Message{
		CampaignID:  c.ID,
		RecipientID: r.ID,
		To:          r.Address,
		Subject:     c.Subject,
		Body:        body.String(),
	}, nil
}
