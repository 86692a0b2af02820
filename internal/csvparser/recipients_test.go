package csvparser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRecipients(t *testing.T) {
	t.Parallel()

	csv := "Email,Name,City\n" +
		"alice@example.com,Alice,Nairobi\n" +
		"bob@example.com,Bob,Mombasa\n"

	recipients, err := ParseRecipients(strings.NewReader(csv), 0)
	require.NoError(t, err)
	require.Len(t, recipients, 2)

	assert.Equal(t, "alice@example.com", recipients[0].Address)
	assert.Equal(t, map[string]string{"Name": "Alice", "City": "Nairobi"}, recipients[0].Fields)
	assert.Equal(t, "bob@example.com", recipients[1].Address)
}

func TestParseRecipientsHeaderVariants(t *testing.T) {
	t.Parallel()

	csv := "NAME,EMAIL\nAlice,alice@example.com\n"
	recipients, err := ParseRecipients(strings.NewReader(csv), 0)
	require.NoError(t, err)
	require.Len(t, recipients, 1)
	assert.Equal(t, "alice@example.com", recipients[0].Address)
}

func TestParseRecipientsSkipsBadRows(t *testing.T) {
	t.Parallel()

	csv := "Email,Name\n" +
		",NoAddress\n" +
		"carol@example.com,Carol\n"

	recipients, err := ParseRecipients(strings.NewReader(csv), 0)
	require.NoError(t, err)
	require.Len(t, recipients, 1)
	assert.Equal(t, "carol@example.com", recipients[0].Address)
}

func TestParseRecipientsMaxRows(t *testing.T) {
	t.Parallel()

	csv := "Email\na@example.com\nb@example.com\nc@example.com\n"
	recipients, err := ParseRecipients(strings.NewReader(csv), 2)
	require.NoError(t, err)
	assert.Len(t, recipients, 2)
}

func TestParseRecipientsErrors(t *testing.T) {
	t.Parallel()

	_, err := ParseRecipients(strings.NewReader("Name\nAlice\n"), 0)
	assert.Error(t, err, "missing email column")

	_, err = ParseRecipients(strings.NewReader("Email\n"), 0)
	assert.Error(t, err, "no data rows")
}
