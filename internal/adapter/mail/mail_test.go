package mail

import (
	netmail "net/mail"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildRawMessage(t *testing.T) {
	raw := buildRawMessage("quotes@rateright.in", "garage@example.com",
		"Price inquiry: Car AC Repair", "Hello,\r\nwhat are your rates?", "<abc@rateright.in>")

	msg, err := netmail.ReadMessage(strings.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, "<abc@rateright.in>", msg.Header.Get("Message-ID"))
	assert.Equal(t, "garage@example.com", msg.Header.Get("To"))
	assert.Equal(t, "quotes@rateright.in", msg.Header.Get("Reply-To"))
}

func TestParseReply_MatchesByInReplyTo(t *testing.T) {
	raw := "From: garage@example.com\r\n" +
		"Subject: Re: Price inquiry\r\n" +
		"In-Reply-To: <abc@rateright.in>\r\n" +
		"Content-Type: text/plain\r\n" +
		"\r\n" +
		"Our rate is 2500 INR.\r\n"

	known := map[string]bool{"<abc@rateright.in>": true}
	reply, ok := parseReply(strings.NewReader(raw), known)
	require.True(t, ok)
	assert.Equal(t, "<abc@rateright.in>", reply.InReplyTo)
	assert.Contains(t, reply.Body, "2500 INR")
}

func TestParseReply_MatchesByReferences(t *testing.T) {
	raw := "From: garage@example.com\r\n" +
		"References: <other@x> <abc@rateright.in>\r\n" +
		"\r\n" +
		"body\r\n"

	known := map[string]bool{"<abc@rateright.in>": true}
	_, ok := parseReply(strings.NewReader(raw), known)
	assert.True(t, ok)
}

func TestParseReply_UnrelatedMessageIgnored(t *testing.T) {
	raw := "From: spam@example.com\r\n" +
		"Subject: Offer\r\n" +
		"\r\n" +
		"buy now\r\n"

	known := map[string]bool{"<abc@rateright.in>": true}
	_, ok := parseReply(strings.NewReader(raw), known)
	assert.False(t, ok)
}

func TestExtractTextBody_Multipart(t *testing.T) {
	raw := "From: a@b\r\n" +
		"In-Reply-To: <abc@rateright.in>\r\n" +
		"Content-Type: multipart/alternative; boundary=\"sep\"\r\n" +
		"\r\n" +
		"--sep\r\n" +
		"Content-Type: text/html\r\n" +
		"\r\n" +
		"<b>2500</b>\r\n" +
		"--sep\r\n" +
		"Content-Type: text/plain\r\n" +
		"\r\n" +
		"Rate is 2500 INR\r\n" +
		"--sep--\r\n"

	known := map[string]bool{"<abc@rateright.in>": true}
	reply, ok := parseReply(strings.NewReader(raw), known)
	require.True(t, ok)
	assert.Contains(t, reply.Body, "Rate is 2500 INR")
}
