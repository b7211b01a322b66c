package remote

import (
	"fmt"
	"html"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/emersion/go-message"
	"github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
)

func init() {
	// decode non UTF-8 messages instead of failing on them
	message.CharsetReader = charset.Reader
}

type content struct {
	messageID string
	from      string
	subject   string
	body      string
	date      time.Time
}

var htmlTags = regexp.MustCompile(`<[^>]+>`)

// parseMessage decodes the header fields used for filtering and extracts a
// text body: the first text/plain part, or failing that a text/html part
// stripped of its tags.
func parseMessage(r io.Reader) (content, error) {
	out := content{}
	reader, err := mail.CreateReader(r)
	if err != nil {
		return out, fmt.Errorf("cannot read message: %w", err)
	}
	header := reader.Header
	out.subject, _ = header.Subject()
	out.messageID, _ = header.MessageID()
	if date, err := header.Date(); err == nil {
		out.date = date
	}
	if from, err := header.AddressList("From"); err == nil && len(from) > 0 {
		out.from = formatAddress(from[0])
	}

	htmlBody := ""
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			// keep whatever was decoded so far
			return out, fmt.Errorf("cannot read message part: %w", err)
		}
		partHeader, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		mediaType, _, _ := partHeader.ContentType()
		switch mediaType {
		case "text/plain":
			if out.body == "" {
				data, _ := io.ReadAll(part.Body)
				out.body = cleanBody(string(data))
			}
		case "text/html":
			if htmlBody == "" {
				data, _ := io.ReadAll(part.Body)
				htmlBody = string(data)
			}
		}
	}
	if out.body == "" && htmlBody != "" {
		out.body = cleanBody(html.UnescapeString(htmlTags.ReplaceAllString(htmlBody, "")))
	}
	return out, nil
}

func cleanBody(body string) string {
	return strings.TrimLeft(body, "\r\n")
}

func formatAddress(address *mail.Address) string {
	if address.Name == "" {
		return address.Address
	}
	return address.Name + " <" + address.Address + ">"
}
