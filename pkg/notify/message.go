package notify

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"html/template"
)

// Graph sendMail request shapes.
type SendMailRequest struct {
	Message         Message `json:"message"`
	SaveToSentItems bool    `json:"saveToSentItems"`
}

type Message struct {
	Subject      string       `json:"subject"`
	Body         ItemBody     `json:"body"`
	From         *Recipient   `json:"from,omitempty"`
	ToRecipients []Recipient  `json:"toRecipients"`
	Attachments  []Attachment `json:"attachments,omitempty"`
}

type ItemBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

type Recipient struct {
	EmailAddress EmailAddress `json:"emailAddress"`
}

type EmailAddress struct {
	Address string `json:"address"`
	Name    string `json:"name,omitempty"`
}

type Attachment struct {
	ODataType    string `json:"@odata.type"`
	Name         string `json:"name"`
	ContentType  string `json:"contentType"`
	ContentBytes string `json:"contentBytes"`
}

const fileAttachmentType = "#microsoft.graph.fileAttachment"

var bodyTemplate = template.Must(template.New("failed-referral").Parse(`Hi!
<p>
  The fax gateway received <strong>{{.Name}}</strong>{{if .Destination}} for fax
  destination {{.Destination}}{{end}}, which could not be processed automatically.
</p>
<p style="font-weight: bold">Next Steps:</p>
<ol>
  <li>If this is a referral, download the attached file and process it manually.</li>
  <li>If it is not a referral, process it as you normally would from a fax machine.</li>
</ol>
<p>Do not respond to this email; the mailbox is not monitored.</p>
<p>Thanks!</p>`))

// Failure describes the document a notification is about.
type Failure struct {
	Name        string
	Destination string
	ContentType string
	Content     []byte
}

func Subject(destination string) string {
	return fmt.Sprintf("A Possible Referral Failed for Fax Destination: %s", destination)
}

// BuildMessage renders the failed-referral mail with the document attached.
func BuildMessage(from string, to []string, f Failure) (SendMailRequest, error) {
	var body bytes.Buffer
	if err := bodyTemplate.Execute(&body, f); err != nil {
		return SendMailRequest{}, fmt.Errorf("rendering body: %w", err)
	}

	msg := Message{
		Subject: Subject(f.Destination),
		Body:    ItemBody{ContentType: "HTML", Content: body.String()},
		Attachments: []Attachment{{
			ODataType:    fileAttachmentType,
			Name:         f.Name,
			ContentType:  f.ContentType,
			ContentBytes: base64.StdEncoding.EncodeToString(f.Content),
		}},
	}
	if from != "" {
		msg.From = &Recipient{EmailAddress: EmailAddress{Address: from}}
	}
	for _, addr := range to {
		msg.ToRecipients = append(msg.ToRecipients, Recipient{EmailAddress: EmailAddress{Address: addr}})
	}
	return SendMailRequest{Message: msg, SaveToSentItems: true}, nil
}
