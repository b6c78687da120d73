// Package notify renders booking notifications and delivers them over the
// configured channels.
package notify

import (
	"bytes"
	"fmt"
	"text/template"

	"translink/internal/events"
	"translink/internal/models"
)

// Message is a rendered notification.
type Message struct {
	Subject string
	Body    string
}

type messageData struct {
	models.NotificationPayload
	RecipientName string
}

var subjects = map[string]string{
	events.EventRequestCreated:   "New service request #{{.ServiceRequestID}}",
	events.EventRequestUpdated:   "Service request #{{.ServiceRequestID}} was updated",
	events.EventRequestApproved:  "Service request #{{.ServiceRequestID}} approved",
	events.EventRequestRejected:  "Service request #{{.ServiceRequestID}} rejected",
	events.EventRequestCancelled: "Service request #{{.ServiceRequestID}} cancelled",
	events.EventRequestCompleted: "Service request #{{.ServiceRequestID}} completed",
	events.EventPaymentConfirmed: "Payment received for request #{{.ServiceRequestID}}",
	events.EventPaymentFailed:    "Payment failed for request #{{.ServiceRequestID}}",
	events.EventPaymentRefunded:  "Payment refunded for request #{{.ServiceRequestID}}",
	events.EventReviewCreated:    "New review for request #{{.ServiceRequestID}}",
}

const bodyTemplate = `Hello {{.RecipientName}},

{{summary .Event}}

Date: {{.BookingDate}} {{.StartAt}}-{{.EndAt}}
{{- if .Location}}
Location: {{.Location}}
{{- end}}
Total: {{.TotalPrice.StringFixed 0}}
Status: {{.RequestStatus}} / {{.BookingStatus}}
{{- if .Reason}}
Reason: {{.Reason}}
{{- end}}
`

var summaries = map[string]string{
	events.EventRequestCreated:   "A client booked one of your services.",
	events.EventRequestUpdated:   "The client changed the booking details.",
	events.EventRequestApproved:  "The translator accepted your booking. You can pay for it now.",
	events.EventRequestRejected:  "The translator declined your booking.",
	events.EventRequestCancelled: "The client cancelled the booking.",
	events.EventRequestCompleted: "The booking is complete. You can leave a review.",
	events.EventPaymentConfirmed: "The payment for this booking went through.",
	events.EventPaymentFailed:    "The payment for this booking did not go through.",
	events.EventPaymentRefunded:  "The payment for this booking was refunded.",
	events.EventReviewCreated:    "The client left a review for this booking.",
}

var (
	bodyTmpl     = template.Must(template.New("body").Funcs(template.FuncMap{"summary": summary}).Parse(bodyTemplate))
	subjectTmpls = parseSubjects()
)

func parseSubjects() map[string]*template.Template {
	out := make(map[string]*template.Template, len(subjects))
	for event, text := range subjects {
		out[event] = template.Must(template.New(event).Parse(text))
	}
	return out
}

func summary(event string) string {
	if s, ok := summaries[event]; ok {
		return s
	}
	return "Your booking changed."
}

// Render builds the message for payload addressed to recipient.
func Render(payload models.NotificationPayload, recipient *models.User) (Message, error) {
	data := messageData{NotificationPayload: payload}
	if recipient != nil {
		data.RecipientName = recipient.FullName
	}

	subj, ok := subjectTmpls[payload.Event]
	if !ok {
		return Message{}, fmt.Errorf("no template for event %q", payload.Event)
	}

	var buf bytes.Buffer
	if err := subj.Execute(&buf, data); err != nil {
		return Message{}, fmt.Errorf("render subject: %w", err)
	}
	msg := Message{Subject: buf.String()}

	buf.Reset()
	if err := bodyTmpl.Execute(&buf, data); err != nil {
		return Message{}, fmt.Errorf("render body: %w", err)
	}
	msg.Body = buf.String()
	return msg, nil
}
