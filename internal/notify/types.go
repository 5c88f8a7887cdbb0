// Package notify defines the message contracts for the external
// notification dispatcher and the RabbitMQ publisher that feeds it.
// Delivery is best effort and fire-and-forget: failures are logged and
// never propagated into the booking flow.
package notify

// Attachment is a document attached to an email, such as a rendered
// invoice.  Data is base64-encoded on the wire by encoding/json.
type Attachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"data"`
}

// EmailMessage asks the dispatcher to deliver one email.
type EmailMessage struct {
	To          string       `json:"to"`
	Subject     string       `json:"subject"`
	HTML        string       `json:"html"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// SMSMessage asks the dispatcher to deliver one text message.
type SMSMessage struct {
	To      string `json:"to"`
	Message string `json:"message"`
}

// Event kinds carried on the dispatch queue.
const (
	KindEmail = "email"
	KindSMS   = "sms"
)

// Event is the envelope published to the notification.dispatch queue.
// Exactly one of Email or SMS is set, matching Kind.
type Event struct {
	Kind       string        `json:"kind"`
	Email      *EmailMessage `json:"email,omitempty"`
	SMS        *SMSMessage   `json:"sms,omitempty"`
	EnqueuedAt string        `json:"enqueued_at"`
}
