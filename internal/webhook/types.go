// Package webhook defines the artifact, response and event types shared by
// the payload receiving pipeline.
package webhook

import "time"

// Artifact describes one payload file written to the data directory.
type Artifact struct {
	Name       string
	Path       string
	SizeBytes  int
	ReceivedAt time.Time
}

// Receipt is returned to the caller after a payload is stored.
type Receipt struct {
	Status  string `json:"status"`
	File    string `json:"file"`
	Message string `json:"message"`
}

// NewReceipt builds the success body for a stored artifact.
func NewReceipt(a *Artifact) Receipt {
	return Receipt{
		Status:  "received",
		File:    a.Name,
		Message: "Payload received and saved",
	}
}

// PayloadStoredEvent is the Kafka message produced after an artifact is
// written.
type PayloadStoredEvent struct {
	File       string    `json:"file"`
	Path       string    `json:"path"`
	SizeBytes  int       `json:"size_bytes"`
	RequestID  string    `json:"request_id,omitempty"`
	ReceivedAt time.Time `json:"received_at"`
}
