package followup

import "encoding/json"

// Envelope is the body posted to the scheduling webhook.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}
