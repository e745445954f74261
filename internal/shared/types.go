package shared

import "encoding/json"

// ChatMessage is one turn of a conversation. A message decoded from a
// request body re-encodes exactly as received, extra fields included.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	Name    string `json:"name,omitempty"`

	raw json.RawMessage
}

type chatMessageFields ChatMessage

func (m *ChatMessage) UnmarshalJSON(b []byte) error {
	var fields chatMessageFields
	if err := json.Unmarshal(b, &fields); err != nil {
		return err
	}
	*m = ChatMessage(fields)
	m.raw = append(json.RawMessage(nil), b...)
	return nil
}

func (m ChatMessage) MarshalJSON() ([]byte, error) {
	if m.raw != nil {
		return m.raw, nil
	}
	return json.Marshal(chatMessageFields(m))
}

// Envelope is the single response shape of every orchestrating endpoint.
// Exactly one of Response and Message is set, depending on Status.
type Envelope struct {
	Status   string  `json:"status"`
	Response *string `json:"response,omitempty"`
	Message  *string `json:"message,omitempty"`
}

// TagEnvelope is the feature-extraction success shape: the raw completion
// plus the tags parsed out of it.
type TagEnvelope struct {
	Status   string   `json:"status"`
	Response string   `json:"response"`
	Tags     []string `json:"tags"`
}

func SuccessEnvelope(response string) Envelope {
	return Envelope{Status: StatusSuccess, Response: &response}
}

func ErrorEnvelope(err error) Envelope {
	msg := err.Error()
	return Envelope{Status: StatusError, Message: &msg}
}

type ProcessTextBody struct {
	InputText string `json:"input_text"`
	Variant   string `json:"variant"`
}

type FeatureExtractionBody struct {
	UserMessages []ChatMessage `json:"user_messages"`
}

type TranscriptBody struct {
	Input string `json:"input"`
}

type SessionSummary struct {
	Title string   `json:"title"`
	Tags  []string `json:"tags"`
}

type WeeklySummaryBody struct {
	Sessions []SessionSummary `json:"sessions"`
}

type TagsResponse struct {
	Tags []string `json:"tags"`
}

type ItemResponse struct {
	ItemID int    `json:"item_id"`
	Name   string `json:"name"`
}

// SubmitResponse echoes the submitted object. Values are kept as raw JSON so
// numbers come back exactly as sent.
type SubmitResponse struct {
	Received map[string]json.RawMessage `json:"received"`
	Status   string                     `json:"status"`
}
