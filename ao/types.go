package ao

import (
	"encoding/json"
	"fmt"
)

// Well known tag names.
const (
	TagAction = "Action"
	TagScore  = "Score"
	TagWallet = "Wallet"
	TagNonce  = "Nonce"
)

type (
	Tag struct {
		Name  string `json:"name"`
		Value string `json:"value"`
	}

	Tags []Tag

	/*
	Query is the read-only request evaluated by the compute unit without
	changing the state of the process ("dry-run").
	*/
	Query struct {
		Target string `json:"Target"`
		Owner  string `json:"Owner,omitempty"`
		Tags   Tags   `json:"Tags"`
		Data   string `json:"Data,omitempty"`
	}

	// Message is a single output message of the process.
	Message struct {
		Target string `json:"Target,omitempty"`
		Data   string `json:"Data,omitempty"`
		Tags   Tags   `json:"Tags,omitempty"`
	}

	// Result of evaluating a query.
	Result struct {
		Messages []Message `json:"Messages"`
		Error    string    `json:"Error,omitempty"`
	}

	// Receipt is returned by the endpoint when message has been accepted.
	Receipt struct {
		ID        string `json:"id"`
		Timestamp int64  `json:"timestamp,omitempty"`
	}
)

func NewTag(name, value string) Tag {
	return Tag{Name: name, Value: value}
}

// Get returns value of the first tag with given name.
func (t Tags) Get(name string) (string, bool) {
	for _, tag := range t {
		if tag.Name == name {
			return tag.Value, true
		}
	}
	return "", false
}

/*
FirstData returns payload of the first message in the result. Second return
value is false when there are no messages or the first message has no data.
*/
func (r *Result) FirstData() (string, bool) {
	if r == nil || len(r.Messages) == 0 || r.Messages[0].Data == "" {
		return "", false
	}
	return r.Messages[0].Data, true
}

/*
UnmarshalJSON accepts message data both as JSON string and as inline JSON
value, some compute units return already decoded payload.
*/
func (m *Message) UnmarshalJSON(b []byte) error {
	var v struct {
		Target string          `json:"Target"`
		Data   json.RawMessage `json:"Data"`
		Tags   Tags            `json:"Tags"`
	}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	m.Target, m.Tags, m.Data = v.Target, v.Tags, ""
	if len(v.Data) == 0 || string(v.Data) == "null" {
		return nil
	}
	if v.Data[0] == '"' {
		if err := json.Unmarshal(v.Data, &m.Data); err != nil {
			return fmt.Errorf("decoding message data: %w", err)
		}
		return nil
	}
	m.Data = string(v.Data)
	return nil
}
