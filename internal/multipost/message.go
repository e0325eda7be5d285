package multipost

import (
	"encoding/json"
	"fmt"
)

// MessageType tags the variant carried by a Message.
type MessageType string

const (
	MessagePost    MessageType = "Post"
	MessageSuccess MessageType = "Success"
	MessageError   MessageType = "Error"
	MessageTweet   MessageType = "Tweet"
)

// Message is exchanged between the dispatcher and the page that submitted a draft.
type Message struct {
	Type MessageType

	// Post
	Draft    string
	Services []ServiceName

	// Success and Error
	Service ServiceName
	// URL is nil when the service did not yield a canonical link.
	URL     *string
	Message string
}

// PostMessage builds the inbound submission message.
func PostMessage(draft *Draft, services []ServiceName) (Message, error) {
	serialized, err := draft.Serialize()
	if err != nil {
		return Message{}, fmt.Errorf("serialize draft: %w", err)
	}
	return Message{Type: MessagePost, Draft: serialized, Services: services}, nil
}

// SuccessMessage reports a created post. An empty url is sent as null.
func SuccessMessage(service ServiceName, url string) Message {
	m := Message{Type: MessageSuccess, Service: service}
	if url != "" {
		m.URL = &url
	}
	return m
}

// ErrorMessage reports a failed service.
func ErrorMessage(service ServiceName, err error) Message {
	return Message{Type: MessageError, Service: service, Message: err.Error()}
}

// TweetMessage asks the page to run the deep-link compose flow.
func TweetMessage() Message {
	return Message{Type: MessageTweet}
}

type postWire struct {
	Type     MessageType   `json:"type"`
	Draft    string        `json:"draft"`
	Services []ServiceName `json:"services"`
}

type successWire struct {
	Type    MessageType `json:"type"`
	Service ServiceName `json:"service"`
	URL     *string     `json:"url"`
}

type errorWire struct {
	Type    MessageType `json:"type"`
	Service ServiceName `json:"service"`
	Message string      `json:"message"`
}

type tweetWire struct {
	Type MessageType `json:"type"`
}

// MarshalJSON emits only the fields belonging to the message variant.
func (m Message) MarshalJSON() ([]byte, error) {
	switch m.Type {
	case MessagePost:
		return json.Marshal(postWire{Type: m.Type, Draft: m.Draft, Services: m.Services})
	case MessageSuccess:
		return json.Marshal(successWire{Type: m.Type, Service: m.Service, URL: m.URL})
	case MessageError:
		return json.Marshal(errorWire{Type: m.Type, Service: m.Service, Message: m.Message})
	case MessageTweet:
		return json.Marshal(tweetWire{Type: m.Type})
	default:
		return nil, fmt.Errorf("unknown message type %q", m.Type)
	}
}

// UnmarshalJSON decodes any message variant.
func (m *Message) UnmarshalJSON(b []byte) error {
	var raw struct {
		Type     MessageType   `json:"type"`
		Draft    string        `json:"draft"`
		Services []ServiceName `json:"services"`
		Service  ServiceName   `json:"service"`
		URL      *string       `json:"url"`
		Message  string        `json:"message"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	switch raw.Type {
	case MessagePost, MessageSuccess, MessageError, MessageTweet:
	default:
		return fmt.Errorf("unknown message type %q", raw.Type)
	}
	*m = Message{
		Type:     raw.Type,
		Draft:    raw.Draft,
		Services: raw.Services,
		Service:  raw.Service,
		URL:      raw.URL,
		Message:  raw.Message,
	}
	return nil
}
