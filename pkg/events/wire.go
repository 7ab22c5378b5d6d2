package events

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/agentstation/statuspage/pkg/errors"
)

// Client actions.
const (
	ActionJoin  = "join-organization"
	ActionLeave = "leave-organization"
)

// Message is the server to client frame: {"event": kind, "data": payload}.
type Message struct {
	Event Kind            `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// ClientMessage is the client to server frame.
type ClientMessage struct {
	Action  string `json:"action"`
	RoomKey string `json:"roomKey"`
}

// ConnectedPayload is the data of the handshake acknowledgement.
type ConnectedPayload struct {
	ConnectionID string `json:"connectionId"`
}

// Encode renders an event as a wire frame.
func Encode(e Event) ([]byte, error) {
	data, err := json.Marshal(e.Payload)
	if err != nil {
		return nil, fmt.Errorf("encoding %s payload: %w", e.Kind, err)
	}
	return json.Marshal(Message{Event: e.Kind, Data: data})
}

// EncodeConnected renders the handshake acknowledgement for a connection.
func EncodeConnected(connectionID string) ([]byte, error) {
	data, err := json.Marshal(ConnectedPayload{ConnectionID: connectionID})
	if err != nil {
		return nil, err
	}
	return json.Marshal(Message{Event: Connected, Data: data})
}

// Decode parses a server frame.
func Decode(b []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(b, &m); err != nil {
		return Message{}, errors.WrapParse("json", "", err)
	}
	if m.Event == "" {
		return Message{}, errors.NewValidationError("event", "", "missing event kind")
	}
	return m, nil
}

// DecodeClient parses and validates a client frame.
func DecodeClient(b []byte) (ClientMessage, error) {
	var m ClientMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return ClientMessage{}, errors.WrapParse("json", "", err)
	}
	m.RoomKey = strings.TrimSpace(m.RoomKey)
	switch m.Action {
	case ActionJoin, ActionLeave:
	default:
		return ClientMessage{}, errors.NewValidationError("action", m.Action, "unsupported action")
	}
	if m.RoomKey == "" {
		return ClientMessage{}, errors.NewValidationError("roomKey", m.RoomKey, "room key is required")
	}
	return m, nil
}

// Payload decodes a frame's data into the typed payload for its kind.
func (m Message) Payload() (any, error) {
	var target any
	switch m.Event {
	case ServiceStatusChanged:
		target = &ServiceStatusPayload{}
	case IncidentUpdated:
		target = &IncidentPayload{}
	case MaintenanceUpdated:
		target = &MaintenancePayload{}
	case TeamMemberAdded, TeamMemberRemoved, TeamMemberRoleChange:
		target = &TeamMemberPayload{}
	case TeamCreated, TeamUpdated, TeamDeleted:
		target = &TeamPayload{}
	case Connected:
		target = &ConnectedPayload{}
	default:
		return nil, errors.NewValidationError("event", string(m.Event), "unknown event kind")
	}
	if err := json.Unmarshal(m.Data, target); err != nil {
		return nil, errors.WrapParse("json", "", err)
	}
	return target, nil
}
