package p2p

import (
	"encoding/json"
	"fmt"
)

// PacketType identifies the content of a packet. Types are only ever added
// so nodes of different versions can keep talking.
type PacketType string

// Set of packet types understood by the network.
const (
	PeerIntroduction    PacketType = "peer_introduction"
	BlockAnnouncement   PacketType = "block_announcement"
	BlockRequest        PacketType = "block_request"
	MessageAnnouncement PacketType = "message_announcement"
)

// Packet is the envelope for everything sent between nodes.
type Packet struct {
	Type PacketType `json:"type"`
	Body []byte     `json:"body"`
}

// NewPacket serializes the value into the body of a packet of the type.
func NewPacket(typ PacketType, v any) (Packet, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return Packet{}, fmt.Errorf("encode %s body: %w", typ, err)
	}

	return Packet{Type: typ, Body: body}, nil
}

// Decode deserializes the body of the packet into the value.
func (p Packet) Decode(v any) error {
	if err := json.Unmarshal(p.Body, v); err != nil {
		return fmt.Errorf("decode %s body: %w", p.Type, err)
	}

	return nil
}
