package state

import (
	"github.com/blockj/node/foundation/blockchain/database"
	"github.com/blockj/node/foundation/blockchain/p2p"
	"github.com/blockj/node/foundation/blockchain/peer"
)

// maxBlocksPerRequest bounds the blocks sent back for one request so the
// send queue of the connection isn't overrun. A node that is further behind
// asks again when the next block announcement arrives.
const maxBlocksPerRequest = 32

// blockRequest asks a peer for the blocks starting at the height.
type blockRequest struct {
	From uint64 `json:"from"`
}

// =============================================================================

// handlePacket is called by the network for every packet received from a
// peer. Invalid content is logged and dropped.
func (s *State) handlePacket(from peer.Peer, pkt p2p.Packet) {
	switch pkt.Type {
	case p2p.BlockAnnouncement:
		var block database.Block
		if err := pkt.Decode(&block); err != nil {
			s.evHandler("state: handlePacket: peer[%s]: ERROR: %s", from, err)
			return
		}

		if err := s.ProcessProposedBlock(from, block); err != nil {
			s.evHandler("state: handlePacket: peer[%s]: blk[%d]: WARNING: block dropped: %s", from, block.Header.Height, err)
		}

	case p2p.BlockRequest:
		var req blockRequest
		if err := pkt.Decode(&req); err != nil {
			s.evHandler("state: handlePacket: peer[%s]: ERROR: %s", from, err)
			return
		}

		s.sendBlocks(from, req.From)

	case p2p.MessageAnnouncement:
		var msg database.Message
		if err := pkt.Decode(&msg); err != nil {
			s.evHandler("state: handlePacket: peer[%s]: ERROR: %s", from, err)
			return
		}

		if err := s.ProcessProposedMessage(msg); err != nil {
			s.evHandler("state: handlePacket: peer[%s]: msg[%s]: WARNING: message dropped: %s", from, msg.Cid, err)
		}

	default:
		s.evHandler("state: handlePacket: peer[%s]: WARNING: unknown packet type[%s]", from, pkt.Type)
	}
}

// requestBlocks asks the peer for any blocks after our chain head.
func (s *State) requestBlocks(p peer.Peer) {
	head, err := s.db.ChainHead()
	if err != nil {
		s.evHandler("state: requestBlocks: peer[%s]: ERROR: %s", p, err)
		return
	}

	pkt, err := p2p.NewPacket(p2p.BlockRequest, blockRequest{From: head + 1})
	if err != nil {
		s.evHandler("state: requestBlocks: peer[%s]: ERROR: %s", p, err)
		return
	}

	if err := s.network.Send(p, pkt); err != nil {
		s.evHandler("state: requestBlocks: peer[%s]: WARNING: %s", p, err)
		return
	}

	s.evHandler("state: requestBlocks: peer[%s]: requested from blk[%d]", p, head+1)
}

// sendBlocks announces the blocks starting at the height to a single peer.
func (s *State) sendBlocks(p peer.Peer, from uint64) {
	head, err := s.db.ChainHead()
	if err != nil {
		s.evHandler("state: sendBlocks: peer[%s]: ERROR: %s", p, err)
		return
	}

	for height := from; height <= head && height < from+maxBlocksPerRequest; height++ {
		block, err := s.db.BlockByHeight(height)
		if err != nil {
			s.evHandler("state: sendBlocks: peer[%s]: blk[%d]: ERROR: %s", p, height, err)
			return
		}

		pkt, err := p2p.NewPacket(p2p.BlockAnnouncement, block)
		if err != nil {
			s.evHandler("state: sendBlocks: peer[%s]: blk[%d]: ERROR: %s", p, height, err)
			return
		}

		if err := s.network.Send(p, pkt); err != nil {
			s.evHandler("state: sendBlocks: peer[%s]: blk[%d]: WARNING: %s", p, height, err)
			return
		}
	}
}

// NetSendBlockToPeers announces a block mined by this node to the group.
func (s *State) NetSendBlockToPeers(block database.Block) error {
	pkt, err := p2p.NewPacket(p2p.BlockAnnouncement, block)
	if err != nil {
		return err
	}

	sent, err := s.network.Broadcast(pkt)
	if err != nil {
		return err
	}

	s.evHandler("state: NetSendBlockToPeers: blk[%d]: sent to peers[%d]", block.Header.Height, sent)

	return nil
}

// NetSendMessageToPeers shares a message accepted by this node with the group.
func (s *State) NetSendMessageToPeers(msg database.Message) error {
	pkt, err := p2p.NewPacket(p2p.MessageAnnouncement, msg)
	if err != nil {
		return err
	}

	sent, err := s.network.Broadcast(pkt)
	if err != nil {
		return err
	}

	s.evHandler("state: NetSendMessageToPeers: msg[%s]: sent to peers[%d]", msg.Cid, sent)

	return nil
}
