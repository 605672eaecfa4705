package spt

import (
	"errors"

	"github.com/rs/xid"

	"github.com/vanovost/dc09spt/dc09"
	"github.com/vanovost/dc09spt/transpath"
)

// ackMaxLen bounds the acknowledgement read; the original allows up to
// 1024 bytes for a bare receive and 512 for sendAndReceive, but a single
// generous bound keeps the Go transport simple and is large enough for
// any DC-09 ack.
const ackMaxLen = 1024

// transferMsg is the inner primitive shared by the dispatcher and the
// poll scheduler (spec.md §4.5 transfer_msg): open a fresh connection,
// build and send the block, parse the ack, resync and retry once on NAK,
// and report whether the final status was ACK.
func (s *SPT) transferMsg(msgNr uint16, typ dc09.Type, payload string, p *Path) bool {
	corr := xid.New().String()

	conn, err := transpath.Connect(p.Target, s.log)
	if err != nil {
		s.log.Debug("spt[%s]: connect to %s port %d failed: %v", corr, p.Target.Host, p.Target.Port, err)
		return false
	}
	defer conn.Disconnect()

	block, err := dc09.NewBlock(p.Account, p.Key, p.Receiver, p.Line)
	if err != nil {
		s.log.Error("spt: path configuration error: %v", err)
		return false
	}
	block.Offset = p.Offset()

	frame, err := block.Build(msgNr, typ, payload)
	if err != nil {
		s.log.Error("spt: build block nr %d type %s failed: %v", msgNr, typ, err)
		return false
	}

	reply, err := conn.SendAndReceive(frame, ackMaxLen)
	if err != nil || reply == nil {
		return false
	}

	status, offset, err := block.ParseAck(msgNr, reply)
	if err != nil {
		s.log.Error("spt: ack parse for nr %d failed: %v", msgNr, err)
		return false
	}
	if offset != nil {
		p.SetOffset(*offset)
	}

	if status == dc09.StatusNAK {
		block.Offset = p.Offset()
		frame, err = block.Build(msgNr, typ, payload)
		if err != nil {
			return false
		}
		if err := conn.Send(frame); err != nil {
			return false
		}
		reply, err = conn.Receive(ackMaxLen)
		if err != nil || reply == nil {
			return false
		}
		status, _, err = block.ParseAck(msgNr, reply)
		if err != nil {
			if !errors.Is(err, dc09.ErrMalformedAck) {
				s.log.Error("spt: ack parse after NAK resync for nr %d failed: %v", msgNr, err)
			}
			return false
		}
	}

	s.log.Debug("spt[%s]: transfer nr %d type %s to %s port %d status %s", corr, msgNr, typ, p.Target.Host, p.Target.Port, status)
	return status == dc09.StatusACK
}
