package spt

import (
	"fmt"

	"github.com/vanovost/dc09spt/dc03"
	"github.com/vanovost/dc09spt/dc05"
	"github.com/vanovost/dc09spt/dc09"
)

// EventParams is the message parameter map of spec.md §6, given a typed
// shape per the DESIGN NOTES tagged-union suggestion. A single flat
// struct (rather than a Go sum type, which the language has no native
// support for) covers both the DC-03 and DC-05 field sets plus the extra
// location block and scheduling hints; SendMsg and the scheduler pick the
// fields relevant to the resolved dc09.Type.
type EventParams struct {
	Account  string
	Area     string
	AreaName string
	Zone     string
	ZoneName string
	User     string
	UserName string
	Door     string
	Code     string
	Text     string
	Time     string
	Flavor   string
	Q        string // DC-05 qualifier

	Lon          string
	Lat          string
	MAC          string
	Verification string

	// Type explicitly overrides the inferred dc09.Type; used by poll
	// state-change and routine messages (spec.md §4.6).
	Type dc09.Type

	// Interval and Start are not read by SendMsg or by the scheduler;
	// routine scheduling takes its interval and start offset from
	// RoutineConfig.Interval and RoutineConfig.Start.
	Interval int
	Start    int
}

func (p EventParams) extras() dc09.Extras {
	return dc09.Extras{Lon: p.Lon, Lat: p.Lat, MAC: p.MAC, Verification: p.Verification}
}

func (p EventParams) sia() dc03.Params {
	return dc03.Params{
		Account: p.Account, Area: p.Area, AreaName: p.AreaName,
		Zone: p.Zone, ZoneName: p.ZoneName, User: p.User, UserName: p.UserName,
		Door: p.Door, Code: p.Code, Text: p.Text, Time: p.Time, Flavor: p.Flavor,
	}
}

func (p EventParams) cid() dc05.Params {
	return dc05.Params{
		Account: p.Account, Area: p.Area, Zone: p.Zone, User: p.User, Code: p.Code, Q: p.Q,
	}
}

// inferType resolves the dc09.Type for a scheduler-originated message: an
// explicit Type wins; otherwise a 3-character code means ADM-CID and a
// 2-character code means SIA-DCS (spec.md §4.6 emit_state / do_routines).
// ok is false when neither an explicit type nor a usable code is present.
func inferType(p EventParams) (dc09.Type, bool) {
	if p.Type != "" {
		return p.Type, true
	}
	switch len(p.Code) {
	case 3:
		return dc09.TypeADMCID, true
	case 2:
		return dc09.TypeSIADCS, true
	default:
		return "", false
	}
}

// encode builds the DC09 payload for (typ, params), including any extras
// block, ready to enqueue.
func (s *SPT) encode(typ dc09.Type, params EventParams) (string, error) {
	var (
		payload string
		err     error
	)
	switch typ {
	case dc09.TypeSIADCS:
		payload, err = dc03.Encode(s.account, params.sia(), s.log)
	case dc09.TypeADMCID:
		payload, err = dc05.Encode(s.account, params.cid())
	case dc09.TypeNULL:
		payload = "]"
	default:
		return "", fmt.Errorf("%w: %q", dc09.ErrUnsupportedType, typ)
	}
	if err != nil {
		return "", err
	}
	if extra := params.extras().Build(); extra != "" {
		payload += extra
	}
	return payload, nil
}

// SendMsg encodes params into the payload grammar for mtype, allocates
// the next message number, enqueues the message, and starts the send
// dispatcher if it is idle (spec.md §4.5 send_msg). Safe to call from
// multiple goroutines.
func (s *SPT) SendMsg(mtype dc09.Type, params EventParams) error {
	payload, err := s.encode(mtype, params)
	if err != nil {
		return err
	}
	msgNr := s.nextMsgNr()
	s.log.Debug("spt: message queued nr %d type %s content %q", msgNr, mtype, payload)
	s.queue.pushBack(queued{msgNr: msgNr, typ: mtype, payload: payload})
	if s.metrics != nil {
		s.metrics.QueueDepth(s.queue.len())
	}
	s.ensureDispatcherRunning()
	return nil
}

// enqueueInferred infers the dc09.Type from an explicit Type or the code
// length and enqueues the message, dropping it when neither is usable.
// The scheduler's emitState applies the same rule inline rather than
// calling this helper.
func (s *SPT) enqueueInferred(params EventParams) {
	typ, ok := inferType(params)
	if !ok {
		s.log.Warn("spt: scheduler message has no usable code or type, dropped")
		return
	}
	if err := s.SendMsg(typ, params); err != nil {
		s.log.Error("spt: scheduler message encode failed: %v", err)
	}
}

// enqueueRoutine is used by the scheduler's do_routines duty (spec.md
// §4.6 "Routine messages"). Unlike emit_state, a routine with neither an
// explicit Type nor a usable Code is not dropped: it defaults to
// dc09.TypeSIADCS, which in turn defaults to the "RP" routine-test code,
// matching the canonical unconfigured routine.
func (s *SPT) enqueueRoutine(params EventParams) {
	typ, ok := inferType(params)
	if !ok {
		typ = dc09.TypeSIADCS
	}
	if err := s.SendMsg(typ, params); err != nil {
		s.log.Error("spt: routine message encode failed: %v", err)
	}
}
