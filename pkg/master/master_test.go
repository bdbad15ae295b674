// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The Glowgrid Project

package master

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/glowgrid/floorbus/pkg/floornode"
	"github.com/glowgrid/floorbus/pkg/floorwire"
)

// scriptedBus is a transport whose far end is a handler function: every
// complete frame the controller sends is decoded and handed to the
// handler, whose replies are queued for the controller to receive.
type scriptedBus struct {
	t       *testing.T
	handler func(floorwire.Message) []floorwire.Message
	decoder *floorwire.Codec
	rx      []byte
	sent    []floorwire.Message
}

func newScriptedBus(t *testing.T, handler func(floorwire.Message) []floorwire.Message) *scriptedBus {
	return &scriptedBus{t: t, handler: handler, decoder: floorwire.NewCodec(0)}
}

func (b *scriptedBus) SendByte(c byte) error {
	st := b.decoder.Feed(c)
	if !st.Terminal() {
		return nil
	}
	if st != floorwire.StateReady {
		b.t.Fatalf("controller sent a bad frame: %v (%v)", st, b.decoder.Err())
	}
	m, _ := b.decoder.Message()
	m.Body = append([]byte(nil), m.Body...)
	b.decoder.Reset()
	b.sent = append(b.sent, m)
	if b.handler == nil {
		return nil
	}
	for _, reply := range b.handler(m) {
		frame, err := floorwire.EncodeMessage(reply)
		if err != nil {
			b.t.Fatalf("encode reply: %v", err)
		}
		b.rx = append(b.rx, frame...)
	}
	return nil
}

func (b *scriptedBus) ReceiveByte() (byte, bool) {
	if len(b.rx) == 0 {
		return 0, false
	}
	c := b.rx[0]
	b.rx = b.rx[1:]
	return c, true
}

func (b *scriptedBus) SetTransmitEnabled(bool) {}

type fakeSignal struct{ high bool }

func (s *fakeSignal) Read() bool { return s.high }
func (s *fakeSignal) Assert()    { s.high = true }
func (s *fakeSignal) Deassert()  { s.high = false }

func newTestMaster(t *testing.T, handler func(floorwire.Message) []floorwire.Message) (*Master, *scriptedBus, *fakeSignal) {
	bus := newScriptedBus(t, handler)
	head := &fakeSignal{}
	m := New(DefaultConfig(), bus, head)
	// Fake clock: every idle iteration jumps past any timeout, so an
	// unanswered wait ends after one pass instead of sleeping.
	clock := time.Unix(1000, 0)
	m.now = func() time.Time { return clock }
	m.idle = func() { clock = clock.Add(time.Second) }
	return m, bus, head
}

func ack(src byte) floorwire.Message {
	return floorwire.NewMessage(floorwire.ToMaster(), src, floorwire.MsgAck, nil)
}

func TestAssignAddresses_WalksTheChain(t *testing.T) {
	// Three claiming nodes, then silence.
	next := byte(0)
	handler := func(m floorwire.Message) []floorwire.Message {
		if m.Type != floorwire.MsgAddress || next >= 3 {
			return nil
		}
		claim := m.Body[0] + 1
		next++
		return []floorwire.Message{
			floorwire.NewMessage(floorwire.ToMaster(), claim, floorwire.MsgAddress, []byte{claim}),
		}
	}
	m, bus, head := newTestMaster(t, handler)

	got, err := m.AssignAddresses(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{1, 2, 3}
	if len(got) != len(want) {
		t.Fatalf("assigned %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("assigned %v, want %v", got, want)
		}
	}
	if !head.Read() {
		t.Error("head enable not asserted")
	}

	// Each claim must have been acked to the claimed address.
	var acks []floorwire.Message
	for _, s := range bus.sent {
		if s.Type == floorwire.MsgAck {
			acks = append(acks, s)
		}
	}
	if len(acks) != 3 {
		t.Fatalf("sent %d acks, want 3", len(acks))
	}
	for i, a := range acks {
		if a.Dest.Lo != want[i] || a.Dest.Hi != want[i] {
			t.Errorf("ack %d addressed to %s, want %d", i, a.Dest, want[i])
		}
	}
}

func TestAssignAddresses_EmptyChain(t *testing.T) {
	m, _, _ := newTestMaster(t, nil)
	got, err := m.AssignAddresses(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("assigned %v on a silent bus", got)
	}
}

func TestAssignAddresses_MalformedClaim(t *testing.T) {
	handler := func(m floorwire.Message) []floorwire.Message {
		if m.Type != floorwire.MsgAddress {
			return nil
		}
		// Claim body disagrees with the source address.
		return []floorwire.Message{
			floorwire.NewMessage(floorwire.ToMaster(), 5, floorwire.MsgAddress, []byte{7}),
		}
	}
	m, _, _ := newTestMaster(t, handler)
	if _, err := m.AssignAddresses(context.Background()); err == nil {
		t.Fatal("malformed claim not rejected")
	}
}

func TestAssignAddresses_RefusesStaleClaim(t *testing.T) {
	// First node re-announces a persisted address, then a second node
	// announces one from before it, duplicating nothing yet but breaking
	// the chain order. The controller must nack it; the node then claims
	// fresh.
	step := 0
	nacked := false
	handler := func(m floorwire.Message) []floorwire.Message {
		switch {
		case m.Type == floorwire.MsgNack:
			nacked = true
		case m.Type == floorwire.MsgAddress && step == 0:
			step++
			return []floorwire.Message{
				floorwire.NewMessage(floorwire.ToMaster(), 5, floorwire.MsgAddress, []byte{5}),
			}
		case m.Type == floorwire.MsgAddress && step == 1:
			step++
			return []floorwire.Message{
				floorwire.NewMessage(floorwire.ToMaster(), 2, floorwire.MsgAddress, []byte{2}),
			}
		case m.Type == floorwire.MsgAddress && step == 2 && nacked:
			step++
			fresh := m.Body[0] + 1
			return []floorwire.Message{
				floorwire.NewMessage(floorwire.ToMaster(), fresh, floorwire.MsgAddress, []byte{fresh}),
			}
		}
		return nil
	}
	m, bus, _ := newTestMaster(t, handler)

	got, err := m.AssignAddresses(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{5, 6}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("assigned %v, want %v", got, want)
	}
	found := false
	for _, sent := range bus.sent {
		if sent.Type == floorwire.MsgNack && sent.Dest == floorwire.Single(2) {
			found = true
		}
	}
	if !found {
		t.Error("stale claim was not refused")
	}
}

func TestAssignAddresses_RefusesWildcardClaim(t *testing.T) {
	step := 0
	handler := func(m floorwire.Message) []floorwire.Message {
		if m.Type == floorwire.MsgAddress && step == 0 {
			step++
			return []floorwire.Message{
				floorwire.NewMessage(floorwire.ToMaster(), floorwire.AddressWildcard,
					floorwire.MsgAddress, []byte{floorwire.AddressWildcard}),
			}
		}
		if m.Type == floorwire.MsgAddress && step == 1 {
			step++
			return []floorwire.Message{
				floorwire.NewMessage(floorwire.ToMaster(), 1, floorwire.MsgAddress, []byte{1}),
			}
		}
		return nil
	}
	m, _, _ := newTestMaster(t, handler)

	got, err := m.AssignAddresses(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0] != 1 {
		t.Fatalf("assigned %v, want [1]", got)
	}
}

func TestNodes_ReturnsCopy(t *testing.T) {
	next := byte(0)
	handler := func(m floorwire.Message) []floorwire.Message {
		if m.Type != floorwire.MsgAddress || next >= 2 {
			return nil
		}
		claim := m.Body[0] + 1
		next++
		return []floorwire.Message{
			floorwire.NewMessage(floorwire.ToMaster(), claim, floorwire.MsgAddress, []byte{claim}),
		}
	}
	m, _, _ := newTestMaster(t, handler)
	if _, err := m.AssignAddresses(context.Background()); err != nil {
		t.Fatal(err)
	}

	got := m.Nodes()
	got[0] = 99
	if again := m.Nodes(); again[0] != 1 {
		t.Errorf("mutating the returned slice changed the controller's record: %v", again)
	}
}

func TestCommand_SingleAcked(t *testing.T) {
	var got *floorwire.Message
	handler := func(m floorwire.Message) []floorwire.Message {
		got = &m
		return []floorwire.Message{ack(m.Dest.Lo)}
	}
	m, _, _ := newTestMaster(t, handler)

	err := m.SetColor(context.Background(), floorwire.Single(4), floornode.Color{R: 10, G: 20, B: 30})
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.Type != floorwire.MsgColor {
		t.Fatalf("node saw %+v", got)
	}
	if len(got.Body) != 3 || got.Body[0] != 10 || got.Body[1] != 20 || got.Body[2] != 30 {
		t.Errorf("color body = %v", got.Body)
	}
}

func TestCommand_RangeDoesNotWait(t *testing.T) {
	m, bus, _ := newTestMaster(t, nil)
	err := m.SetColor(context.Background(), floorwire.Span(1, 8), floornode.Color{R: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(bus.sent) != 1 {
		t.Fatalf("sent %d frames, want 1", len(bus.sent))
	}
}

func TestCommand_NoReply(t *testing.T) {
	m, _, _ := newTestMaster(t, nil)
	err := m.Ping(context.Background(), 3)
	if !errors.Is(err, ErrNoReply) {
		t.Fatalf("err = %v, want ErrNoReply", err)
	}
}

func TestCommand_Nacked(t *testing.T) {
	handler := func(m floorwire.Message) []floorwire.Message {
		return []floorwire.Message{
			floorwire.NewMessage(floorwire.ToMaster(), m.Dest.Lo, floorwire.MsgNack, nil),
		}
	}
	m, _, _ := newTestMaster(t, handler)
	err := m.Reset(context.Background(), floorwire.Single(2))
	if !errors.Is(err, ErrNacked) {
		t.Fatalf("err = %v, want ErrNacked", err)
	}
}

func TestCommand_ContextCanceled(t *testing.T) {
	m, _, _ := newTestMaster(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := m.Ping(ctx, 3)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestStatus_ParsesReply(t *testing.T) {
	handler := func(m floorwire.Message) []floorwire.Message {
		if m.Type != floorwire.MsgStatus {
			return nil
		}
		body := []byte{floorwire.FlagFading | floorwire.FlagSensorDetect, 9, 8, 7}
		return []floorwire.Message{
			floorwire.NewMessage(floorwire.ToMaster(), m.Dest.Lo, floorwire.MsgStatus, body),
		}
	}
	m, _, _ := newTestMaster(t, handler)

	st, err := m.Status(context.Background(), 6)
	if err != nil {
		t.Fatal(err)
	}
	want := NodeStatus{Addr: 6, Fading: true, Touched: true, Color: floornode.Color{R: 9, G: 8, B: 7}}
	if st != want {
		t.Errorf("status = %+v, want %+v", st, want)
	}
}

func TestSetBatch(t *testing.T) {
	var got *floorwire.Message
	handler := func(m floorwire.Message) []floorwire.Message {
		got = &m
		return nil
	}
	m, _, _ := newTestMaster(t, handler)

	colors := []floornode.Color{{R: 1}, {G: 2}, {B: 3}}
	if err := m.SetBatch(context.Background(), 4, colors); err != nil {
		t.Fatal(err)
	}
	if got == nil || got.Type != floorwire.MsgBatch {
		t.Fatalf("node saw %+v", got)
	}
	if got.Dest.Lo != 4 || got.Dest.Hi != 6 {
		t.Errorf("batch dest = %s, want 4-6", got.Dest)
	}
	wantBody := []byte{1, 0, 0, 0, 2, 0, 0, 0, 3}
	if len(got.Body) != len(wantBody) {
		t.Fatalf("batch body = %v", got.Body)
	}
	for i := range wantBody {
		if got.Body[i] != wantBody[i] {
			t.Fatalf("batch body = %v, want %v", got.Body, wantBody)
		}
	}
}

func TestSetBatch_TooManyColors(t *testing.T) {
	m, _, _ := newTestMaster(t, nil)
	colors := make([]floornode.Color, floorwire.MaxBodyLen/3+1)
	err := m.SetBatch(context.Background(), 1, colors)
	if !errors.Is(err, floorwire.ErrBodyTooLarge) {
		t.Fatalf("err = %v, want ErrBodyTooLarge", err)
	}
}

func TestSetBatch_RejectsWildcardSpan(t *testing.T) {
	// A span ending on the wildcard byte would encode as an open-ended
	// range and hit every node to the end of the chain.
	m, bus, _ := newTestMaster(t, nil)
	colors := make([]floornode.Color, 3)
	if err := m.SetBatch(context.Background(), floorwire.AddressWildcard-2, colors); err == nil {
		t.Fatal("batch span ending on the wildcard byte accepted")
	}
	if len(bus.sent) != 0 {
		t.Errorf("frame sent for a rejected span: %v", bus.sent)
	}
}

func TestPoll_CollectsTouchEvents(t *testing.T) {
	m, bus, _ := newTestMaster(t, nil)

	report := floorwire.NewMessage(floorwire.ToMaster(), 3, floorwire.MsgStatus,
		[]byte{floorwire.FlagSensorDetect, 0, 0, 0})
	frame, err := floorwire.EncodeMessage(report)
	if err != nil {
		t.Fatal(err)
	}
	bus.rx = append(bus.rx, frame...)

	m.Poll()
	ev := m.Events()
	if len(ev) != 1 {
		t.Fatalf("collected %d events, want 1", len(ev))
	}
	if ev[0].Status.Addr != 3 || !ev[0].Status.Touched {
		t.Errorf("event = %+v", ev[0])
	}
	if got := m.Events(); len(got) != 0 {
		t.Errorf("Events did not clear: %v", got)
	}
}

func TestAwaitReply_RoutesUnsolicitedTraffic(t *testing.T) {
	// The node streams a touch report before replying to the command.
	handler := func(m floorwire.Message) []floorwire.Message {
		return []floorwire.Message{
			floorwire.NewMessage(floorwire.ToMaster(), 9, floorwire.MsgStatus,
				[]byte{floorwire.FlagSensorDetect, 0, 0, 0}),
			ack(m.Dest.Lo),
		}
	}
	m, _, _ := newTestMaster(t, handler)

	if err := m.Ping(context.Background(), 2); err != nil {
		t.Fatal(err)
	}
	ev := m.Events()
	if len(ev) != 1 || ev[0].Status.Addr != 9 {
		t.Fatalf("interleaved report lost: %v", ev)
	}
}

func TestStatistics_Counters(t *testing.T) {
	s := NewStatistics()
	s.RecordFrame(floorwire.Message{Type: floorwire.MsgAck}, nil)
	s.RecordFrame(floorwire.Message{}, floorwire.ErrChecksumMismatch)
	s.RecordFrame(floorwire.Message{}, floorwire.ErrOverflow)
	s.RecordFrame(floorwire.Message{}, floorwire.ErrTimeout)
	s.RecordFrame(floorwire.Message{}, floorwire.ErrTruncated)
	s.RecordFrame(floorwire.Message{Type: floorwire.MsgNack}, nil)
	s.RecordFrame(floorwire.NewMessage(floorwire.ToMaster(), 1, floorwire.MsgStatus,
		[]byte{floorwire.FlagSensorDetect, 0, 0, 0}), nil)

	if s.TotalFrames != 7 || s.ValidFrames != 3 {
		t.Errorf("totals: %+v", s)
	}
	if s.ChecksumErrors != 1 || s.Overflows != 1 || s.Timeouts != 1 || s.FramingErrors != 1 {
		t.Errorf("error counters: %+v", s)
	}
	if s.Nacks != 1 || s.TouchEvents != 1 {
		t.Errorf("traffic counters: %+v", s)
	}

	s.Reset()
	if s.TotalFrames != 0 || s.Nacks != 0 {
		t.Errorf("reset left counters: %+v", s)
	}
}
