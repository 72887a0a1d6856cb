package wifi

import (
	"testing"

	"meshnet/clock"
	"meshnet/link"
	"meshnet/membuf"
	"meshnet/serde"
)

func TestSendDataWritesCIPSENDWithDestination(t *testing.T) {
	port := serde.NewMemStream(256)
	pool := membuf.NewBufferPool(4, link.MTU)
	d := NewDriver(port, pool)
	fq := link.NewFrameQueue(4)
	now := clock.Instant(0)

	peer := link.IPv4(ipv4StringToUint32("192.168.0.1"), 1234)
	d.SendData(link.Rpc, []byte("abcde"), peer, now)
	d.Execute(now, fq)

	want := "AT+CIPSEND=6,\"192.168.0.1\",1234\r\n"
	if got := string(port.Written()); got != want {
		t.Fatalf("SendData command mismatch:\n got  %q\n want %q", got, want)
	}
}

func TestJoinAPWritesCWJAP(t *testing.T) {
	port := serde.NewMemStream(256)
	pool := membuf.NewBufferPool(4, link.MTU)
	d := NewDriver(port, pool)
	now := clock.Instant(0)

	d.JoinAP("myssid", "mypass", now)
	d.Execute(now, link.NewFrameQueue(1))

	want := "AT+CWJAP=\"myssid\",\"mypass\"\r\n"
	if got := string(port.Written()); got != want {
		t.Fatalf("JoinAP command mismatch:\n got  %q\n want %q", got, want)
	}
}

func TestIPDDemuxPushesInboundFrame(t *testing.T) {
	port := serde.NewMemStream(256)
	pool := membuf.NewBufferPool(4, link.MTU)
	d := NewDriver(port, pool)
	fq := link.NewFrameQueue(4)
	now := clock.Instant(0)

	body := append([]byte{byte(link.Rpc)}, []byte("abcde")...)
	port.Feed([]byte("+IPD,6,192.168.0.1,1234:"))
	port.Feed(body)

	// Header recognition, header-field parse, then body read each land on
	// their own Execute call, mirroring continueIPDHeader/continueIPDBody's
	// one-state-transition-per-tick shape.
	d.Execute(now, fq)
	d.Execute(now, fq)
	d.Execute(now, fq)

	f, ok := fq.Pop(link.Inbound, now, nil)
	if !ok {
		t.Fatal("expected an inbound frame to have been pushed")
	}
	if f.Protocol != link.Rpc {
		t.Fatalf("expected protocol %v, got %v", link.Rpc, f.Protocol)
	}
	wantPeer := link.IPv4(ipv4StringToUint32("192.168.0.1"), 1234)
	if !f.Peer.Equal(wantPeer) {
		t.Fatalf("expected peer %v, got %v", wantPeer, f.Peer)
	}
	payload := f.Reader.ReadUnchecked(f.Reader.ReadableCount())
	if string(payload) != "abcde" {
		t.Fatalf("expected payload %q, got %q", "abcde", payload)
	}
}

func TestReceiverClassifiesTerminals(t *testing.T) {
	cases := []struct {
		in   string
		want MsgKind
	}{
		{"OK\r\n", MsgOk},
		{"ERROR\r\n", MsgError},
		{"SEND OK\r\n", MsgSendOk},
		{"SEND FAIL\r\n", MsgSendFail},
		{"> ", MsgSendPrompt},
	}
	for _, c := range cases {
		port := serde.NewMemStream(0)
		port.Feed([]byte(c.in))
		r := NewReceiver()

		ready := false
		var kind MsgKind
		for i := 0; i < len(c.in) && !ready; i++ {
			if p := r.Poll(port); p.IsReady() {
				ready, kind = true, p.Value()
			}
		}
		if !ready || kind != c.want {
			t.Fatalf("classifying %q: got kind=%v ready=%v, want %v", c.in, kind, ready, c.want)
		}
	}
}
