package socket

import (
	"meshnet/clock"
	"meshnet/link"
	"meshnet/nb"
	"meshnet/serde"
)

// RequestId correlates an RPC call with its eventual response, grounded on
// original_source's net::rpc::RequestId — a plain serialized u16, nothing
// more.
type RequestId uint16

// maxPendingRequests bounds how many outstanding calls one RpcSocket tracks
// at once; a call made while the table is full is rejected rather than
// leaking an unanswered promise forever.
const maxPendingRequests = 16

// RpcRequest is an inbound call this node must answer: From identifies the
// caller, ID must be echoed back in the response frame, Payload is the
// request body.
type RpcRequest struct {
	From    link.Address
	ID      RequestId
	Payload []byte
}

type pendingCall struct {
	id      RequestId
	promise nb.Promise[[]byte]
}

// RpcSocket implements the request/response protocol over protocol number
// Rpc: outbound calls are u16-request-id-prefixed frames correlated against
// inbound responses carrying the same id.
type RpcSocket struct {
	core    *CoreSocket
	nextID  RequestId
	pending []pendingCall
}

// NewRpcSocket builds an RpcSocket over an already-constructed CoreSocket
// bound to the Rpc protocol number.
func NewRpcSocket(core *CoreSocket) *RpcSocket {
	return &RpcSocket{core: core}
}

// Call writes id|payload into a frame bound for remote, registers a pending
// promise, and returns a Future that resolves once a response with the same
// id is received. ok is false if the frame pool is exhausted, the pending
// table is full, or the link queue rejects the send.
func (s *RpcSocket) Call(remote link.Address, payload []byte, now clock.Instant) (nb.Future[[]byte], bool) {
	if len(s.pending) >= maxPendingRequests {
		return nb.Future[[]byte]{}, false
	}
	w, ready := s.core.PollFrameWriter(2 + len(payload)).Get()
	if !ready {
		return nb.Future[[]byte]{}, false
	}
	id := s.nextID
	s.nextID++
	serde.WriteUint16LE(w, uint16(id))
	w.Write(payload)

	promise, future := nb.NewOneShot[[]byte]()
	if p, ok := s.core.PollSendFrame(remote, w.InitialReader(), now).Get(); !ok || p != nil {
		return nb.Future[[]byte]{}, false
	}
	s.pending = append(s.pending, pendingCall{id: id, promise: promise})
	return future, true
}

// PollIncoming drains one link frame for the Rpc protocol. If it correlates
// with a pending Call, the matching future is resolved and Pending is
// returned (nothing new for the caller to handle); otherwise it is surfaced
// as a fresh RpcRequest the caller must answer.
func (s *RpcSocket) PollIncoming(now clock.Instant) nb.Poll[RpcRequest] {
	f, ok := s.core.PollReceiveLinkFrame(now).Get()
	if !ok {
		return nb.Pending[RpcRequest]()
	}
	reader := f.Reader
	idResult, ready := serde.PollUint16LE(&reader).Get()
	if !ready || idResult.Err != nil {
		return nb.Pending[RpcRequest]()
	}
	id := RequestId(idResult.Value)
	payload := reader.ReadUnchecked(reader.ReadableCount())

	for i, p := range s.pending {
		if p.id == id {
			p.promise.SetValue(payload)
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			return nb.Pending[RpcRequest]()
		}
	}
	return nb.Ready(RpcRequest{From: f.Peer, ID: id, Payload: payload})
}

// Respond answers an inbound RpcRequest with payload, echoing its id.
func (s *RpcSocket) Respond(req RpcRequest, payload []byte, now clock.Instant) bool {
	w, ready := s.core.PollFrameWriter(2 + len(payload)).Get()
	if !ready {
		return false
	}
	serde.WriteUint16LE(w, uint16(req.ID))
	w.Write(payload)
	p, ok := s.core.PollSendFrame(req.From, w.InitialReader(), now).Get()
	return ok && p == nil
}
