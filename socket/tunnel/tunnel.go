// Package tunnel implements the Tunnel protocol's transport: a QUIC stream
// bridging a remote debug client (cmd/meshctl) to a node's mesh-side byte
// stream over the Tunnel protocol number. The QUIC side runs on the host's
// own UDP socket (quic.ListenAddr / quic.DialAddr), not through the Wi-Fi
// module; the mesh side is a one-hop Tunnel frame exchange with a single
// configured peer. The teacher's go.mod carries quic-go unused; this gives
// it a concrete home.
//
// Grounded on the teacher's controller/normal.go bidirectional-copy idiom
// (`go io.Copy(a, b); io.Copy(b, a)`), adapted from TCP proxying to a QUIC
// stream on one side and the mesh frame queue on the other.
package tunnel

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"io"
	"math/big"
	"time"

	"github.com/quic-go/quic-go"
	"go.uber.org/zap"

	"meshnet/clock"
	"meshnet/link"
	"meshnet/socket"
)

// pollBackoff is how long meshReader idles between empty polls of the link
// layer — this runs on a hosted goroutine, not the embedded cooperative
// loop, so a short blocking sleep is acceptable here and nowhere else in
// this module.
const pollBackoff = 5 * time.Millisecond

// NextProto is the ALPN token this tunnel negotiates.
const NextProto = "meshnet-tunnel"

// InsecureTLSConfig builds a self-signed TLS config for quic-go, which
// requires one to construct a session. Per SPEC_FULL.md's restated
// non-goals, this is not a security property of the system — any peer can
// generate an identical config and connect; the tunnel carries no secrets
// of its own.
func InsecureTLSConfig() (*tls.Config, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	template := x509.Certificate{SerialNumber: big.NewInt(1)}
	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		return nil, err
	}
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyBytes, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return nil, err
	}
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyBytes})
	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, err
	}
	return &tls.Config{
		Certificates:       []tls.Certificate{cert},
		NextProtos:         []string{NextProto},
		InsecureSkipVerify: true, //nolint:gosec — self-signed, TLS here is a quic-go construction requirement only
	}, nil
}

// Server listens for a single debug client connection and bridges its
// stream to the mesh's Tunnel socket.
type Server struct {
	ln     *quic.Listener
	core   *socket.CoreSocket
	peer   link.Address
	clock  clock.Clock
	logger *zap.Logger
}

// Listen opens a QUIC listener on addr. core must already be bound to
// link.Tunnel; peer is the mesh-side address frames are addressed to/from.
func Listen(addr string, core *socket.CoreSocket, peer link.Address, clk clock.Clock, logger *zap.Logger) (*Server, error) {
	tlsConf, err := InsecureTLSConfig()
	if err != nil {
		return nil, err
	}
	ln, err := quic.ListenAddr(addr, tlsConf, nil)
	if err != nil {
		return nil, err
	}
	return &Server{ln: ln, core: core, peer: peer, clock: clk, logger: logger}, nil
}

// Addr returns the listener's bound address.
func (s *Server) Addr() string { return s.ln.Addr().String() }

// Close shuts the listener down.
func (s *Server) Close() error { return s.ln.Close() }

// Accept blocks for one incoming debug-client connection, opens its first
// stream, and pumps bytes bidirectionally between that stream and the mesh
// Tunnel socket until either side closes. It returns once the bridge ends.
func (s *Server) Accept(ctx context.Context) error {
	conn, err := s.ln.Accept(ctx)
	if err != nil {
		return err
	}
	stream, err := conn.AcceptStream(ctx)
	if err != nil {
		return err
	}
	s.logger.Info("tunnel client connected", zap.String("remote", conn.RemoteAddr().String()))
	return bridge(ctx, stream, s.core, s.peer, s.clock, s.logger)
}

// DialClient opens a QUIC connection and stream to a node's tunnel Server,
// for use by cmd/meshctl.
func DialClient(ctx context.Context, addr string) (quic.Connection, quic.Stream, error) {
	tlsConf, err := InsecureTLSConfig()
	if err != nil {
		return nil, nil, err
	}
	conn, err := quic.DialAddr(ctx, addr, tlsConf, nil)
	if err != nil {
		return nil, nil, err
	}
	stream, err := conn.OpenStreamSync(ctx)
	if err != nil {
		return nil, nil, err
	}
	return conn, stream, nil
}

// bridge pumps stream<->mesh bytes until one side errs out, mirroring the
// teacher's `go io.Copy(conn, target); io.Copy(target, conn)` idiom with the
// mesh side wrapped as an io.Reader/io.Writer.
func bridge(ctx context.Context, stream quic.Stream, core *socket.CoreSocket, peer link.Address, clk clock.Clock, logger *zap.Logger) error {
	mesh := &meshStream{ctx: ctx, core: core, peer: peer, clk: clk}

	errCh := make(chan error, 2)
	go func() { _, err := io.Copy(mesh, stream); errCh <- err }()
	go func() { _, err := io.Copy(stream, mesh); errCh <- err }()

	err := <-errCh
	if err != nil && !errors.Is(err, io.EOF) {
		logger.Warn("tunnel bridge ended", zap.Error(err))
	}
	return err
}

// meshStream adapts the Tunnel CoreSocket to io.Reader/io.Writer so the
// bridge can use the familiar io.Copy idiom on the mesh side too. Both
// methods busy-poll the link queue with a short sleep; this is a
// hosted-goroutine concern, never used on the embedded cooperative loop.
type meshStream struct {
	ctx  context.Context
	core *socket.CoreSocket
	peer link.Address
	clk  clock.Clock
}

func (m *meshStream) Read(p []byte) (int, error) {
	for {
		if err := m.ctx.Err(); err != nil {
			return 0, err
		}
		f, ready := m.core.PollReceiveLinkFrame(m.clk.Now()).Get()
		if !ready {
			time.Sleep(pollBackoff)
			continue
		}
		n := f.Reader.ReadableCount()
		if n > len(p) {
			n = len(p)
		}
		copy(p, f.Reader.ReadUnchecked(n))
		return n, nil
	}
}

func (m *meshStream) Write(p []byte) (int, error) {
	for {
		if err := m.ctx.Err(); err != nil {
			return 0, err
		}
		w, ready := m.core.PollFrameWriter(len(p)).Get()
		if !ready {
			time.Sleep(pollBackoff)
			continue
		}
		n := w.Write(p)
		if err, _ := m.core.PollSendFrame(m.peer, w.InitialReader(), m.clk.Now()).Get(); err != nil {
			return n, err
		}
		return n, nil
	}
}
