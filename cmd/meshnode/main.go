// Command meshnode runs one mesh node's cooperative core against real
// hosted byte-stream ports, grounded on the teacher's run.go entrypoint:
// flag-parsed config path, a zap logger built once and deferred-synced, and
// (here, in place of the teacher's per-rule goroutine fan-out) a single
// tight loop driving App.Tick.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/quic-go/quic-go"
	"go.uber.org/zap"

	"meshnet/app"
	"meshnet/clock"
	"meshnet/config"
	"meshnet/hostport"
	"meshnet/link"
	"meshnet/netlog"
	"meshnet/rng"
	"meshnet/socket/tunnel"
)

// tickInterval paces the hosted loop; the embedded target this core is
// written for instead calls Tick from its own scheduler at whatever rate
// its timer ISR fires.
const tickInterval = 5 * time.Millisecond

func main() {
	configPath := flag.String("config", "", "path to the node's JSON config file")
	flag.Parse()

	path := *configPath
	if path == "" {
		path = config.ResolvePath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "meshnode: %v\n", err)
		os.Exit(1)
	}

	logger, err := netlog.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "meshnode: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ports, err := openPorts(cfg)
	if err != nil {
		logger.Fatal("opening ports", zap.Error(err))
	}

	clk := clock.NewReal()
	rnd := rng.NewReal(time.Now().UnixNano())
	a := app.New(cfg, ports, clk, rnd, logger)

	if cfg.Tunnel.ListenAddr != "" {
		peer := tunnelPeerAddress(cfg.Tunnel)
		srv, err := tunnel.Listen(cfg.Tunnel.ListenAddr, a.TunnelSocket(), peer, clk, logger)
		if err != nil {
			logger.Fatal("starting tunnel listener", zap.Error(err))
		}
		go acceptTunnelClients(srv, logger)
		logger.Info("tunnel listening", zap.String("addr", srv.Addr()), zap.String("peer", peer.String()))
	}

	if cfg.Tunnel.DebugAddr != "" {
		go runDebugServer(cfg.Tunnel.DebugAddr, a, logger)
		logger.Info("debug listener starting", zap.String("addr", cfg.Tunnel.DebugAddr))
	}

	logger.Info("meshnode starting", zap.String("config", path))
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	for range ticker.C {
		a.Tick(clk.Now(), rnd)
	}
}

// tunnelPeerAddress resolves which one-hop neighbor the debug bridge
// forwards the client's bytes to. An unconfigured peer resolves to the zero
// Address, which is Serial(0): the serial driver's outbound filter matches
// it, so with a serial port configured the bridge forwards to serial
// address 0.
func tunnelPeerAddress(cfg config.Tunnel) link.Address {
	switch cfg.PeerKind {
	case "serial":
		return link.Serial(uint8(cfg.PeerID))
	case "uhf":
		return link.UHF(cfg.PeerID)
	default:
		return link.Address{}
	}
}

// acceptTunnelClients serially serves one debug-client connection at a time
// on its own goroutine, the hosted exception socket/tunnel already
// documents — this never touches the cooperative Tick loop.
func acceptTunnelClients(srv *tunnel.Server, logger *zap.Logger) {
	ctx := context.Background()
	for {
		if err := srv.Accept(ctx); err != nil {
			logger.Warn("tunnel session ended", zap.Error(err))
		}
	}
}

// runDebugServer answers cmd/meshctl's one-shot introspection queries over
// its own QUIC listener, separate from the mesh-side Tunnel protocol
// bridge: each connection sends one query line and gets back one line per
// neighbor for NEIGHBORS, or one error line for anything else. It never
// touches a.TunnelSocket(), so it can run alongside that bridge without
// racing it for the same frame queue.
func runDebugServer(addr string, a *app.App, logger *zap.Logger) {
	tlsConf, err := tunnel.InsecureTLSConfig()
	if err != nil {
		logger.Error("debug listener: building tls config", zap.Error(err))
		return
	}
	ln, err := quic.ListenAddr(addr, tlsConf, nil)
	if err != nil {
		logger.Error("debug listener: listen", zap.Error(err))
		return
	}
	defer ln.Close()
	ctx := context.Background()
	for {
		conn, err := ln.Accept(ctx)
		if err != nil {
			logger.Warn("debug listener: accept", zap.Error(err))
			continue
		}
		go handleDebugConn(ctx, conn, a, logger)
	}
}

func handleDebugConn(ctx context.Context, conn quic.Connection, a *app.App, logger *zap.Logger) {
	stream, err := conn.AcceptStream(ctx)
	if err != nil {
		logger.Warn("debug listener: accept stream", zap.Error(err))
		return
	}
	defer stream.Close()

	line, err := bufio.NewReader(stream).ReadString('\n')
	if err != nil {
		return
	}
	switch strings.TrimSpace(line) {
	case "NEIGHBORS":
		for _, id := range a.RoutingSocket().Neighbors() {
			fmt.Fprintf(stream, "%s\n", id.Addr)
		}
	default:
		fmt.Fprintf(stream, "unknown command %q\n", strings.TrimSpace(line))
	}
}

// openPorts opens the configured device files and wraps each in a
// hostport.Port, leaving a medium's Ports field nil when its config section
// has no port path (mirrors app.Ports' per-medium-omission contract).
func openPorts(cfg *config.Config) (app.Ports, error) {
	var ports app.Ports
	if cfg.UHF.Port != "" {
		f, err := openDevice(cfg.UHF.Port)
		if err != nil {
			return ports, fmt.Errorf("uhf port: %w", err)
		}
		ports.UHF = hostport.Open(f)
	}
	if cfg.WiFi.Port != "" {
		f, err := openDevice(cfg.WiFi.Port)
		if err != nil {
			return ports, fmt.Errorf("wifi port: %w", err)
		}
		ports.WiFi = hostport.Open(f)
	}
	if cfg.Serial.Port != "" {
		f, err := openDevice(cfg.Serial.Port)
		if err != nil {
			return ports, fmt.Errorf("serial port: %w", err)
		}
		ports.Serial = hostport.Open(f)
	}
	return ports, nil
}

// openDevice opens path as a raw byte device (a tty for every medium in
// this system — UHF, Wi-Fi, and point-to-point serial are all UART-attached
// modems on the reference hardware).
func openDevice(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_RDWR, 0)
}
