// Package app wires every service in the mesh-node core into one
// cooperative unit, grounded on the teacher's run.go composition root (there
// a sync.WaitGroup fans out controller.Listen per rule; here there is only
// one cooperative loop, so App plays the same "wire everything main built"
// role without the goroutine fan-out — nothing below the tunnel bridge ever
// spawns a goroutine).
package app

import (
	"meshnet/clock"
	"meshnet/config"
	"meshnet/frameservice"
	"meshnet/link"
	"meshnet/link/serial"
	"meshnet/link/uhf"
	"meshnet/link/wifi"
	"meshnet/membuf"
	"meshnet/nb"
	"meshnet/netcore"
	"meshnet/rng"
	"meshnet/routing"
	"meshnet/serde"
	"meshnet/socket"

	"go.uber.org/zap"
)

const (
	bufferPoolSlots    = 16
	bufferPoolCapacity = link.MTU
	frameQueueCapacity = 32

	linkStateInterval clock.Duration = 15000
)

// Port is the byte-stream contract every media driver's Port interface
// reduces to; satisfied structurally by serde.MemStream (tests) or any
// hosted byte-stream adapter (cmd/meshnode).
type Port interface {
	serde.Stream
	serde.Writable
}

// Ports supplies the already-opened byte streams for whichever media this
// build has wired up. A nil field means that medium is absent, mirroring
// SPEC_FULL.md's per_medium-omission note (§3 supplement): a serial-only
// node leaves UHF and WiFi nil.
type Ports struct {
	UHF    Port
	WiFi   Port
	Serial Port
}

// App owns every long-lived service named in spec.md §4 and drives them
// forward one cooperative tick at a time via Tick, implementing the
// top-level execute(now, rand) composition of §4.12.
type App struct {
	cfg    *config.Config
	clk    clock.Clock
	rnd    rng.Source
	logger *zap.Logger

	pool    *membuf.BufferPool
	queue   *link.FrameQueue
	frames  *frameservice.Service
	limiter *link.PeerLimiter

	uhfDriver    *uhf.Driver
	wifiDriver   *wifi.Driver
	serialDriver *serial.Driver

	notifier  *netcore.NotificationService
	localNode *netcore.LocalNode
	neighbors *netcore.NeighborTable
	costUpdater *netcore.DynamicCostUpdater

	graph *routing.Graph
	cache *routing.FrameIDCache
	nodes []netcore.NodeId // vertex index -> NodeId; index 0 is local once bound

	linkStateCore *socket.CoreSocket
	linkStateDue  *nb.Debounce

	discoveryCore   *socket.CoreSocket
	discoverySocket *socket.DiscoverySocket

	routingCore   *socket.CoreSocket
	routingSocket *socket.RoutingSocket

	rpcCore   *socket.CoreSocket
	rpcSocket *socket.RpcSocket

	observerCore   *socket.CoreSocket
	observerSocket *socket.ObserverSocket

	tunnelCore *socket.CoreSocket

	inbox [][]byte // routed payloads addressed to this node, awaiting PollInbound
}

// New builds an App from cfg, wiring every driver Ports supplies and every
// service spec.md §4 names. now seeds every debounce/cost timer.
func New(cfg *config.Config, ports Ports, clk clock.Clock, rnd rng.Source, logger *zap.Logger) *App {
	pool := membuf.NewBufferPool(bufferPoolSlots, bufferPoolCapacity)
	queue := link.NewFrameQueue(frameQueueCapacity)
	limiter := link.NewPeerLimiter()
	queue.SetLimiter(limiter)
	frames := frameservice.NewService(pool, queue)

	a := &App{
		cfg: cfg, clk: clk, rnd: rnd, logger: logger,
		pool: pool, queue: queue, frames: frames, limiter: limiter,
	}

	now := clk.Now()
	a.notifier = netcore.NewNotificationService()
	a.localNode = netcore.NewLocalNode(netcore.Config{
		EnableAutoNeighborDiscovery: cfg.LocalNode.EnableAutoNeighborDiscovery,
		EnableDynamicCostUpdate:     cfg.LocalNode.EnableDynamicCostUpdate,
	}, a.notifier)
	a.neighbors = netcore.NewNeighborTable(a.notifier)
	a.costUpdater = netcore.NewDynamicCostUpdater(now)

	a.graph = routing.NewGraph()
	a.cache = &routing.FrameIDCache{}

	if ports.UHF != nil && cfg.UHF.Port != "" {
		a.uhfDriver = uhf.NewDriver(ports.UHF, pool)
	}
	if ports.WiFi != nil && cfg.WiFi.Port != "" {
		a.wifiDriver = wifi.NewDriver(ports.WiFi, pool)
		if cfg.WiFi.SSID != "" {
			a.wifiDriver.JoinAP(cfg.WiFi.SSID, cfg.WiFi.Password, now)
		}
		if cfg.WiFi.UDPPort != 0 {
			a.wifiDriver.StartUDPServer(cfg.WiFi.UDPPort, now)
		}
	}
	if ports.Serial != nil && cfg.Serial.Port != "" {
		preamble := cfg.Serial.Preamble
		a.serialDriver = serial.NewDriver(ports.Serial, pool, preamble, cfg.Serial.Self)
		a.bindLocalAddress(link.Serial(cfg.Serial.Self))
	} else if a.uhfDriver == nil && a.wifiDriver != nil {
		// A Wi-Fi-only node has no bring-up exchange that reports its own
		// address (unlike UHF's SN/EI bring-up or serial's configured self
		// id): its local UDP listen port stands in for an address, since
		// the AT surface never reports the module's own IP.
		a.bindLocalAddress(link.IPv4(0, cfg.WiFi.UDPPort))
	}

	a.linkStateCore = socket.NewCoreSocket(link.LinkState, frames)
	a.linkStateDue = nb.NewDebounce(now, linkStateInterval)

	a.discoveryCore = socket.NewCoreSocket(link.Discover, frames)
	a.discoverySocket = socket.NewDiscoverySocket(a.discoveryCore, now)

	a.routingCore = socket.NewCoreSocket(link.RoutingNeighbor, frames)
	cluster := netcore.ClusterId(cfg.LocalNode.Cluster)
	routingLocal := netcore.NodeId{}
	if len(a.nodes) > 0 {
		routingLocal = a.nodes[0] // already bound above by bindLocalAddress
	}
	a.routingSocket = socket.NewRoutingSocket(a.routingCore, routingLocal, cluster, &a.nodes, a.graph, a.neighbors, a.cache, rnd)

	a.rpcCore = socket.NewCoreSocket(link.Rpc, frames)
	a.rpcSocket = socket.NewRpcSocket(a.rpcCore)

	a.observerCore = socket.NewCoreSocket(link.Observer, frames)
	a.observerSocket = socket.NewObserverSocket(a.observerCore)

	a.tunnelCore = socket.NewCoreSocket(link.Tunnel, frames)

	return a
}

// TunnelSocket exposes the Tunnel protocol's CoreSocket so cmd/meshnode can
// optionally hand it to a socket/tunnel.Server run on a hosted goroutine,
// outside this cooperative loop.
func (a *App) TunnelSocket() *socket.CoreSocket { return a.tunnelCore }

// RoutingSocket exposes the routing socket for cmd/meshctl's debug
// introspection (RoutingSocket.Neighbors()) and for a hosted application
// layer to originate routed sends.
func (a *App) RoutingSocket() *socket.RoutingSocket { return a.routingSocket }

// PollInbound drains one routed payload addressed to this node, in the
// order Tick observed them. Every tick already drives routing forwarding
// internally (so a hosted caller's polling cadence never affects mesh
// relay behavior); this only hands over payloads this node was the
// destination for.
func (a *App) PollInbound() ([]byte, bool) {
	if len(a.inbox) == 0 {
		return nil, false
	}
	payload := a.inbox[0]
	a.inbox = a.inbox[1:]
	return payload, true
}

// bindLocalAddress assigns this node's identity once a medium has resolved
// it, matching spec.md §4.9: info transitions Pending->Ready and vertex 0
// of the routing graph is claimed for it.
func (a *App) bindLocalAddress(addr link.Address) {
	local := netcore.NodeId{Addr: addr}
	a.routingSocket = socket.NewRoutingSocket(a.routingCore, local, netcore.ClusterId(a.cfg.LocalNode.Cluster), &a.nodes, a.graph, a.neighbors, a.cache, a.rnd)
	hasCluster := a.cfg.LocalNode.Cluster != netcore.NoCluster
	a.localNode.SetAddress(local, netcore.ClusterId(a.cfg.LocalNode.Cluster), hasCluster)
	if len(a.nodes) == 0 {
		a.nodes = append(a.nodes, local)
	} else {
		a.nodes[0] = local
	}
	a.graph.SetValid(0, true)
}

// ensureVertex returns the graph vertex index for addr, assigning the next
// free index (and marking it valid) if this is the first time addr has been
// seen. It returns ok=false once routing.MaxVertices is exhausted.
func (a *App) ensureVertex(addr link.Address) (int, bool) {
	if v, ok := routing.VertexOf(a.nodes)(addr); ok {
		return v, true
	}
	if len(a.nodes) >= routing.MaxVertices {
		return 0, false
	}
	v := len(a.nodes)
	a.nodes = append(a.nodes, netcore.NodeId{Addr: addr})
	a.graph.SetValid(v, true)
	return v, true
}

// Tick runs one cooperative pass of execute(now, rand) (spec.md §4.12): the
// media service, then the net service, then the link queue's expiration
// sweep. now and rnd are supplied by the caller (cmd/meshnode's loop, or a
// test's clock.Fake/rng.Sequence).
func (a *App) Tick(now clock.Instant, rnd rng.Source) {
	a.executeMedia(now, rnd)
	a.executeNet(now, rnd)
	a.queue.Execute(now)
}

func (a *App) executeMedia(now clock.Instant, rnd rng.Source) {
	if a.uhfDriver != nil {
		if !a.bringUpUHF() {
			a.uhfDriver.Execute(now, rnd, a.queue)
		}
	}
	if a.wifiDriver != nil {
		a.wifiDriver.Execute(now, a.queue)
	}
	if a.serialDriver != nil {
		a.serialDriver.Execute(now, a.queue)
	}
	a.dispatchOutbound(now)
}

// bringUpUHF binds the local node's address from the UHF equipment id once
// the modem has reported it, returning true exactly on the tick that
// transition happens (§4.9's one-time Pending->Ready SelfUpdated).
func (a *App) bringUpUHF() bool {
	if _, ok := a.localNode.PollInfo().Get(); ok {
		return false
	}
	id, ok := a.uhfDriver.EquipmentID()
	if !ok {
		return false
	}
	a.bindLocalAddress(link.UHF(uint16(id)))
	return true
}

// dispatchOutbound drains the outbound link queue, routing each frame to
// the driver matching its peer's address kind — the "dispatches outbound to
// drivers" half of §4.12 item 1. This includes Tunnel-protocol frames: the
// hosted debug bridge (socket/tunnel) addresses them to one specific
// physical neighbor configured for that session, and they travel that one
// hop exactly like Discover/LinkState/RoutingNeighbor frames do.
func (a *App) dispatchOutbound(now clock.Instant) {
	if a.uhfDriver != nil {
		for {
			f, ok := a.frames.PollTransmissionRequest(now, func(fr link.Frame) bool {
				return fr.Peer.Kind() == link.KindUHF
			}).Get()
			if !ok {
				break
			}
			payload := f.Reader.ReadUnchecked(f.Reader.ReadableCount())
			f.Reader.Release()
			a.uhfDriver.RequestSend(f.Peer, f.Protocol, payload)
		}
	}
	if a.wifiDriver != nil {
		for {
			f, ok := a.frames.PollTransmissionRequest(now, func(fr link.Frame) bool {
				return fr.Peer.Kind() == link.KindIPv4
			}).Get()
			if !ok {
				break
			}
			payload := f.Reader.ReadUnchecked(f.Reader.ReadableCount())
			f.Reader.Release()
			a.wifiDriver.SendData(f.Protocol, payload, f.Peer, now)
		}
	}
	if a.serialDriver != nil {
		for {
			f, ok := a.frames.PollTransmissionRequest(now, func(fr link.Frame) bool {
				return fr.Peer.Kind() == link.KindSerial
			}).Get()
			if !ok {
				break
			}
			payload := f.Reader.ReadUnchecked(f.Reader.ReadableCount())
			f.Reader.Release()
			a.serialDriver.Send(f.Protocol, f.Peer.SerialID(), payload)
		}
	}
}

func (a *App) executeNet(now clock.Instant, rnd rng.Source) {
	a.neighbors.Execute(now)

	if m := a.primaryMeasurement(); m != nil {
		a.costUpdater.Execute(now, a.localNode, m)
	}

	info, ready := a.localNode.PollInfo().Get()
	if ready {
		if a.cfg.LocalNode.EnableAutoNeighborDiscovery {
			a.discoverySocket.Execute(now, info.Source().Node, info.Cost(), a.neighbors)
		}
		a.syncNeighborVertices()
		a.executeLinkState(now, info)
		if payload, ok := a.routingSocket.Receive(now).Get(); ok {
			a.inbox = append(a.inbox, payload)
		}
	}

	a.rpcSocket.PollIncoming(now)
	a.observerSocket.PollIncoming(now)
	a.observerSocket.Execute(now)

	for {
		note, ok := a.notifier.PollNotification()
		if !ok {
			break
		}
		a.observerSocket.Publish(note, now)
	}
}

// primaryMeasurement returns the active medium's measurement block for the
// dynamic cost updater, preferring UHF (the medium the source design
// centers the carrier-sense cost estimate on), then serial, then Wi-Fi.
func (a *App) primaryMeasurement() *link.Measurement {
	switch {
	case a.uhfDriver != nil:
		return a.uhfDriver.Measurement()
	case a.serialDriver != nil:
		return a.serialDriver.Measurement()
	case a.wifiDriver != nil:
		return a.wifiDriver.Measurement()
	default:
		return nil
	}
}

// syncNeighborVertices assigns every currently-known neighbor a graph
// vertex (if it doesn't have one yet) and refreshes that vertex's own
// advertised cost, the "vertex cost on entry" ResolveGatewayVertex weights
// paths with (§4.10).
func (a *App) syncNeighborVertices() {
	for _, id := range a.neighbors.Neighbors() {
		addr, ok := a.neighbors.Lookup(id)
		if !ok {
			continue
		}
		v, ok := a.ensureVertex(addr)
		if !ok {
			continue
		}
		if destCost, ok := a.neighbors.DestCost(id); ok {
			a.graph.SetVertexCost(v, uint8(destCost))
		}
	}
}

// executeLinkState floods a LinkStateFrame advertising the local node's
// current neighbor costs every linkStateInterval, and applies any inbound
// LinkStateFrame to the routing graph before re-flooding it (spec.md §4.10).
func (a *App) executeLinkState(now clock.Instant, info netcore.Info) {
	if a.linkStateDue.Poll(now).IsReady() {
		a.floodOwnLinkState(now, info.Source().Node)
	}

	f, ok := a.linkStateCore.PollReceiveLinkFrame(now).Get()
	if !ok {
		return
	}
	raw := f.Reader.ReadUnchecked(f.Reader.ReadableCount())
	lsf, ok := routing.UnmarshalLinkStateFrame(raw)
	if !ok {
		return
	}
	if !routing.AcceptFloodFrame(a.cache, lsf.FrameID) {
		return
	}
	for _, pair := range lsf.Neighbors {
		a.ensureVertex(pair.Neighbor)
	}
	routing.ApplyLinkStateFrame(a.graph, lsf, routing.VertexOf(a.nodes))
	a.rebroadcastLinkState(now, lsf, f.Peer)
}

func (a *App) floodOwnLinkState(now clock.Instant, local netcore.NodeId) {
	pairs := make([]routing.NeighborCostPair, 0, len(a.neighbors.Neighbors()))
	for _, id := range a.neighbors.Neighbors() {
		addr, ok := a.neighbors.Lookup(id)
		if !ok {
			continue
		}
		cost, ok := a.neighbors.LinkCost(id)
		if !ok {
			continue
		}
		pairs = append(pairs, routing.NeighborCostPair{Neighbor: addr, LinkCost: uint8(cost)})
	}
	frame := routing.LinkStateFrame{FrameID: a.cache.Generate(a.rnd), Origin: local.Addr, Neighbors: pairs}
	a.cache.Insert(frame.FrameID)
	a.broadcastLinkStateFrame(now, frame, link.Address{})
}

func (a *App) rebroadcastLinkState(now clock.Instant, f routing.LinkStateFrame, receivedFrom link.Address) {
	a.broadcastLinkStateFrame(now, f, receivedFrom)
}

// broadcastLinkStateFrame sends f to every known neighbor except skip
// (the peer it was just received from, when rebroadcasting).
func (a *App) broadcastLinkStateFrame(now clock.Instant, f routing.LinkStateFrame, skip link.Address) {
	body := f.MarshalBinary()
	for _, id := range a.neighbors.Neighbors() {
		addr, ok := a.neighbors.Lookup(id)
		if !ok || addr.Equal(skip) {
			continue
		}
		w, ready := a.linkStateCore.PollFrameWriter(len(body)).Get()
		if !ready {
			continue
		}
		w.Write(body)
		a.linkStateCore.PollSendFrame(addr, w.InitialReader(), now)
	}
}
