package netcore

import "meshnet/nb"

// Config is the only runtime-configurable behavior in the core (§6):
// whether to run neighbor discovery and the dynamic cost updater.
type Config struct {
	EnableAutoNeighborDiscovery bool
	EnableDynamicCostUpdate     bool
}

// Info is {cost, source, config}. Until the link layer reports a media
// address, Info is Pending; once known, it becomes Ready and a SelfUpdated
// notification fires once, when the first address is assigned. Later
// SetAddress calls replace the address without notifying.
type Info struct {
	cost    Cost
	source  Source
	config  Config
	hasAddr bool
}

// LocalNode owns this node's identity and cost, and emits SelfUpdated
// notifications through notifier when either changes.
type LocalNode struct {
	info     Info
	notifier *NotificationService
}

func NewLocalNode(cfg Config, notifier *NotificationService) *LocalNode {
	return &LocalNode{info: Info{config: cfg}, notifier: notifier}
}

// SetAddress is called once the link layer has determined this node's
// address (e.g. the UHF equipment id, or the serial self address). It
// transitions Info from Pending to Ready.
func (l *LocalNode) SetAddress(node NodeId, cluster ClusterId, hasCluster bool) {
	wasReady := l.info.hasAddr
	l.info.source = Source{Node: node, Cluster: cluster, HasCluster: hasCluster}
	l.info.hasAddr = true
	if !wasReady {
		l.notifier.Notify(SelfUpdated(cluster, l.info.cost))
	}
}

// SetCost updates this node's own cost (normally via the dynamic cost
// updater) and notifies if it actually changed.
func (l *LocalNode) SetCost(cost Cost) {
	if l.info.cost == cost {
		return
	}
	l.info.cost = cost
	if l.info.hasAddr {
		l.notifier.Notify(SelfUpdated(l.info.source.Cluster, cost))
	}
}

// PollInfo returns Ready(Info) once an address has been assigned, else
// Pending.
func (l *LocalNode) PollInfo() nb.Poll[Info] {
	if l.info.hasAddr {
		return nb.Ready(l.info)
	}
	return nb.Pending[Info]()
}

func (i Info) Cost() Cost      { return i.cost }
func (i Info) Source() Source  { return i.source }
func (i Info) Config() Config  { return i.config }
