package netcore

// NotificationKind tags the Notification sum type.
type NotificationKind uint8

const (
	NotifySelfUpdated NotificationKind = iota
	NotifyNeighborUpdated
	NotifyNeighborRemoved
)

// Notification is the sum {SelfUpdated(cluster,cost), NeighborUpdated(id,
// link_cost, neighbor_cost), NeighborRemoved(id)}.
type Notification struct {
	Kind NotificationKind

	Cluster ClusterId
	Cost    Cost

	Neighbor     NodeId
	LinkCost     Cost
	NeighborCost Cost
}

func SelfUpdated(cluster ClusterId, cost Cost) Notification {
	return Notification{Kind: NotifySelfUpdated, Cluster: cluster, Cost: cost}
}

func NeighborUpdated(id NodeId, linkCost, neighborCost Cost) Notification {
	return Notification{Kind: NotifyNeighborUpdated, Neighbor: id, LinkCost: linkCost, NeighborCost: neighborCost}
}

func NeighborRemoved(id NodeId) Notification {
	return Notification{Kind: NotifyNeighborRemoved, Neighbor: id}
}

// notificationRingCap is the bounded ring size (§3 Notification).
const notificationRingCap = 8

// NotificationService is a bounded single-producer-per-source,
// single-consumer ring; Notify drops silently on full.
type NotificationService struct {
	ring []Notification
}

func NewNotificationService() *NotificationService {
	return &NotificationService{ring: make([]Notification, 0, notificationRingCap)}
}

// Notify enqueues n, dropping it silently if the ring is already full.
func (n *NotificationService) Notify(note Notification) {
	if len(n.ring) >= notificationRingCap {
		return
	}
	n.ring = append(n.ring, note)
}

// PollNotification yields the oldest queued notification or Pending.
func (n *NotificationService) PollNotification() (Notification, bool) {
	if len(n.ring) == 0 {
		return Notification{}, false
	}
	note := n.ring[0]
	n.ring = n.ring[1:]
	return note, true
}

// Wire format: type(u8) then type-specific body (§6).
func (n Notification) MarshalBinary() []byte {
	switch n.Kind {
	case NotifySelfUpdated:
		return []byte{byte(n.Kind), byte(n.Cluster), byte(n.Cost), byte(n.Cost >> 8)}
	case NotifyNeighborUpdated:
		b := n.Neighbor.Addr.MarshalBinary()
		out := append([]byte{byte(n.Kind)}, b...)
		out = append(out, byte(n.LinkCost), byte(n.LinkCost>>8), byte(n.NeighborCost), byte(n.NeighborCost>>8))
		return out
	case NotifyNeighborRemoved:
		b := n.Neighbor.Addr.MarshalBinary()
		return append([]byte{byte(n.Kind)}, b...)
	default:
		return nil
	}
}
