// Package clusterview computes a stable, leader-elected LocalClusterView
// from a discovery-lite membership descriptor and per-member repository
// state.
package clusterview

// Descriptor is one immutable snapshot of cluster membership as produced
// by the underlying discovery-lite facility.
type Descriptor struct {
	// ViewID is an opaque identifier for the current view; empty means
	// "absent" and the cluster id is resolved through the cluster-id
	// store instead. A nil and an empty ViewID are treated identically.
	ViewID string

	// SeqNum advances monotonically and identifies this membership
	// snapshot.
	SeqNum int64

	// Final is false while the descriptor producer is mid-change; no
	// view may be returned for a non-final descriptor.
	Final bool

	// LocalSlotID is the slot id of this process.
	LocalSlotID int

	// ActiveSlotIDs is the non-empty set of slot ids constituting the
	// active cluster for this snapshot.
	ActiveSlotIDs []int
}

// InstanceInfo is the per-member record read from the repository.
type InstanceInfo struct {
	SlotID int

	// StableID is globally unique and restart-persistent; the canonical
	// identity of the member.
	StableID string

	// LeaderElectionToken is assigned at member startup and never
	// changes for that startup. A total order over tokens elects the
	// leader.
	LeaderElectionToken string

	// LastSyncToken is the last SeqNum for which this member completed
	// its join handshake.
	LastSyncToken int64
}

// IsSyncTokenNewerOrEqual reports whether the member has synced at least
// up to x.
func (i InstanceInfo) IsSyncTokenNewerOrEqual(x int64) bool {
	return i.LastSyncToken >= x
}

// MemberView is one resolved member entry in a LocalClusterView.
type MemberView struct {
	StableID   string
	IsLeader   bool
	IsLocal    bool
	Properties map[string]string
}

// LocalClusterView is the fully-resolved, leader-elected view returned by
// a successful Engine.GetLocalClusterView call.
type LocalClusterView struct {
	// ClusterID is stable across restarts of the same cluster.
	ClusterID string

	// SyncTokenID equals the descriptor's SeqNum as a string, so every
	// view change yields a distinct id.
	SyncTokenID string

	// Members is ordered by the leader-election comparator; Members[0]
	// is the leader.
	Members []MemberView

	// PartiallyStartedSlotIDs is advisory only; these slots are not
	// present in Members.
	PartiallyStartedSlotIDs []int
}

// State is the engine's cross-call memory. LastSeqNum is updated as soon
// as a descriptor has been read, even when the call then fails; every
// other field mutates only at the end of a successful
// GetLocalClusterView call.
type State struct {
	// LastSeqNum is the last descriptor seqNum observed, -1 if none.
	LastSeqNum int64

	// LowestSeqNum is the first seqNum the local member ever returned
	// successfully, -1 if never.
	LowestSeqNum int64

	// PartialSuppressionDeadlineMillis is wall-clock millis; 0 means not
	// armed.
	PartialSuppressionDeadlineMillis int64

	// SeenLocalInstances is the set of regular members from the last
	// successful view build, keyed by slot id.
	SeenLocalInstances map[int]InstanceInfo
}

// NewState returns a freshly-initialized, never-yet-successful engine
// state.
func NewState() *State {
	return &State{
		LastSeqNum:   -1,
		LowestSeqNum: -1,
	}
}

// Config is the externally-injected, read-only configuration this
// engine is built with.
type Config struct {
	// ClusterInstancesPath is the absolute repository path holding one
	// child per stable member id.
	ClusterInstancesPath string

	SyncTokenEnabled                  bool
	SuppressPartiallyStartedInstances bool

	// SuppressionTimeoutSeconds <= 0 disables arming the suppression
	// deadline.
	SuppressionTimeoutSeconds int

	InvertLeaderElectionPrefixOrder bool
}

// Settings exposes the local process's own stable id, provided by an
// external settings collaborator (out of this core's scope).
type Settings interface {
	LocalStableID() string
}
