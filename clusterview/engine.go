package clusterview

import (
	"fmt"
	"time"

	"github.com/couchbase/clusterview/logging"
	"github.com/couchbase/clusterview/metrics"
	"github.com/couchbase/clusterview/repo"
)

// Engine is the view builder. It orchestrates the descriptor reader, id
// map, instance reader, cluster-id store, and leader-election sort,
// detects sequence-number changes, assembles the final
// LocalClusterView, enforces invariants, and reports partial/unresolved
// conditions. An Engine is not safe for concurrent calls to
// GetLocalClusterView; the calling layer is expected to serialize
// invocations per process.
type Engine struct {
	Sessions       repo.SessionFactory
	Descriptors    DescriptorReader
	IdMap          IdMap
	Instances      InstanceReader
	ClusterIDStore ClusterIDStore
	Settings       Settings
	Config         Config
	Logger         logging.Logger
	Metrics        *metrics.Registry

	// Now is injectable for suppression-deadline tests; defaults to
	// time.Now when nil.
	Now func() time.Time

	state *State
}

// NewEngine wires the default collaborators for a metakv-backed
// deployment. Individual fields on the returned Engine may be
// overridden (e.g. in tests) before the first call.
func NewEngine(sessions repo.SessionFactory, settings Settings, cfg Config) *Engine {
	return &Engine{
		Sessions:       sessions,
		Descriptors:    NewMetakvDescriptorReader(repo.DescriptorPath(cfg.ClusterInstancesPath)),
		IdMap:          NewMetakvIdMap(sessions, cfg.ClusterInstancesPath),
		Instances:      NewMetakvInstanceReader(),
		ClusterIDStore: NewClusterIDStore(nil, nil),
		Settings:       settings,
		Config:         cfg,
		Logger:         logging.Current,
		Metrics:        metrics.NewRegistry(),
		state:          NewState(),
	}
}

func (e *Engine) logger() logging.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return logging.Current
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// State exposes the engine's cross-call memory, primarily for tests that
// want to assert on it between calls.
func (e *Engine) State() *State {
	if e.state == nil {
		e.state = NewState()
	}
	return e.state
}

// GetLocalClusterView reads the current membership descriptor, resolves
// every active member against repository state, elects a leader, and
// returns the fully-assembled view for this process.
func (e *Engine) GetLocalClusterView() (LocalClusterView, error) {
	st := e.State()
	log := e.logger()

	if e.Metrics != nil {
		stop := e.Metrics.CallStarted()
		defer stop()
	}

	view, err := e.build(st, log)
	if err != nil {
		if e.Metrics != nil {
			e.Metrics.Failed(KindOf(err).String())
		}
		return LocalClusterView{}, err
	}
	if e.Metrics != nil {
		e.Metrics.Succeeded()
	}
	return view, nil
}

func (e *Engine) build(st *State, log logging.Logger) (LocalClusterView, error) {
	// Acquire a scoped repository session, released on every exit path.
	sess, err := e.Sessions.NewSession()
	if err != nil {
		return LocalClusterView{}, newRepositoryException("failed to acquire repository session", err)
	}
	defer sess.Close()

	descriptor, err := e.Descriptors.Read(sess)
	if err != nil {
		return LocalClusterView{}, newRepositoryException("failed to read discovery-lite descriptor", err)
	}

	// A sequence-number change means the cluster membership moved on;
	// any cached slot->stableId mappings from the previous snapshot may
	// now be stale.
	if descriptor.SeqNum != st.LastSeqNum {
		e.IdMap.ClearCache()
		st.LastSeqNum = descriptor.SeqNum
	}

	clusterID := descriptor.ViewID
	if clusterID == "" {
		clusterID, err = e.ClusterIDStore.ReadOrDefineClusterId(sess, e.Config.ClusterInstancesPath, e.Settings.LocalStableID())
		if err != nil {
			return LocalClusterView{}, newRepositoryException("failed to read or define cluster id", err)
		}
	}

	// A non-final descriptor means membership is still mid-change;
	// nothing stable can be reported yet.
	if !descriptor.Final {
		return LocalClusterView{}, newNoEstablishedView("descriptor is not final")
	}

	if len(descriptor.ActiveSlotIDs) == 0 {
		return LocalClusterView{}, newNoEstablishedView("descriptor has no active slot ids")
	}

	// The local instance must always resolve; there is no suppression
	// fallback for this process's own record.
	localInfo, found, err := e.Instances.Read(sess, e.IdMap, e.Config.ClusterInstancesPath, descriptor.LocalSlotID, false)
	if err != nil {
		return LocalClusterView{}, newRepositoryException("failed to read local instance", err)
	}
	if !found {
		return LocalClusterView{}, newNoEstablishedView(fmt.Sprintf("local slot %d has no resolvable instance record", descriptor.LocalSlotID))
	}

	suppressionEnabled := suppressionEligible(e.Config, localInfo, st.LowestSeqNum, st.PartialSuppressionDeadlineMillis, e.now().UnixMilli())

	// Read every other active member, splitting them into members whose
	// repository state resolved cleanly and members that are active per
	// the descriptor but not yet readable (partially started).
	var regularInfos []InstanceInfo
	var partiallyStarted []int
	for _, slot := range descriptor.ActiveSlotIDs {
		if slot == descriptor.LocalSlotID {
			regularInfos = append(regularInfos, localInfo)
			continue
		}

		info, ok, err := e.Instances.Read(sess, e.IdMap, e.Config.ClusterInstancesPath, slot, suppressionEnabled)
		if err != nil {
			return LocalClusterView{}, newRepositoryException(fmt.Sprintf("failed to read instance for slot %d", slot), err)
		}
		if !ok && !suppressionEnabled {
			// Could be a race against a stale cache entry rather than a
			// genuinely unresolvable member: clear and retry once
			// before giving up. Only attempted in intolerant mode,
			// since a tolerant miss is expected to happen routinely
			// during a coordinated restart.
			e.IdMap.ClearCache()
			info, ok, err = e.Instances.Read(sess, e.IdMap, e.Config.ClusterInstancesPath, slot, suppressionEnabled)
			if err != nil {
				return LocalClusterView{}, newRepositoryException(fmt.Sprintf("failed to read instance for slot %d on retry", slot), err)
			}
		}
		if !ok {
			if suppressionEnabled {
				partiallyStarted = append(partiallyStarted, slot)
				continue
			}
			return LocalClusterView{}, newNoEstablishedView(fmt.Sprintf("slot %d is active but unresolvable and suppression is disabled", slot))
		}
		regularInfos = append(regularInfos, info)
	}

	sortMembers(regularInfos, e.Config.InvertLeaderElectionPrefixOrder)
	remainingActive := len(descriptor.ActiveSlotIDs) - len(partiallyStarted)
	if len(regularInfos) != remainingActive {
		log.Errorf("clusterview: sorted member count %d does not match remaining active count %d (seqNum=%d)", len(regularInfos), remainingActive, descriptor.SeqNum)
	}

	members := make([]MemberView, 0, len(regularInfos))
	seenAllSyncTokens := true
	for idx, info := range regularInfos {
		if info.StableID == "" {
			e.IdMap.ClearCache()
			return LocalClusterView{}, newRepositoryException(fmt.Sprintf("slot %d resolved with an empty stable id", info.SlotID), nil)
		}
		if !info.IsSyncTokenNewerOrEqual(descriptor.SeqNum) {
			seenAllSyncTokens = false
		}

		props, err := readProperties(sess, e.Config.ClusterInstancesPath, info.StableID)
		if err != nil {
			return LocalClusterView{}, newRepositoryException(fmt.Sprintf("failed to read properties for %s", info.StableID), err)
		}

		members = append(members, MemberView{
			StableID:   info.StableID,
			IsLeader:   idx == 0,
			IsLocal:    info.SlotID == descriptor.LocalSlotID,
			Properties: props,
		})
	}

	// Force fresh resolution on the next call if anything was suppressed
	// this time, or if any member's sync token hadn't caught up to the
	// current snapshot yet. Both are signs the cached mappings may
	// still be in flux.
	if len(partiallyStarted) > 0 || !seenAllSyncTokens {
		e.IdMap.ClearCache()
	}

	view := LocalClusterView{
		ClusterID:               clusterID,
		SyncTokenID:             fmt.Sprintf("%d", descriptor.SeqNum),
		Members:                 members,
		PartiallyStartedSlotIDs: partiallyStarted,
	}

	if !containsLocal(descriptor.LocalSlotID, regularInfos) {
		return LocalClusterView{}, newIsolatedFromTopology("local member is absent from the computed view")
	}

	if st.LowestSeqNum == -1 {
		st.LowestSeqNum = descriptor.SeqNum
	}

	auditDisappearedMembers(log, st.SeenLocalInstances, regularInfos, descriptor.ActiveSlotIDs)

	newSeen := make(map[int]InstanceInfo, len(regularInfos))
	for _, info := range regularInfos {
		newSeen[info.SlotID] = info
	}
	st.SeenLocalInstances = newSeen

	st.PartialSuppressionDeadlineMillis = nextSuppressionDeadline(e.Config, len(partiallyStarted), st.PartialSuppressionDeadlineMillis, e.now().UnixMilli())

	if e.Metrics != nil {
		e.Metrics.Suppressed(len(partiallyStarted))
	}

	return view, nil
}

// containsLocal reports whether regularInfos (the members that made it
// into the view) include localSlotID.
func containsLocal(localSlotID int, regularInfos []InstanceInfo) bool {
	for _, info := range regularInfos {
		if info.SlotID == localSlotID {
			return true
		}
	}
	return false
}

// auditDisappearedMembers checks that every previously-seen instance now
// absent from regulars is also absent from activeSlotIds; otherwise it
// logs a loud, non-fatal error. A member legitimately disappears when
// the descriptor stops listing its slot; anything else is a soft
// invariant violation worth flagging.
func auditDisappearedMembers(log logging.Logger, previouslySeen map[int]InstanceInfo, regulars []InstanceInfo, activeSlotIDs []int) {
	if len(previouslySeen) == 0 {
		return
	}

	stillRegular := make(map[int]bool, len(regulars))
	for _, info := range regulars {
		stillRegular[info.SlotID] = true
	}
	stillActive := make(map[int]bool, len(activeSlotIDs))
	for _, slot := range activeSlotIDs {
		stillActive[slot] = true
	}

	for slot := range previouslySeen {
		if stillRegular[slot] {
			continue
		}
		if !stillActive[slot] {
			// Expected: the descriptor dropped this slot.
			continue
		}
		log.Errorf("clusterview: slot %d vanished from regular members but is still listed active by the descriptor", slot)
	}
}
