package econ

import "github.com/nodalync/node/types"

// ShouldSettle implements spec.md §4.5's trigger policy: settle now if the
// pending total has crossed the batch threshold, or if too long has passed
// since the last settlement run.
func ShouldSettle(pendingTotal uint64, lastSettlementTimeMS, nowMS int64) bool {
	if pendingTotal >= types.SettlementBatchThreshold {
		return true
	}
	return nowMS-lastSettlementTimeMS >= types.SettlementMaxIntervalMS
}
