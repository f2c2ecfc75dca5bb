package metrics

import "time"

// RecordMatchingRun records a committed run outcome
func (m *Metrics) RecordMatchingRun(status string, duration time.Duration, unmatched int) {
	m.safeExecute("RecordMatchingRun", func() {
		m.MatchingRunsTotal.WithLabelValues(status).Inc()
		m.MatchingRunDuration.Observe(duration.Seconds())
		m.MatchingUnmatchedLastRun.Set(float64(unmatched))
	})
}

// IncrementPreview counts one preview
func (m *Metrics) IncrementPreview() {
	m.safeExecute("IncrementPreview", func() {
		m.MatchingPreviewsTotal.Inc()
	})
}

// RecordOverride counts one manual override attempt
func (m *Metrics) RecordOverride(operation string, err error) {
	m.safeExecute("RecordOverride", func() {
		result := "success"
		if err != nil {
			result = "failure"
		}
		m.OverridesTotal.WithLabelValues(operation, result).Inc()
	})
}

// IncrementLockConflict counts a rejected lock acquisition
func (m *Metrics) IncrementLockConflict(operation string) {
	m.safeExecute("IncrementLockConflict", func() {
		m.LockConflictsTotal.WithLabelValues(operation).Inc()
	})
}

// RecordAssignmentPublished counts one downstream delivery
func (m *Metrics) RecordAssignmentPublished(sink string, err error) {
	m.safeExecute("RecordAssignmentPublished", func() {
		result := "success"
		if err != nil {
			result = "failure"
		}
		m.AssignmentsPublished.WithLabelValues(sink, result).Inc()
	})
}

// SetLiveGroupsTotal sets the live groups gauge
func (m *Metrics) SetLiveGroupsTotal(count int64) {
	m.safeExecute("SetLiveGroupsTotal", func() {
		m.LiveGroupsTotal.Set(float64(count))
	})
}

// SetPaidParticipantsTotal sets the paid roster gauge
func (m *Metrics) SetPaidParticipantsTotal(count int64) {
	m.safeExecute("SetPaidParticipantsTotal", func() {
		m.PaidParticipantsTotal.Set(float64(count))
	})
}
