package escalation

import (
	"fmt"
	"sort"
	"time"

	"github.com/damocles-platform/gdpr-engine/internal/domain/violation"
	"github.com/damocles-platform/gdpr-engine/internal/infrastructure/config"
)

// MassTrigger gates the day-60 mass enforcement protocol. A single slow
// responder must not start mass action; the creditor's whole violation
// record has to show a pattern.
type MassTrigger struct {
	cfg config.MassTriggerConfig
}

func NewMassTrigger(cfg config.MassTriggerConfig) *MassTrigger {
	return &MassTrigger{cfg: cfg}
}

// Evaluate decides whether the creditor's record justifies mass
// enforcement, returning the matched rule for the audit log.
func (t *MassTrigger) Evaluate(violations []*violation.Violation, now time.Time) (bool, string) {
	if len(violations) == 0 {
		return false, ""
	}

	windowStart := now.AddDate(0, 0, -t.cfg.RecentWindowDays)

	var criticalRecent, criticalTotal, highRecent, highTotal int
	byType := make(map[violation.Type]int)
	for _, v := range violations {
		byType[v.Type]++
		switch v.Severity {
		case violation.SeverityCritical:
			criticalTotal++
			if v.CreatedAt.After(windowStart) {
				criticalRecent++
			}
		case violation.SeverityHigh:
			highTotal++
			if v.CreatedAt.After(windowStart) {
				highRecent++
			}
		}
	}

	if criticalRecent >= t.cfg.CriticalRecent {
		return true, fmt.Sprintf("%d critical violations within %d days", criticalRecent, t.cfg.RecentWindowDays)
	}
	if criticalTotal >= t.cfg.CriticalTotal {
		return true, fmt.Sprintf("%d critical violations on record", criticalTotal)
	}
	if highRecent >= t.cfg.HighRecent {
		return true, fmt.Sprintf("%d high-severity violations within %d days", highRecent, t.cfg.RecentWindowDays)
	}
	if highTotal >= t.cfg.HighTotal {
		return true, fmt.Sprintf("%d high-severity violations on record", highTotal)
	}

	if n := t.largestCluster(violations); n >= t.cfg.ClusterCount {
		return true, fmt.Sprintf("%d violations clustered within %d days", n, t.cfg.ClusterWindowDays)
	}

	for vType, n := range byType {
		if n >= t.cfg.SameTypeCount {
			return true, fmt.Sprintf("violation type %s recurring %d times", vType, n)
		}
	}

	if len(violations) >= t.cfg.LegacyTotal {
		return true, fmt.Sprintf("%d total violations on record", len(violations))
	}

	return false, ""
}

// largestCluster finds the densest run of violations inside any window of
// ClusterWindowDays.
func (t *MassTrigger) largestCluster(violations []*violation.Violation) int {
	times := make([]time.Time, len(violations))
	for i, v := range violations {
		times[i] = v.CreatedAt
	}
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })

	window := time.Duration(t.cfg.ClusterWindowDays) * 24 * time.Hour
	best := 0
	lo := 0
	for hi := range times {
		for times[hi].Sub(times[lo]) > window {
			lo++
		}
		if n := hi - lo + 1; n > best {
			best = n
		}
	}
	return best
}
