package market

// SessionZone describes a trading session window in UTC hours. Kill-zone
// hours are optional; a negative value means the session has no kill zone.
type SessionZone struct {
	Label         string `json:"label"`
	StartHour     int    `json:"start_hour"`
	EndHour       int    `json:"end_hour"`
	KillStartHour int    `json:"kill_start_hour"`
	KillEndHour   int    `json:"kill_end_hour"`
}

// Session labels used by the built-in table and the fallback classifier.
const (
	SessionAsia     = "Asia"
	SessionLondon   = "London"
	SessionNewYork  = "NewYork"
	SessionOffHours = "OffHours"
)

// DefaultSessions returns the built-in UTC session table used when the
// caller supplies none.
func DefaultSessions() []SessionZone {
	return []SessionZone{
		{Label: SessionAsia, StartHour: 0, EndHour: 8, KillStartHour: -1, KillEndHour: -1},
		{Label: SessionLondon, StartHour: 7, EndHour: 16, KillStartHour: 7, KillEndHour: 10},
		{Label: SessionNewYork, StartHour: 12, EndHour: 21, KillStartHour: 12, KillEndHour: 15},
	}
}

// SessionFor returns the session label and kill-zone membership for a UTC
// hour. Lookup walks the supplied table in order; when no zone matches, a
// coarse hour-based classifier guarantees every bar still gets a label.
func SessionFor(zones []SessionZone, hour int) (string, bool) {
	for _, z := range zones {
		if !hourInWindow(hour, z.StartHour, z.EndHour) {
			continue
		}
		kill := z.KillStartHour >= 0 && hourInWindow(hour, z.KillStartHour, z.KillEndHour)
		return z.Label, kill
	}

	// Fallback classifier: every hour maps to some session.
	switch {
	case hour < 7:
		return SessionAsia, false
	case hour < 12:
		return SessionLondon, false
	case hour < 21:
		return SessionNewYork, false
	default:
		return SessionOffHours, false
	}
}

// hourInWindow handles windows that wrap midnight (start > end).
func hourInWindow(hour, start, end int) bool {
	if start <= end {
		return hour >= start && hour < end
	}
	return hour >= start || hour < end
}
