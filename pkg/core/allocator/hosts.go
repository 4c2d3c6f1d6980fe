package allocator

import "github.com/jakechorley/session-booking/pkg/core/model"

// HostLoad is a roster member together with their confirmed booking count
type HostLoad struct {
	Host  string
	Count int
}

// RankHosts returns the roster ordered by load, least loaded first.
// Every roster member starts at zero before actual counts are overlaid;
// counts for hosts outside the roster are ignored. Ties keep roster order.
func RankHosts(roster []string, counts map[string]int) []HostLoad {
	loads := make([]HostLoad, 0, len(roster))
	for _, host := range roster {
		loads = append(loads, HostLoad{Host: host, Count: counts[host]})
	}

	// insertion sort keeps equal counts in roster order
	for i := 1; i < len(loads); i++ {
		for j := i; j > 0 && loads[j].Count < loads[j-1].Count; j-- {
			loads[j], loads[j-1] = loads[j-1], loads[j]
		}
	}
	return loads
}

// SelectHost picks the host with the strictly smallest confirmed-booking
// count, breaking ties by roster order. The choice is recomputed from
// counts on every call, so there is no rotation pointer to persist.
func SelectHost(roster []string, counts map[string]int) (string, error) {
	if len(roster) == 0 {
		return "", model.ErrEmptyRoster
	}

	best := roster[0]
	bestCount := counts[best]
	for _, host := range roster[1:] {
		if c := counts[host]; c < bestCount {
			best, bestCount = host, c
		}
	}
	return best, nil
}

// InRoster reports whether host is a roster member
func InRoster(roster []string, host string) bool {
	for _, h := range roster {
		if h == host {
			return true
		}
	}
	return false
}
