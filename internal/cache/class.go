package cache

import "time"

// DataClass selects the TTL of an entry.
type DataClass string

const (
	ClassSearch    DataClass = "search"
	ClassVotes     DataClass = "votes"
	ClassStats     DataClass = "stats"
	ClassRecords   DataClass = "records"
	ClassReference DataClass = "reference"
)

// TTLs maps each data class to its time to live.
type TTLs map[DataClass]time.Duration

// DefaultTTLs returns the stock class TTLs.
func DefaultTTLs() TTLs {
	return TTLs{
		ClassSearch:    30 * time.Second,
		ClassVotes:     10 * time.Second,
		ClassStats:     15 * time.Second,
		ClassRecords:   60 * time.Second,
		ClassReference: 5 * time.Minute,
	}
}

// shortest returns the smallest positive TTL, used for unknown classes.
func (t TTLs) shortest() time.Duration {
	var min time.Duration
	for _, d := range t {
		if d > 0 && (min == 0 || d < min) {
			min = d
		}
	}
	if min == 0 {
		min = DefaultTTLs()[ClassVotes]
	}
	return min
}

func (t TTLs) of(c DataClass) time.Duration {
	if d, ok := t[c]; ok && d > 0 {
		return d
	}
	return t.shortest()
}
