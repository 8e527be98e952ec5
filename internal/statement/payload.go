package statement

import "time"

// Record is one flat raw provider record keyed by provider field name.
type Record map[string]any

// Period is one reporting period of a periodic statement.
type Period struct {
	Date   time.Time
	Values Record
}

// Payload is the raw data of one kind for one symbol: Periods for periodic
// kinds, Record for point-in-time kinds.
type Payload struct {
	Periods []Period
	Record  Record
}

// Empty reports whether the payload carries no data.
func (p Payload) Empty() bool {
	return len(p.Periods) == 0 && len(p.Record) == 0
}

// Set holds one symbol's payload for each kind.
type Set map[Kind]Payload

// Batch keys raw payloads by kind, then by "{ticker}-{country}".
type Batch map[Kind]map[string]Payload

// NewBatch returns a batch with an empty map for every kind.
func NewBatch() Batch {
	b := make(Batch, len(Kinds))
	for _, k := range Kinds {
		b[k] = make(map[string]Payload)
	}
	return b
}

// Add stores set under key for every kind. Kinds missing from set are
// stored as empty payloads, so the symbol stays visible to normalization.
func (b Batch) Add(key string, set Set) {
	for _, k := range Kinds {
		if b[k] == nil {
			b[k] = make(map[string]Payload)
		}
		b[k][key] = set[k]
	}
}

// HasData reports whether any payload in the batch is non-empty.
func (b Batch) HasData() bool {
	for _, bySymbol := range b {
		for _, p := range bySymbol {
			if !p.Empty() {
				return true
			}
		}
	}
	return false
}
