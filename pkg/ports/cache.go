package ports

import "context"

// AnalysisEntry is a cached search result for one position.
type AnalysisEntry struct {
	Key      string   `json:"key"`
	Depth    int      `json:"depth"`
	Score    int      `json:"score"`
	BestMove string   `json:"best_move"`
	PV       []string `json:"pv,omitempty"`
}

// AnalysisCache stores search results keyed by position.
type AnalysisCache interface {
	// Save stores the entry unless a deeper one is already cached.
	Save(ctx context.Context, entry AnalysisEntry) error

	// Load returns the entry for key.
	// Returns domain.ErrCacheMiss if there is none.
	Load(ctx context.Context, key string) (AnalysisEntry, error)

	// Clear drops every entry.
	Clear(ctx context.Context) error

	// Len returns the number of live entries.
	Len(ctx context.Context) (int, error)

	// Resize changes the capacity to fit sizeMB megabytes, evicting as needed.
	Resize(ctx context.Context, sizeMB int) error

	// Capacity returns the maximum number of entries.
	Capacity() int
}

// EntriesPerMB approximates how many entries fit in one megabyte.
const EntriesPerMB = 1 << 20 / 64

// CapacityFor converts a hash size in megabytes to an entry count.
func CapacityFor(sizeMB int) int {
	if sizeMB < 1 {
		sizeMB = 1
	}
	return sizeMB * EntriesPerMB
}
