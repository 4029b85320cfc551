// Package planner groups a PLC's declared tag list into contiguous
// same-type runs so the acquisition loop can issue one batch read per run
// instead of one round-trip per tag.
package planner

import "github.com/plantdata/finsbridge/internal/config"

// Group is one read unit produced by the planner: either a Batch of two or
// more contiguous mappings, or a Single mapping read individually.
type Group struct {
	Tags []config.TagMapping
}

// IsBatch reports whether this group should be read with a single
// batch_read call. A batch of size 1 is emitted as a Single, never a batch
// of one.
func (g Group) IsBatch() bool { return len(g.Tags) >= 2 }

// Build performs the single linear pass described by the spec: it greedily
// extends the current group while the next mapping is contiguous with the
// last, and starts a new group otherwise. The result preserves declared
// order both across groups and within each group — downstream code (CSV
// columns, the Sample Buffer) depends on that order being stable.
//
// Build is a pure function, meant to be called once per loop start, not
// once per cycle: tags is assumed to already have HEARTBEAT removed.
func Build(tags []config.TagMapping) []Group {
	if len(tags) == 0 {
		return nil
	}

	groups := make([]Group, 0, len(tags))
	current := Group{Tags: []config.TagMapping{tags[0]}}

	for i := 1; i < len(tags); i++ {
		last := current.Tags[len(current.Tags)-1]
		if last.ContiguousWith(tags[i]) {
			current.Tags = append(current.Tags, tags[i])
			continue
		}
		groups = append(groups, current)
		current = Group{Tags: []config.TagMapping{tags[i]}}
	}
	groups = append(groups, current)
	return groups
}
