package models

// Batch is one Stage-1 unit of work: an ordered list of related files
// reviewed in a single LLM call.
type Batch struct {
	Index int         `json:"index"`
	Items []BatchItem `json:"items"`
}

// BatchItem is one file inside a batch, with its relationship metadata.
type BatchItem struct {
	File                 *FileRecord `json:"file"`
	Priority             Priority    `json:"priority"`
	HasRelationships     bool        `json:"has_relationships"`
	RelationshipStrength float64     `json:"relationship_strength,omitempty"`
	// RelatedPeers lists paths of related files present in the same batch.
	RelatedPeers []string `json:"related_peers,omitempty"`
}

// Paths returns the file paths of all items in order.
func (b *Batch) Paths() []string {
	paths := make([]string, len(b.Items))
	for i, item := range b.Items {
		paths[i] = item.File.Path
	}
	return paths
}

// Priority returns the highest item priority in the batch.
func (b *Batch) Priority() Priority {
	best := PriorityLow
	for _, item := range b.Items {
		if item.Priority.Rank() > best.Rank() {
			best = item.Priority
		}
	}
	return best
}
