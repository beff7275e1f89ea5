package orchestrator

import (
	"context"
	"log/slog"
	"path"
	"sort"

	"github.com/codeready-toolchain/critique/pkg/config"
	"github.com/codeready-toolchain/critique/pkg/models"
	"github.com/codeready-toolchain/critique/pkg/retrieval"
)

// Relationship weights. Used for batch-internal ordering and the reported
// relationship strength, never for including or excluding files.
const (
	weightChangedFile     = 1.0
	weightExtends         = 0.95
	weightDefinitionMatch = 0.95
	weightImports         = 0.90
	weightCalls           = 0.85
	weightSameClass       = 0.85
	weightSameNamespace   = 0.75
	weightReferences      = 0.75
	weightSamePackage     = 0.60
)

func relationshipWeight(t models.RelationshipType) float64 {
	switch t {
	case models.RelExtends, models.RelImplements:
		return weightExtends
	case models.RelImports:
		return weightImports
	case models.RelCalls:
		return weightCalls
	case models.RelSamePackage:
		return weightSamePackage
	case models.RelReferences:
		return weightReferences
	default:
		return weightSamePackage
	}
}

// Batcher builds dependency-aware batches from the plan. Strategy order:
// enrichment relationships, then retrieval-derived relationships, then
// shared parent directories.
type Batcher struct {
	cfg       *config.Defaults
	retriever retrieval.Service
}

// NewBatcher creates a batcher. retriever may be nil.
func NewBatcher(cfg *config.Defaults, retriever retrieval.Service) *Batcher {
	return &Batcher{cfg: cfg, retriever: retriever}
}

// Batch partitions every reviewable file into batches of at most
// MaxBatchSize, keeping related files together whenever a connected
// component fits in one batch.
func (b *Batcher) Batch(
	ctx context.Context,
	req *models.ReviewRequest,
	plan *models.ReviewPlan,
	files []*models.FileRecord,
) []*models.Batch {
	var reviewable []*models.FileRecord
	for _, f := range files {
		if !f.Skipped {
			reviewable = append(reviewable, f)
		}
	}
	if len(reviewable) == 0 {
		return nil
	}

	index := make(map[string]int, len(reviewable))
	for i, f := range reviewable {
		index[f.Path] = i
	}

	edges := b.buildEdges(ctx, req, reviewable, index)

	g := newGraph(len(reviewable))
	for e, w := range edges {
		g.addEdge(e.a, e.b, w)
	}

	return b.pack(plan, reviewable, g)
}

type edgeKey struct{ a, b int }

func normalizeEdge(a, b int) edgeKey {
	if a > b {
		a, b = b, a
	}
	return edgeKey{a, b}
}

// buildEdges tries the three relationship sources in priority order.
func (b *Batcher) buildEdges(
	ctx context.Context,
	req *models.ReviewRequest,
	files []*models.FileRecord,
	index map[string]int,
) map[edgeKey]float64 {
	if req.Enrichment != nil && len(req.Enrichment.Relationships) > 0 {
		edges := edgesFromEnrichment(req.Enrichment.Relationships, index)
		if len(edges) > 0 {
			return edges
		}
	}

	if b.retriever != nil {
		edges, err := b.edgesFromRetriever(ctx, req, files, index)
		if err != nil {
			slog.Warn("Deterministic-context lookup for batching failed, falling back to directories",
				"error", err)
		} else if len(edges) > 0 {
			return edges
		}
	}

	return edgesFromDirectories(files, index)
}

func edgesFromEnrichment(rels []models.FileRelationship, index map[string]int) map[edgeKey]float64 {
	edges := make(map[edgeKey]float64)
	for _, rel := range rels {
		a, okA := index[rel.From]
		c, okC := index[rel.To]
		if !okA || !okC || a == c {
			continue
		}
		key := normalizeEdge(a, c)
		w := relationshipWeight(rel.Type)
		if w > edges[key] {
			edges[key] = w
		}
	}
	return edges
}

// edgesFromRetriever derives relationships from deterministic context:
// imports between changed files, extends-by-symbol, shared class, shared
// namespace.
func (b *Batcher) edgesFromRetriever(
	ctx context.Context,
	req *models.ReviewRequest,
	files []*models.FileRecord,
	index map[string]int,
) (map[edgeKey]float64, error) {
	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.Path
	}

	result, err := b.retriever.DeterministicContext(ctx, &retrieval.DeterministicQuery{
		Workspace:    req.Workspace,
		Project:      req.RepoSlug,
		Branches:     []string{req.TargetBranch},
		FilePaths:    paths,
		LimitPerFile: b.cfg.DeterministicPerFile,
	})
	if err != nil {
		return nil, err
	}

	edges := make(map[edgeKey]float64)
	addEdge := func(pathA, pathB string, w float64) {
		a, okA := index[pathA]
		c, okC := index[pathB]
		if !okA || !okC || a == c {
			return
		}
		key := normalizeEdge(a, c)
		if w > edges[key] {
			edges[key] = w
		}
	}

	defs := make([]retrieval.Definition, 0,
		len(result.ChangedFiles)+len(result.RelatedDefinitions)+len(result.ClassContext)+len(result.NamespaceContext))
	defs = append(defs, result.ChangedFiles...)
	defs = append(defs, result.RelatedDefinitions...)
	defs = append(defs, result.ClassContext...)
	defs = append(defs, result.NamespaceContext...)

	symbolPath := make(map[string]string)
	for _, def := range defs {
		if def.Symbol != "" {
			symbolPath[def.Symbol] = def.Path
		}
	}

	byClass := make(map[string][]string)
	byNamespace := make(map[string][]string)
	for _, def := range defs {
		for _, imp := range def.Imports {
			addEdge(def.Path, imp, weightImports)
			if p, ok := symbolPath[imp]; ok {
				addEdge(def.Path, p, weightImports)
			}
		}
		for _, ext := range def.Extends {
			if p, ok := symbolPath[ext]; ok {
				addEdge(def.Path, p, weightDefinitionMatch)
			}
		}
		if def.ClassName != "" {
			byClass[def.ClassName] = append(byClass[def.ClassName], def.Path)
		}
		if def.Namespace != "" {
			byNamespace[def.Namespace] = append(byNamespace[def.Namespace], def.Path)
		}
	}
	for _, members := range byClass {
		connectAll(members, weightSameClass, addEdge)
	}
	for _, members := range byNamespace {
		connectAll(members, weightSameNamespace, addEdge)
	}
	return edges, nil
}

func connectAll(paths []string, w float64, addEdge func(a, b string, w float64)) {
	for i := 0; i < len(paths); i++ {
		for j := i + 1; j < len(paths); j++ {
			addEdge(paths[i], paths[j], w)
		}
	}
}

func edgesFromDirectories(files []*models.FileRecord, index map[string]int) map[edgeKey]float64 {
	byDir := make(map[string][]int)
	for _, f := range files {
		dir := path.Dir(f.Path)
		byDir[dir] = append(byDir[dir], index[f.Path])
	}
	edges := make(map[edgeKey]float64)
	for _, members := range byDir {
		for i := 0; i < len(members); i++ {
			for j := i + 1; j < len(members); j++ {
				edges[normalizeEdge(members[i], members[j])] = weightSamePackage
			}
		}
	}
	return edges
}

// pack turns graph components into batches: whole components when they fit,
// priority-preserving splits when they don't, priority buckets for orphans,
// and a final same-priority merge pass.
func (b *Batcher) pack(plan *models.ReviewPlan, files []*models.FileRecord, g *graph) []*models.Batch {
	maxSize := b.cfg.MaxBatchSize
	priorityOf := func(i int) models.Priority { return plan.PriorityOf(files[i].Path) }

	components, orphans := g.components()

	// Sort components by size descending, then by best priority.
	sort.SliceStable(components, func(i, j int) bool {
		if len(components[i]) != len(components[j]) {
			return len(components[i]) > len(components[j])
		}
		return bestPriority(components[i], priorityOf).Rank() > bestPriority(components[j], priorityOf).Rank()
	})

	var groups [][]int
	for _, comp := range components {
		sortMembers(comp, g, priorityOf, files)
		if len(comp) <= maxSize {
			groups = append(groups, comp)
			continue
		}
		groups = append(groups, splitByPriority(comp, priorityOf, maxSize)...)
	}

	// Orphans: bucket by priority, chunk to maxSize.
	byPriority := make(map[models.Priority][]int)
	for _, i := range orphans {
		p := priorityOf(i)
		byPriority[p] = append(byPriority[p], i)
	}
	for _, p := range []models.Priority{models.PriorityCritical, models.PriorityHigh, models.PriorityMedium, models.PriorityLow} {
		members := byPriority[p]
		sort.Slice(members, func(a, c int) bool { return files[members[a]].Path < files[members[c]].Path })
		for start := 0; start < len(members); start += maxSize {
			end := start + maxSize
			if end > len(members) {
				end = len(members)
			}
			groups = append(groups, members[start:end])
		}
	}

	groups = b.mergeSmall(groups, priorityOf, maxSize)

	// Stable order: priority descending, then larger groups first.
	sort.SliceStable(groups, func(i, j int) bool {
		pi, pj := bestPriority(groups[i], priorityOf), bestPriority(groups[j], priorityOf)
		if pi != pj {
			return pi.Rank() > pj.Rank()
		}
		return len(groups[i]) > len(groups[j])
	})

	batches := make([]*models.Batch, 0, len(groups))
	for idx, group := range groups {
		batch := &models.Batch{Index: idx}
		inBatch := make(map[int]bool, len(group))
		for _, i := range group {
			inBatch[i] = true
		}
		for _, i := range group {
			var peers []string
			for _, n := range g.neighbors(i) {
				if inBatch[n] {
					peers = append(peers, files[n].Path)
				}
			}
			sort.Strings(peers)
			batch.Items = append(batch.Items, models.BatchItem{
				File:                 files[i],
				Priority:             priorityOf(i),
				HasRelationships:     len(g.neighbors(i)) > 0,
				RelationshipStrength: g.maxWeight(i),
				RelatedPeers:         peers,
			})
		}
		batches = append(batches, batch)
	}
	return batches
}

func bestPriority(members []int, priorityOf func(int) models.Priority) models.Priority {
	best := models.PriorityLow
	for _, i := range members {
		if p := priorityOf(i); p.Rank() > best.Rank() {
			best = p
		}
	}
	return best
}

// sortMembers orders a component by priority, then relationship strength,
// then path, which becomes the batch-internal order.
func sortMembers(members []int, g *graph, priorityOf func(int) models.Priority, files []*models.FileRecord) {
	sort.SliceStable(members, func(a, c int) bool {
		pa, pc := priorityOf(members[a]), priorityOf(members[c])
		if pa != pc {
			return pa.Rank() > pc.Rank()
		}
		wa, wc := g.maxWeight(members[a]), g.maxWeight(members[c])
		if wa != wc {
			return wa > wc
		}
		return files[members[a]].Path < files[members[c]].Path
	})
}

// splitByPriority splits an oversized component into maxSize chunks grouped
// by priority, preserving internal order within each priority.
func splitByPriority(members []int, priorityOf func(int) models.Priority, maxSize int) [][]int {
	buckets := make(map[models.Priority][]int)
	for _, i := range members {
		p := priorityOf(i)
		buckets[p] = append(buckets[p], i)
	}
	var out [][]int
	for _, p := range []models.Priority{models.PriorityCritical, models.PriorityHigh, models.PriorityMedium, models.PriorityLow} {
		bucket := buckets[p]
		for start := 0; start < len(bucket); start += maxSize {
			end := start + maxSize
			if end > len(bucket) {
				end = len(bucket)
			}
			out = append(out, bucket[start:end])
		}
	}
	return out
}

// mergeSmall folds same-priority groups smaller than MinBatchSize into a
// sibling, smallest-first, while the combined size stays within maxSize.
// Groups already at the minimum are left alone.
func (b *Batcher) mergeSmall(groups [][]int, priorityOf func(int) models.Priority, maxSize int) [][]int {
	byPriority := make(map[models.Priority][][]int)
	var order []models.Priority
	for _, g := range groups {
		p := bestPriority(g, priorityOf)
		if _, seen := byPriority[p]; !seen {
			order = append(order, p)
		}
		byPriority[p] = append(byPriority[p], g)
	}

	var out [][]int
	for _, p := range order {
		same := byPriority[p]
		sort.SliceStable(same, func(i, j int) bool { return len(same[i]) < len(same[j]) })
		for len(same) > 1 && len(same[0]) < b.cfg.MinBatchSize {
			smallest := same[0]
			merged := false
			for i := 1; i < len(same); i++ {
				if len(smallest)+len(same[i]) <= maxSize {
					same[i] = append(same[i], smallest...)
					same = same[1:]
					sort.SliceStable(same, func(a, c int) bool { return len(same[a]) < len(same[c]) })
					merged = true
					break
				}
			}
			if !merged {
				break
			}
		}
		out = append(out, same...)
	}
	return out
}
