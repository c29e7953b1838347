package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/piimap/piimap/domain/connector"
	"github.com/piimap/piimap/domain/lineage"
	"github.com/piimap/piimap/domain/recognition"
	"github.com/piimap/piimap/domain/scan"
	"github.com/piimap/piimap/internal/config"
)

// minExportLabelLength guards export reconciliation against matching on
// labels too short to mean anything.
const minExportLabelLength = 4

// genericFieldNames never participate in cross-system flow matching. They
// occur in nearly every table and would link unrelated systems.
var genericFieldNames = map[string]struct{}{
	"id": {}, "uuid": {}, "key": {},
	"created_at": {}, "updated_at": {}, "deleted_at": {}, "timestamp": {},
	"status": {}, "type": {}, "kind": {}, "version": {},
	"name": {}, "description": {}, "value": {}, "data": {},
}

// fieldNameEntityHints maps field-name substrings to entity types, the
// fallback when no sampled data confirms a field's content.
var fieldNameEntityHints = []struct {
	substring string
	entity    recognition.EntityType
}{
	{"email", recognition.EntityEmail},
	{"mail", recognition.EntityEmail},
	{"phone", recognition.EntityPhone},
	{"telepon", recognition.EntityPhone},
	{"mobile", recognition.EntityPhone},
	{"nik", recognition.EntityNationalID},
	{"ktp", recognition.EntityNationalID},
	{"npwp", recognition.EntityTaxID},
	{"alamat", recognition.EntityAddress},
	{"address", recognition.EntityAddress},
	{"birth", recognition.EntityDateTime},
	{"nama", recognition.EntityPerson},
}

// Lineage maintains the data lineage graph: which assets exist, how data
// flows between them, and where PII lives. Mutating passes take the write
// lock whole; path queries are safe concurrently between passes.
type Lineage struct {
	connectors  *connector.Registry
	recognition *Recognition
	cfg         config.ScanConfig
	logger      *slog.Logger

	mu    sync.RWMutex
	nodes map[string]lineage.Node
	edges map[string]lineage.Edge
}

// NewLineage creates the lineage graph engine with an empty graph.
func NewLineage(connectors *connector.Registry, recognitionEngine *Recognition, cfg config.ScanConfig, logger *slog.Logger) *Lineage {
	return &Lineage{
		connectors:  connectors,
		recognition: recognitionEngine,
		cfg:         cfg,
		logger:      logger,
		nodes:       make(map[string]lineage.Node),
		edges:       make(map[string]lineage.Edge),
	}
}

// AddNode inserts the node or merges it into an existing one with the same
// derived ID. Metadata merges and tags union; nothing ever shrinks.
func (s *Lineage) AddNode(node lineage.Node) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addNodeLocked(node)
}

func (s *Lineage) addNodeLocked(node lineage.Node) string {
	existing, ok := s.nodes[node.ID()]
	if !ok {
		s.nodes[node.ID()] = node
		return node.ID()
	}

	merged := existing.MergeMetadata(node.Metadata()).AddTags(node.Tags()...)
	if node.PIIPresent() && !existing.PIIPresent() {
		merged = s.markPII(merged, node.PIIType())
	}
	s.nodes[node.ID()] = merged
	return merged.ID()
}

// AddEdge links two existing nodes. Adding the same (src, relation, dst)
// twice is a no-op.
func (s *Lineage) AddEdge(src string, relation lineage.Relation, dst string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addEdgeLocked(src, relation, dst)
}

func (s *Lineage) addEdgeLocked(src string, relation lineage.Relation, dst string) error {
	if _, ok := s.nodes[src]; !ok {
		return fmt.Errorf("edge source node %q does not exist", src)
	}
	if _, ok := s.nodes[dst]; !ok {
		return fmt.Errorf("edge destination node %q does not exist", dst)
	}
	edge := lineage.NewEdge(src, relation, dst)
	s.edges[edge.ID()] = edge
	return nil
}

// Node returns the node by ID.
func (s *Lineage) Node(id string) (lineage.Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	node, ok := s.nodes[id]
	return node, ok
}

// Graph returns a point-in-time copy of all nodes and edges, ordered by ID.
func (s *Lineage) Graph() ([]lineage.Node, []lineage.Edge) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	nodes := make([]lineage.Node, 0, len(s.nodes))
	for _, n := range s.nodes {
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID() < nodes[j].ID() })

	edges := make([]lineage.Edge, 0, len(s.edges))
	for _, e := range s.edges {
		edges = append(edges, e)
	}
	sort.Slice(edges, func(i, j int) bool { return edges[i].ID() < edges[j].ID() })

	return nodes, edges
}

// IngestCatalog builds system, container, and field nodes for the given
// datasources from connector inventory plus a bounded data sample. A
// datasource whose connector fails is skipped with a warning.
func (s *Lineage) IngestCatalog(ctx context.Context, dataSources []scan.DataSource) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ds := range dataSources {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.ingestDataSource(ctx, ds); err != nil {
			s.logger.Warn("skipping datasource during lineage ingest",
				slog.String("datasource", ds.Name()),
				slog.String("error", err.Error()))
		}
	}
	return nil
}

func (s *Lineage) ingestDataSource(ctx context.Context, ds scan.DataSource) error {
	conn, err := s.connectors.Get(ds.TargetType())
	if err != nil {
		return err
	}
	containers, err := conn.SchemaMetadata(ctx, ds.Locator())
	if err != nil {
		return err
	}

	containerType, fieldType := nodeTypesFor(ds.TargetType())

	systemID := s.addNodeLocked(lineage.NewNode(ds.Name(), lineage.NodeSystem, "", ds.Name()))

	for _, meta := range containers {
		containerNode := lineage.NewNode(ds.Name(), containerType, "", meta.Container()).
			MergeMetadata(map[string]string{"target_type": ds.TargetType().String()})
		containerID := s.addNodeLocked(containerNode)
		_ = s.addEdgeLocked(systemID, lineage.RelationContains, containerID)

		fieldEntities := s.sampleFieldEntities(ctx, ds, conn, meta)

		for _, field := range meta.Fields() {
			fieldNode := lineage.NewNode(ds.Name(), fieldType, meta.Container(), field)

			entity, ok := fieldEntities[field]
			if !ok {
				entity, ok = entityFromName(field)
			}
			if ok {
				fieldNode = s.markPII(fieldNode, entity)
			}

			fieldID := s.addNodeLocked(fieldNode)
			_ = s.addEdgeLocked(containerID, lineage.RelationContains, fieldID)
		}
	}
	return nil
}

// sampleFieldEntities streams a bounded sample and picks the majority
// entity type per field. A connector failure degrades to name heuristics.
func (s *Lineage) sampleFieldEntities(ctx context.Context, ds scan.DataSource, conn connector.Connector, meta connector.ContainerMetadata) map[string]recognition.EntityType {
	stream, err := conn.ScanStream(ctx, ds.Locator(), meta.Container(), s.cfg.BatchSize(), s.cfg.SampleBudget())
	if err != nil {
		return nil
	}
	defer func() { _ = stream.Close() }()

	counts := make(map[string]map[recognition.EntityType]int)
	for {
		if ctx.Err() != nil {
			break
		}
		batch, err := stream.Next(ctx)
		if err != nil || len(batch) == 0 {
			break
		}
		for _, record := range batch {
			findings, err := s.recognition.Detect(ctx, record.Value(), nameTokens(meta.Container(), record.Field()))
			if err != nil {
				continue
			}
			for _, f := range findings {
				if counts[record.Field()] == nil {
					counts[record.Field()] = make(map[recognition.EntityType]int)
				}
				counts[record.Field()][f.EntityType()]++
			}
		}
	}

	majorities := make(map[string]recognition.EntityType, len(counts))
	for field, entityCounts := range counts {
		majorities[field] = majorityEntity(entityCounts)
	}
	return majorities
}

func majorityEntity(counts map[recognition.EntityType]int) recognition.EntityType {
	var best recognition.EntityType
	bestCount := -1
	for entity, count := range counts {
		if count > bestCount || (count == bestCount && entity < best) {
			best = entity
			bestCount = count
		}
	}
	return best
}

func entityFromName(field string) (recognition.EntityType, bool) {
	lower := strings.ToLower(field)
	for _, hint := range fieldNameEntityHints {
		if strings.Contains(lower, hint.substring) {
			return hint.entity, true
		}
	}
	return "", false
}

func nodeTypesFor(target connector.TargetType) (containerType, fieldType lineage.NodeType) {
	if target == connector.TargetDatabase {
		return lineage.NodeTable, lineage.NodeColumn
	}
	return lineage.NodeBucket, lineage.NodeFile
}

// markPII flags the node as carrying PII and enriches risk tags.
func (s *Lineage) markPII(node lineage.Node, entity recognition.EntityType) lineage.Node {
	node = node.WithPII(entity)
	if node.Risk() == lineage.RiskHigh {
		node = node.AddTags(lineage.TagSensitive)
	}
	return node
}

// ReconcileCrossSystemFlows links same-named, same-entity field nodes
// across systems with probable_flow edges. The linking is a heuristic and
// the edges say so through their relation.
func (s *Lineage) ReconcileCrossSystemFlows() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	type groupKey struct {
		label  string
		entity recognition.EntityType
	}
	groups := make(map[groupKey][]lineage.Node)

	for _, node := range s.nodes {
		if node.Type() != lineage.NodeColumn && node.Type() != lineage.NodeFile {
			continue
		}
		if !node.PIIPresent() {
			continue
		}
		label := strings.ToLower(node.Label())
		if _, generic := genericFieldNames[label]; generic {
			continue
		}
		key := groupKey{label: label, entity: node.PIIType()}
		groups[key] = append(groups[key], node)
	}

	added := 0
	for _, group := range groups {
		for _, a := range group {
			for _, b := range group {
				if a.ID() == b.ID() || a.System() == b.System() {
					continue
				}
				edge := lineage.NewEdge(a.ID(), lineage.RelationProbableFlow, b.ID())
				if _, exists := s.edges[edge.ID()]; !exists {
					s.edges[edge.ID()] = edge
					added++
				}
			}
		}
	}
	return added
}

// ReconcileExports links tables to files whose label contains the table's
// label, marking likely exports. Files downstream of PII tables get tagged.
func (s *Lineage) ReconcileExports() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	var tables, files []lineage.Node
	for _, node := range s.nodes {
		switch node.Type() {
		case lineage.NodeTable:
			tables = append(tables, node)
		case lineage.NodeFile:
			files = append(files, node)
		}
	}

	added := 0
	for _, table := range tables {
		label := strings.ToLower(table.Label())
		if len(label) < minExportLabelLength {
			continue
		}
		for _, file := range files {
			if !strings.Contains(strings.ToLower(file.Label()), label) {
				continue
			}
			edge := lineage.NewEdge(table.ID(), lineage.RelationExportFlow, file.ID())
			if _, exists := s.edges[edge.ID()]; !exists {
				s.edges[edge.ID()] = edge
				added++
			}
			if table.PIIPresent() || table.HasTag(scan.TagPII) {
				s.nodes[file.ID()] = s.nodes[file.ID()].AddTags(lineage.TagPossibleExport)
			}
		}
	}
	return added
}

// PropagatePIILabels pushes PII flags along flow edges until a fixed point.
// Each pass can only flip non-PII nodes to PII, so it terminates.
func (s *Lineage) PropagatePIILabels() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	propagated := 0
	for {
		changed := false
		for _, edge := range s.edges {
			if !edge.Relation().IsFlow() {
				continue
			}
			src, ok := s.nodes[edge.Src()]
			if !ok || !src.PIIPresent() {
				continue
			}
			dst, ok := s.nodes[edge.Dst()]
			if !ok || dst.PIIPresent() {
				continue
			}
			s.nodes[dst.ID()] = s.markPII(dst, src.PIIType()).AddTags(lineage.TagPropagated)
			propagated++
			changed = true
		}
		if !changed {
			return propagated
		}
	}
}

// UpstreamPath returns the IDs of every node the given node receives data
// from, directly or transitively.
func (s *Lineage) UpstreamPath(id string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.traverse(id, func(e lineage.Edge) (string, string) { return e.Dst(), e.Src() })
}

// DownstreamPath returns the IDs of every node the given node feeds data
// into, directly or transitively.
func (s *Lineage) DownstreamPath(id string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.traverse(id, func(e lineage.Edge) (string, string) { return e.Src(), e.Dst() })
}

func (s *Lineage) traverse(start string, direction func(lineage.Edge) (from, to string)) []string {
	if _, ok := s.nodes[start]; !ok {
		return nil
	}

	visited := map[string]struct{}{start: {}}
	queue := []string{start}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, edge := range s.edges {
			from, to := direction(edge)
			if from != current {
				continue
			}
			if _, seen := visited[to]; seen {
				continue
			}
			visited[to] = struct{}{}
			queue = append(queue, to)
		}
	}

	delete(visited, start)
	result := make([]string, 0, len(visited))
	for id := range visited {
		result = append(result, id)
	}
	sort.Strings(result)
	return result
}
