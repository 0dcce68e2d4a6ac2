package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"stpasec/internal/logging"
	"stpasec/internal/types"
)

// InsertAnalysis creates the root record for one execution.
func (s *Store) InsertAnalysis(a *types.Analysis) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`
		INSERT INTO analyses (id, step, name, description, status, parent_id, user_id, execution_mode, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, int(a.Step), a.Name, a.Description, string(a.Status), nullable(a.ParentID), nullable(a.UserID), a.ExecutionMode, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert analysis: %w", err)
	}
	return nil
}

// UpdateAnalysisStatus records a status transition, with completion time
// and quality score when the run is over.
func (s *Store) UpdateAnalysisStatus(analysisID string, status types.AnalysisStatus, qualityScore float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var completedAt any
	switch status {
	case types.AnalysisCompleted, types.AnalysisError, types.AnalysisTimeout:
		completedAt = time.Now()
	}
	_, err := s.db.Exec(`
		UPDATE analyses SET status = ?, quality_score = ?, completed_at = COALESCE(?, completed_at)
		WHERE id = ?`,
		string(status), qualityScore, completedAt, analysisID)
	if err != nil {
		return fmt.Errorf("failed to update analysis status: %w", err)
	}
	return nil
}

// FetchAnalysis loads one analysis record.
func (s *Store) FetchAnalysis(analysisID string) (*types.Analysis, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row := s.db.QueryRow(`
		SELECT id, step, name, COALESCE(description,''), status, COALESCE(quality_score,0),
		       COALESCE(parent_id,''), COALESCE(user_id,''), COALESCE(execution_mode,''), created_at
		FROM analyses WHERE id = ?`, analysisID)
	var a types.Analysis
	var step int
	var status string
	if err := row.Scan(&a.ID, &step, &a.Name, &a.Description, &status, &a.QualityScore,
		&a.ParentID, &a.UserID, &a.ExecutionMode, &a.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("analysis %s not found", analysisID)
		}
		return nil, fmt.Errorf("failed to fetch analysis: %w", err)
	}
	a.Step = types.Step(step)
	a.Status = types.AnalysisStatus(status)
	return &a, nil
}

// FetchLatestStep1 returns the most recent completed Step 1 analysis, for
// Step 2 runs that chain onto prior framing.
func (s *Store) FetchLatestStep1() (*types.Analysis, error) {
	s.mu.RLock()
	row := s.db.QueryRow(`
		SELECT id FROM analyses
		WHERE step = 1 AND status = 'completed'
		ORDER BY created_at DESC LIMIT 1`)
	var id string
	err := row.Scan(&id)
	s.mu.RUnlock()
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("no completed Step 1 analysis found")
		}
		return nil, fmt.Errorf("failed to query step 1 analyses: %w", err)
	}
	return s.FetchAnalysis(id)
}

// PhaseTx buffers the writes of one phase in memory and flushes them in a
// single transaction at phase end: either every record commits or the
// phase fails and nothing is applied. Buffering keeps the connection free
// for concurrent reads by parallel agents; phase N writes become visible
// to phase N+1 at the flush, which is the ordering the coordinator
// guarantees.
type PhaseTx struct {
	mu    sync.Mutex
	store *Store
	ops   []phaseOp
	done  bool
}

type phaseOp struct {
	query string
	args  []any
	kind  string // for error messages
}

// BeginPhase opens a phase-scoped write buffer. Safe for concurrent use by
// the parallel agents of one phase.
func (s *Store) BeginPhase() (*PhaseTx, error) {
	return &PhaseTx{store: s}, nil
}

// Commit flushes all buffered phase writes in one transaction.
func (p *PhaseTx) Commit() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done {
		return nil
	}
	p.done = true
	if len(p.ops) == 0 {
		return nil
	}

	p.store.mu.Lock()
	defer p.store.mu.Unlock()
	tx, err := p.store.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin phase transaction: %w", err)
	}
	for _, op := range p.ops {
		if _, err := tx.Exec(op.query, op.args...); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to write %s: %w", op.kind, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit phase: %w", err)
	}
	return nil
}

// Rollback discards all buffered phase writes.
func (p *PhaseTx) Rollback() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done = true
	p.ops = nil
	return nil
}

func (p *PhaseTx) enqueue(kind, query string, args ...any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done {
		return fmt.Errorf("phase already closed")
	}
	p.ops = append(p.ops, phaseOp{query: query, args: args, kind: kind})
	return nil
}

// InsertArtifact persists one artifact record inside the phase.
func (p *PhaseTx) InsertArtifact(analysisID string, kind types.ArtifactKind, identifier string, record any) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal %s artifact: %w", kind, err)
	}
	if p.store.legacyArtifacts {
		if payload, err = stashIdentifier(payload, identifier); err != nil {
			return err
		}
		return p.enqueue(string(kind),
			`INSERT INTO artifacts (analysis_id, kind, payload) VALUES (?, ?, ?)`,
			analysisID, string(kind), string(payload))
	}
	return p.enqueue(string(kind),
		`INSERT INTO artifacts (analysis_id, kind, identifier, payload) VALUES (?, ?, ?, ?)`,
		analysisID, string(kind), identifier, string(payload))
}

// InsertMapping persists a relationship record inside the phase and mirrors
// it into element_dependencies for impact analysis.
func (p *PhaseTx) InsertMapping(analysisID string, kind types.ArtifactKind, aID, bID string, props any) error {
	var propsJSON []byte
	if props != nil {
		var err error
		if propsJSON, err = json.Marshal(props); err != nil {
			return fmt.Errorf("failed to marshal mapping props: %w", err)
		}
	}
	if err := p.enqueue(string(kind),
		`INSERT INTO mappings (analysis_id, kind, a_id, b_id, props) VALUES (?, ?, ?, ?, ?)`,
		analysisID, string(kind), aID, bID, string(propsJSON)); err != nil {
		return err
	}
	fromKind, toKind := mappingEndpoints(kind)
	return p.enqueue("element_dependency",
		`INSERT INTO element_dependencies (analysis_id, from_kind, from_id, to_kind, to_id) VALUES (?, ?, ?, ?, ?)`,
		analysisID, fromKind, aID, toKind, bID)
}

// InsertAgentResult persists an agent's structured result for later phases.
func (p *PhaseTx) InsertAgentResult(result *types.AgentResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal agent result: %w", err)
	}
	return p.enqueue("agent_result",
		`INSERT INTO agent_results (analysis_id, agent_type, payload) VALUES (?, ?, ?)`,
		result.AnalysisID, result.AgentType, string(payload))
}

// LogActivity records one activity row inside the phase.
func (p *PhaseTx) LogActivity(entry types.ActivityEntry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	return p.enqueue("activity",
		`INSERT INTO activity_log (analysis_id, agent_type, activity, detail, ts) VALUES (?, ?, ?, ?, ?)`,
		entry.AnalysisID, entry.AgentType, entry.Activity, entry.Detail, entry.Timestamp)
}

// mappingEndpoints resolves a mapping kind to its endpoint artifact kinds.
func mappingEndpoints(kind types.ArtifactKind) (string, string) {
	switch kind {
	case types.KindHazardLossMap:
		return string(types.KindHazard), string(types.KindLoss)
	case types.KindConstraintMap:
		return string(types.KindConstraint), string(types.KindHazard)
	case types.KindLossDependency:
		return string(types.KindLoss), string(types.KindLoss)
	case types.KindControlHierarchy, types.KindControlAction, types.KindFeedback, types.KindTrustBoundary:
		return string(types.KindComponent), string(types.KindComponent)
	default:
		return string(kind), string(kind)
	}
}

// ArtifactRecord is one fetched artifact row.
type ArtifactRecord struct {
	SurrogateID int64
	Identifier  string
	Payload     []byte
}

// FetchArtifacts returns all artifacts of a kind for an analysis, in
// insertion order. Legacy rows have identifiers recovered from metadata.
func (s *Store) FetchArtifacts(analysisID string, kind types.ArtifactKind) ([]ArtifactRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fetchArtifacts(s.db, analysisID, kind)
}

type queryer interface {
	Query(query string, args ...any) (*sql.Rows, error)
}

func fetchArtifacts(q queryer, analysisID string, kind types.ArtifactKind) ([]ArtifactRecord, error) {
	rows, err := q.Query(`
		SELECT id, COALESCE(identifier, ''), payload FROM artifacts
		WHERE analysis_id = ? AND kind = ? ORDER BY id`,
		analysisID, string(kind))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s artifacts: %w", kind, err)
	}
	defer rows.Close()

	var out []ArtifactRecord
	for rows.Next() {
		var rec ArtifactRecord
		var payload string
		if err := rows.Scan(&rec.SurrogateID, &rec.Identifier, &payload); err != nil {
			return nil, err
		}
		rec.Payload = []byte(payload)
		if rec.Identifier == "" {
			rec.Identifier = extractIdentifier(rec.Payload)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// FetchArtifactsInto decodes all artifacts of a kind into a typed slice.
func FetchArtifactsInto[T any](s *Store, analysisID string, kind types.ArtifactKind) ([]T, error) {
	records, err := s.FetchArtifacts(analysisID, kind)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(records))
	for _, rec := range records {
		var v T
		if err := json.Unmarshal(rec.Payload, &v); err != nil {
			logging.L(logging.CategoryStore).Warnw("skipping undecodable artifact",
				"kind", kind, "identifier", rec.Identifier, "error", err)
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

// MappingRecord is one fetched relationship row.
type MappingRecord struct {
	AID   string
	BID   string
	Props []byte
}

// FetchMappings returns all mappings of a kind for an analysis.
func (s *Store) FetchMappings(analysisID string, kind types.ArtifactKind) ([]MappingRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.Query(`
		SELECT a_id, b_id, COALESCE(props, '') FROM mappings
		WHERE analysis_id = ? AND kind = ? ORDER BY id`,
		analysisID, string(kind))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s mappings: %w", kind, err)
	}
	defer rows.Close()

	var out []MappingRecord
	for rows.Next() {
		var rec MappingRecord
		var props string
		if err := rows.Scan(&rec.AID, &rec.BID, &props); err != nil {
			return nil, err
		}
		rec.Props = []byte(props)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// FetchAgentResults loads persisted agent results for an analysis,
// optionally filtered by agent types.
func (s *Store) FetchAgentResults(analysisID string, agentTypes ...string) ([]*types.AgentResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT payload FROM agent_results WHERE analysis_id = ?`
	args := []any{analysisID}
	if len(agentTypes) > 0 {
		query += ` AND agent_type IN (`
		for i, at := range agentTypes {
			if i > 0 {
				query += `,`
			}
			query += `?`
			args = append(args, at)
		}
		query += `)`
	}
	query += ` ORDER BY id`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch agent results: %w", err)
	}
	defer rows.Close()

	var out []*types.AgentResult
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var r types.AgentResult
		if err := json.Unmarshal([]byte(payload), &r); err != nil {
			continue
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

// FetchActivityLog returns the execution log for an analysis.
func (s *Store) FetchActivityLog(analysisID string) ([]types.ActivityEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.Query(`
		SELECT agent_type, activity, COALESCE(detail,''), ts FROM activity_log
		WHERE analysis_id = ? ORDER BY id`, analysisID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch activity log: %w", err)
	}
	defer rows.Close()

	var out []types.ActivityEntry
	for rows.Next() {
		e := types.ActivityEntry{AnalysisID: analysisID}
		if err := rows.Scan(&e.AgentType, &e.Activity, &e.Detail, &e.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ListAnalyses enumerates analyses newest first.
func (s *Store) ListAnalyses() ([]types.Analysis, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.Query(`
		SELECT id, step, name, status, COALESCE(quality_score,0), created_at
		FROM analyses ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list analyses: %w", err)
	}
	defer rows.Close()

	var out []types.Analysis
	for rows.Next() {
		var a types.Analysis
		var step int
		var status string
		if err := rows.Scan(&a.ID, &step, &a.Name, &status, &a.QualityScore, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.Step = types.Step(step)
		a.Status = types.AnalysisStatus(status)
		out = append(out, a)
	}
	return out, rows.Err()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
