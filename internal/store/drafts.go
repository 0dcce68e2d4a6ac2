package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"stpasec/internal/logging"
	"stpasec/internal/types"
)

// The draft/version layer provides per-user working drafts over committed
// versions. Draft edits never touch committed state; a commit materializes
// the accumulated edits into the base tables and records a new immutable
// version snapshot in the same transaction.

// DraftState tracks a draft's lifecycle.
type DraftState string

const (
	DraftWorking   DraftState = "working"
	DraftCommitted DraftState = "committed"
)

// ErrDraftConflict is returned when committing a draft that was already
// committed.
var ErrDraftConflict = fmt.Errorf("draft already committed")

// Edit is one accumulated change against an artifact.
type Edit struct {
	Changes  map[string]any `json:"changes"`
	Freeze   bool           `json:"freeze"`
	EditedAt time.Time      `json:"edited_at"`
}

// DraftData is the JSON body of a draft: edits keyed by kind then
// identifier.
type DraftData struct {
	Edits map[string]map[string]Edit `json:"edits"`
}

// Draft is a per-(analysis, user) working set of edits.
type Draft struct {
	ID         string     `json:"id"`
	AnalysisID string     `json:"analysis_id"`
	UserID     string     `json:"user_id"`
	State      DraftState `json:"state"`
	Data       DraftData  `json:"draft_data"`
	VersionID  string     `json:"version_id,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Version is a committed snapshot of an analysis's artifacts.
type Version struct {
	ID                string          `json:"id"`
	AnalysisID        string          `json:"analysis_id"`
	VersionNumber     int             `json:"version_number"`
	VersionType       string          `json:"version_type"` // initial | commit | loaded
	CommitMessage     string          `json:"commit_message,omitempty"`
	CreatedBy         string          `json:"created_by,omitempty"`
	StateSnapshot     json.RawMessage `json:"state_snapshot"`
	UserModifications json.RawMessage `json:"user_modifications,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
}

// GetOrCreateDraft returns the user's working draft for an analysis,
// creating one when none exists. At most one working draft exists per
// (analysis, user).
func (s *Store) GetOrCreateDraft(analysisID, userID string) (*Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if d, err := s.loadWorkingDraft(analysisID, userID); err == nil {
		return d, nil
	} else if err != sql.ErrNoRows {
		return nil, err
	}

	d := &Draft{
		ID:         uuid.NewString(),
		AnalysisID: analysisID,
		UserID:     userID,
		State:      DraftWorking,
		Data:       DraftData{Edits: make(map[string]map[string]Edit)},
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	raw, err := json.Marshal(d.Data)
	if err != nil {
		return nil, err
	}
	if _, err := s.db.Exec(`
		INSERT INTO drafts (id, analysis_id, user_id, state, draft_data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		d.ID, analysisID, userID, string(DraftWorking), string(raw), d.CreatedAt, d.UpdatedAt); err != nil {
		return nil, fmt.Errorf("failed to create draft: %w", err)
	}
	logging.L(logging.CategoryStore).Debugw("draft created", "draft", d.ID, "analysis", analysisID, "user", userID)
	return d, nil
}

func (s *Store) loadWorkingDraft(analysisID, userID string) (*Draft, error) {
	row := s.db.QueryRow(`
		SELECT id, state, draft_data, COALESCE(version_id,''), created_at, updated_at
		FROM drafts WHERE analysis_id = ? AND user_id = ? AND state = 'working'`,
		analysisID, userID)
	return scanDraft(row, analysisID, userID)
}

func (s *Store) loadDraft(draftID string) (*Draft, error) {
	row := s.db.QueryRow(`
		SELECT id, state, draft_data, COALESCE(version_id,''), created_at, updated_at, analysis_id, user_id
		FROM drafts WHERE id = ?`, draftID)
	d := &Draft{}
	var state, raw string
	if err := row.Scan(&d.ID, &state, &raw, &d.VersionID, &d.CreatedAt, &d.UpdatedAt, &d.AnalysisID, &d.UserID); err != nil {
		return nil, err
	}
	d.State = DraftState(state)
	if err := json.Unmarshal([]byte(raw), &d.Data); err != nil {
		return nil, fmt.Errorf("corrupt draft data: %w", err)
	}
	if d.Data.Edits == nil {
		d.Data.Edits = make(map[string]map[string]Edit)
	}
	return d, nil
}

func scanDraft(row *sql.Row, analysisID, userID string) (*Draft, error) {
	d := &Draft{AnalysisID: analysisID, UserID: userID}
	var state, raw string
	if err := row.Scan(&d.ID, &state, &raw, &d.VersionID, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, err
	}
	d.State = DraftState(state)
	if err := json.Unmarshal([]byte(raw), &d.Data); err != nil {
		return nil, fmt.Errorf("corrupt draft data: %w", err)
	}
	if d.Data.Edits == nil {
		d.Data.Edits = make(map[string]map[string]Edit)
	}
	return d, nil
}

// AccumulateEdit merges a change set into the draft. Later edits to the
// same (kind, id) merge field-wise over earlier ones.
func (s *Store) AccumulateEdit(draftID string, kind types.ArtifactKind, id string, changes map[string]any, freeze bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.loadDraft(draftID)
	if err != nil {
		return fmt.Errorf("failed to load draft: %w", err)
	}
	if d.State != DraftWorking {
		return ErrDraftConflict
	}

	kindEdits := d.Data.Edits[string(kind)]
	if kindEdits == nil {
		kindEdits = make(map[string]Edit)
		d.Data.Edits[string(kind)] = kindEdits
	}
	existing := kindEdits[id]
	if existing.Changes == nil {
		existing.Changes = make(map[string]any)
	}
	for k, v := range changes {
		existing.Changes[k] = v
	}
	existing.Freeze = existing.Freeze || freeze
	existing.EditedAt = time.Now()
	kindEdits[id] = existing

	raw, err := json.Marshal(d.Data)
	if err != nil {
		return err
	}
	if _, err := s.db.Exec(`UPDATE drafts SET draft_data = ?, updated_at = ? WHERE id = ?`,
		string(raw), time.Now(), draftID); err != nil {
		return fmt.Errorf("failed to update draft: %w", err)
	}
	return nil
}

// ImpactSeverity grades how widely an edit propagates.
type ImpactSeverity string

const (
	ImpactLow    ImpactSeverity = "low"
	ImpactMedium ImpactSeverity = "medium"
	ImpactHigh   ImpactSeverity = "high"
)

// DependentRef is one artifact that depends on the edited element.
type DependentRef struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
}

// ImpactReport summarizes the blast radius of editing one element.
type ImpactReport struct {
	Kind       string         `json:"kind"`
	ID         string         `json:"id"`
	Dependents []DependentRef `json:"dependents"`
	Count      int            `json:"count"`
	Severity   ImpactSeverity `json:"severity"`
}

// Impact returns the artifacts that depend on (kind, id) through the
// persisted dependency adjacency. Severity: high above five dependents,
// medium for any, low for none.
func (s *Store) Impact(analysisID string, kind types.ArtifactKind, id string) (*ImpactReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT from_kind, from_id FROM element_dependencies
		WHERE analysis_id = ? AND to_kind = ? AND to_id = ?`,
		analysisID, string(kind), id)
	if err != nil {
		return nil, fmt.Errorf("failed to query dependencies: %w", err)
	}
	defer rows.Close()

	report := &ImpactReport{Kind: string(kind), ID: id}
	seen := make(map[DependentRef]struct{})
	for rows.Next() {
		var ref DependentRef
		if err := rows.Scan(&ref.Kind, &ref.ID); err != nil {
			return nil, err
		}
		if _, dup := seen[ref]; dup {
			continue
		}
		seen[ref] = struct{}{}
		report.Dependents = append(report.Dependents, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	report.Count = len(report.Dependents)
	switch {
	case report.Count > 5:
		report.Severity = ImpactHigh
	case report.Count >= 1:
		report.Severity = ImpactMedium
	default:
		report.Severity = ImpactLow
	}
	return report, nil
}

// Commit applies a draft's edits to the base tables and records a new
// version, atomically: either all edits apply and the version exists, or
// none do. Returns the new version id.
func (s *Store) Commit(draftID, commitMessage, userID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.loadDraft(draftID)
	if err != nil {
		return "", fmt.Errorf("failed to load draft: %w", err)
	}
	if d.State != DraftWorking {
		return "", ErrDraftConflict
	}

	tx, err := s.db.Begin()
	if err != nil {
		return "", fmt.Errorf("failed to begin commit: %w", err)
	}
	defer tx.Rollback()

	maxVersion, err := maxVersionNumber(tx, d.AnalysisID)
	if err != nil {
		return "", err
	}

	// First commit against an analysis gets a baseline snapshot so the
	// pre-edit state stays readable at its own version number.
	if maxVersion == 0 {
		baseline, err := snapshotState(tx, d.AnalysisID)
		if err != nil {
			return "", err
		}
		if err := insertVersion(tx, &Version{
			ID:            uuid.NewString(),
			AnalysisID:    d.AnalysisID,
			VersionNumber: 1,
			VersionType:   "initial",
			CreatedBy:     "system",
			StateSnapshot: baseline,
		}); err != nil {
			return "", err
		}
		maxVersion = 1
	}

	// Apply edits to the base artifact rows.
	for kind, edits := range d.Data.Edits {
		for id, edit := range edits {
			if err := applyEdit(tx, d.AnalysisID, kind, id, edit.Changes); err != nil {
				return "", err
			}
		}
	}

	snapshot, err := snapshotState(tx, d.AnalysisID)
	if err != nil {
		return "", err
	}
	mods, err := json.Marshal(d.Data.Edits)
	if err != nil {
		return "", err
	}

	version := &Version{
		ID:                uuid.NewString(),
		AnalysisID:        d.AnalysisID,
		VersionNumber:     maxVersion + 1,
		VersionType:       "commit",
		CommitMessage:     commitMessage,
		CreatedBy:         userID,
		StateSnapshot:     snapshot,
		UserModifications: mods,
	}
	if err := insertVersion(tx, version); err != nil {
		return "", err
	}

	if _, err := tx.Exec(`UPDATE drafts SET state = ?, version_id = ?, updated_at = ? WHERE id = ?`,
		string(DraftCommitted), version.ID, time.Now(), draftID); err != nil {
		return "", fmt.Errorf("failed to finalize draft: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit draft: %w", err)
	}
	logging.L(logging.CategoryStore).Infow("draft committed",
		"draft", draftID, "analysis", d.AnalysisID, "version", version.VersionNumber)
	return version.ID, nil
}

// applyEdit merges a change map into the stored JSON payload of one
// artifact row.
func applyEdit(tx *sql.Tx, analysisID, kind, id string, changes map[string]any) error {
	row := tx.QueryRow(`
		SELECT id, payload FROM artifacts
		WHERE analysis_id = ? AND kind = ? AND (identifier = ? OR (identifier IS NULL AND ? = ''))`,
		analysisID, kind, id, id)
	var surrogate int64
	var payload string
	if err := row.Scan(&surrogate, &payload); err != nil {
		if err == sql.ErrNoRows {
			return fmt.Errorf("edit targets unknown artifact %s/%s", kind, id)
		}
		return err
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(payload), &obj); err != nil {
		return fmt.Errorf("corrupt payload for %s/%s: %w", kind, id, err)
	}
	for k, v := range changes {
		obj[k] = v
	}
	updated, err := json.Marshal(obj)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(`UPDATE artifacts SET payload = ? WHERE id = ?`, string(updated), surrogate); err != nil {
		return fmt.Errorf("failed to apply edit to %s/%s: %w", kind, id, err)
	}
	return nil
}

// snapshotState serializes every artifact of an analysis, keyed by kind
// then identifier.
func snapshotState(tx *sql.Tx, analysisID string) (json.RawMessage, error) {
	rows, err := tx.Query(`
		SELECT kind, COALESCE(identifier,''), payload FROM artifacts
		WHERE analysis_id = ? ORDER BY id`, analysisID)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot state: %w", err)
	}
	defer rows.Close()

	state := make(map[string]map[string]json.RawMessage)
	unkeyed := 0
	for rows.Next() {
		var kind, identifier, payload string
		if err := rows.Scan(&kind, &identifier, &payload); err != nil {
			return nil, err
		}
		if identifier == "" {
			identifier = extractIdentifier([]byte(payload))
		}
		if identifier == "" {
			// Singleton artifacts (mission, process models) have no
			// PREFIX-INT identifier; key them positionally.
			unkeyed++
			identifier = fmt.Sprintf("_%d", unkeyed)
		}
		if state[kind] == nil {
			state[kind] = make(map[string]json.RawMessage)
		}
		state[kind][identifier] = json.RawMessage(payload)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return json.Marshal(state)
}

func maxVersionNumber(tx *sql.Tx, analysisID string) (int, error) {
	var n sql.NullInt64
	if err := tx.QueryRow(`SELECT MAX(version_number) FROM versions WHERE analysis_id = ?`, analysisID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to read version numbers: %w", err)
	}
	return int(n.Int64), nil
}

func insertVersion(tx *sql.Tx, v *Version) error {
	if _, err := tx.Exec(`
		INSERT INTO versions (id, analysis_id, version_number, version_type, commit_message, created_by, state_snapshot, user_modifications)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		v.ID, v.AnalysisID, v.VersionNumber, v.VersionType, v.CommitMessage, v.CreatedBy,
		string(v.StateSnapshot), string(v.UserModifications)); err != nil {
		return fmt.Errorf("failed to insert version: %w", err)
	}
	return nil
}

// FetchVersion loads a version by analysis and number.
func (s *Store) FetchVersion(analysisID string, versionNumber int) (*Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row := s.db.QueryRow(`
		SELECT id, version_number, version_type, COALESCE(commit_message,''), COALESCE(created_by,''),
		       state_snapshot, COALESCE(user_modifications,''), created_at
		FROM versions WHERE analysis_id = ? AND version_number = ?`,
		analysisID, versionNumber)
	v := &Version{AnalysisID: analysisID}
	var snapshot, mods string
	if err := row.Scan(&v.ID, &v.VersionNumber, &v.VersionType, &v.CommitMessage, &v.CreatedBy,
		&snapshot, &mods, &v.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("version %d of analysis %s not found", versionNumber, analysisID)
		}
		return nil, fmt.Errorf("failed to fetch version: %w", err)
	}
	v.StateSnapshot = json.RawMessage(snapshot)
	if mods != "" {
		v.UserModifications = json.RawMessage(mods)
	}
	return v, nil
}

// ArtifactAtVersion reads one artifact's payload as of a committed
// version's snapshot.
func (s *Store) ArtifactAtVersion(analysisID string, versionNumber int, kind types.ArtifactKind, id string) (json.RawMessage, error) {
	v, err := s.FetchVersion(analysisID, versionNumber)
	if err != nil {
		return nil, err
	}
	var state map[string]map[string]json.RawMessage
	if err := json.Unmarshal(v.StateSnapshot, &state); err != nil {
		return nil, fmt.Errorf("corrupt snapshot in version %s: %w", v.ID, err)
	}
	payload, ok := state[string(kind)][id]
	if !ok {
		return nil, fmt.Errorf("artifact %s/%s not present at version %d", kind, id, versionNumber)
	}
	return payload, nil
}

// InsertLoadedVersion records a pre-baked analysis (the demo path) as a
// committed version with version_type = "loaded".
func (s *Store) InsertLoadedVersion(analysisID, createdBy string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return "", fmt.Errorf("failed to begin: %w", err)
	}
	defer tx.Rollback()

	maxVersion, err := maxVersionNumber(tx, analysisID)
	if err != nil {
		return "", err
	}
	snapshot, err := snapshotState(tx, analysisID)
	if err != nil {
		return "", err
	}
	v := &Version{
		ID:            uuid.NewString(),
		AnalysisID:    analysisID,
		VersionNumber: maxVersion + 1,
		VersionType:   "loaded",
		CreatedBy:     createdBy,
		StateSnapshot: snapshot,
	}
	if err := insertVersion(tx, v); err != nil {
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit loaded version: %w", err)
	}
	return v.ID, nil
}
