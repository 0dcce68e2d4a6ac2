package store

import (
	"encoding/json"
	"fmt"
)

// Older analysis databases predate the artifacts.identifier column; those
// rows carry the identifier inside the payload's metadata field instead.
// The gateway hides this from callers: reads fall back to the metadata
// field, and writes against a legacy schema stash the identifier there.

// legacyIdentifier is the metadata key used by pre-identifier-column rows.
const legacyIdentifierKey = "identifier"

// detectLegacySchema checks whether the artifacts table carries the
// identifier column. Databases created by this code always do; imported
// ones may not.
func (s *Store) detectLegacySchema() error {
	rows, err := s.db.Query(`PRAGMA table_info(artifacts)`)
	if err != nil {
		return fmt.Errorf("failed to inspect artifacts schema: %w", err)
	}
	defer rows.Close()

	hasIdentifier := false
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dflt any
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return err
		}
		if name == "identifier" {
			hasIdentifier = true
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	s.legacyArtifacts = !hasIdentifier
	return nil
}

// stashIdentifier embeds the identifier into a payload's metadata field.
func stashIdentifier(payload []byte, identifier string) ([]byte, error) {
	var obj map[string]any
	if err := json.Unmarshal(payload, &obj); err != nil {
		return nil, fmt.Errorf("cannot stash identifier in non-object payload: %w", err)
	}
	meta, _ := obj["metadata"].(map[string]any)
	if meta == nil {
		meta = make(map[string]any)
	}
	meta[legacyIdentifierKey] = identifier
	obj["metadata"] = meta
	return json.Marshal(obj)
}

// extractIdentifier pulls an identifier out of a payload's metadata field.
func extractIdentifier(payload []byte) string {
	var obj struct {
		Identifier string `json:"identifier"`
		Metadata   struct {
			Identifier string `json:"identifier"`
		} `json:"metadata"`
	}
	if err := json.Unmarshal(payload, &obj); err != nil {
		return ""
	}
	if obj.Identifier != "" {
		return obj.Identifier
	}
	return obj.Metadata.Identifier
}
