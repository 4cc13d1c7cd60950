package topo

import (
	"fmt"
	"time"
)

// UnknownOperationID stamps entities registered outside any open
// operation context.
const UnknownOperationID = "unknown"

// GeneratorLink is a lineage edge recording which ancestor entity and
// which operation produced an entity. Lineage forms a DAG rooted at
// entities created with no parents (primitive creation).
type GeneratorLink struct {
	ParentUUID string `json:"parentUuid"`
	Operation  string `json:"operation"`
}

// StableID is the persistent identity record for one topological entity
// occurrence.
//
// INVARIANT: UUID is globally unique and immutable for the life of the
// id. Alive, Signature, and the node's display index are the only
// fields that change after creation, and only through the tracker.
// Everything else is provenance fixed at mint time.
type StableID struct {
	UUID                string          `json:"uuid"`
	Type                EntityType      `json:"entityType"`
	FeatureID           string          `json:"featureId"`
	SourceOperationID   string          `json:"sourceOperationId"`
	SourceOperationName string          `json:"sourceOperationName,omitempty"`
	GeneratorLinks      []GeneratorLink `json:"generatorLinks,omitempty"`
	Label               string          `json:"label,omitempty"`
	Signature           *Signature      `json:"geometricSignature,omitempty"`
	Alive               bool            `json:"isAlive"`
	LastRegenAt         time.Time       `json:"lastRegenAt"`
}

// NewStableID mints a fresh identity record.
//
// featureID and label are NFC normalized. GeneratorLinks are copied so
// the caller's slice cannot mutate the record afterwards. The signature
// is copied for the same reason; nil means the kernel supplied none.
func NewStableID(uuid string, typ EntityType, featureID string, opID, opName string, links []GeneratorLink, sig *Signature, label string) (StableID, error) {
	if uuid == "" {
		return StableID{}, fmt.Errorf("stable id requires a uuid")
	}
	if !typ.Valid() {
		return StableID{}, fmt.Errorf("stable id requires a valid entity type, got %q", typ)
	}
	if featureID == "" {
		return StableID{}, fmt.Errorf("stable id requires a feature id")
	}
	if opID == "" {
		opID = UnknownOperationID
	}

	var linksCopy []GeneratorLink
	if len(links) > 0 {
		linksCopy = make([]GeneratorLink, len(links))
		copy(linksCopy, links)
	}

	var sigCopy *Signature
	if sig != nil {
		s := *sig
		sigCopy = &s
	}

	return StableID{
		UUID:                uuid,
		Type:                typ,
		FeatureID:           NormalizeKey(featureID),
		SourceOperationID:   opID,
		SourceOperationName: NormalizeKey(opName),
		GeneratorLinks:      linksCopy,
		Label:               NormalizeKey(label),
		Signature:           sigCopy,
		Alive:               true,
		LastRegenAt:         time.Now().UTC(),
	}, nil
}
