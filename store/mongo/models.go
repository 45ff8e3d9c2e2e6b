package mongo

import (
	"time"

	"github.com/xraph/checkpoint"
)

// docModel is the BSON shape of a tracking document. Extra fields live
// inline at the top level, matching the flattened wire schema, so term
// filters address them directly.
type docModel struct {
	ID        string         `bson:"_id"`
	Kind      string         `bson:"kind"`
	ParentRef string         `bson:"parent_ref,omitempty"`
	Status    string         `bson:"status,omitempty"`
	CreatedAt time.Time      `bson:"created_at"`
	UpdatedAt time.Time      `bson:"updated_at"`
	Extra     map[string]any `bson:",inline"`
}

func toModel(identity string, doc *checkpoint.Document) *docModel {
	return &docModel{
		ID:        identity,
		Kind:      string(doc.Kind),
		ParentRef: doc.ParentRef,
		Status:    string(doc.Status),
		CreatedAt: doc.CreatedAt.UTC(),
		UpdatedAt: doc.UpdatedAt.UTC(),
		Extra:     doc.Extra,
	}
}

func fromModel(m *docModel) *checkpoint.Document {
	return &checkpoint.Document{
		Entity: checkpoint.Entity{
			// BSON dates carry millisecond precision; timestamps round
			// accordingly.
			CreatedAt: m.CreatedAt.UTC(),
			UpdatedAt: m.UpdatedAt.UTC(),
		},
		Identity:  m.ID,
		Kind:      checkpoint.Kind(m.Kind),
		ParentRef: m.ParentRef,
		Status:    checkpoint.Status(m.Status),
		Extra:     m.Extra,
	}
}
