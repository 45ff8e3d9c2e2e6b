package bunstore

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/xraph/checkpoint"
)

// docModel is the row shape of a tracking document. Extra fields are
// serialized into the extra JSON column; fixed attributes get their own
// columns so they are filterable in SQL.
type docModel struct {
	bun.BaseModel `bun:"table:checkpoint_documents"`

	Collection string    `bun:"collection,pk"`
	Identity   string    `bun:"identity,pk"`
	Kind       string    `bun:"kind,notnull"`
	ParentRef  string    `bun:"parent_ref,notnull,default:''"`
	Status     string    `bun:"status,notnull,default:''"`
	Extra      []byte    `bun:"extra,notnull"`
	CreatedAt  time.Time `bun:"created_at,notnull"`
	UpdatedAt  time.Time `bun:"updated_at,notnull"`
}

func toModel(collection, identity string, doc *checkpoint.Document) (*docModel, error) {
	extra := doc.Extra
	if extra == nil {
		extra = map[string]any{}
	}
	raw, err := json.Marshal(extra)
	if err != nil {
		return nil, fmt.Errorf("checkpoint/bunstore: encode extra fields: %w", err)
	}
	return &docModel{
		Collection: collection,
		Identity:   identity,
		Kind:       string(doc.Kind),
		ParentRef:  doc.ParentRef,
		Status:     string(doc.Status),
		Extra:      raw,
		CreatedAt:  doc.CreatedAt.UTC(),
		UpdatedAt:  doc.UpdatedAt.UTC(),
	}, nil
}

func fromModel(m *docModel) (*checkpoint.Document, error) {
	var extra map[string]any
	if len(m.Extra) > 0 {
		if err := json.Unmarshal(m.Extra, &extra); err != nil {
			return nil, fmt.Errorf("checkpoint/bunstore: decode extra fields of %s: %w", m.Identity, err)
		}
	}
	if len(extra) == 0 {
		extra = nil
	}
	return &checkpoint.Document{
		Entity: checkpoint.Entity{
			CreatedAt: m.CreatedAt.UTC(),
			UpdatedAt: m.UpdatedAt.UTC(),
		},
		Identity:  m.Identity,
		Kind:      checkpoint.Kind(m.Kind),
		ParentRef: m.ParentRef,
		Status:    checkpoint.Status(m.Status),
		Extra:     extra,
	}, nil
}
