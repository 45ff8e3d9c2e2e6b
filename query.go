package checkpoint

// Query is a structured filter over a collection. Every term must match
// exactly against a fixed attribute or a flattened extra field. Backends
// translate terms into their native query form (Elasticsearch term
// clauses, bson filters, SQL predicates) but the observable result is
// identical across backends.
type Query struct {
	// Terms maps field name to required value. A nil or empty map
	// matches every document in the collection.
	Terms map[string]any

	// Size caps the number of results. Zero means no cap.
	Size int
}

// ByParent returns a query matching documents owned by the given parent
// identity.
func ByParent(parentRef string) Query {
	return Query{Terms: map[string]any{"parent_ref": parentRef}}
}

// ByRoot returns a query matching documents whose ownership chain roots
// at the named job. Tasks and steps record the root job name in their
// extra fields.
func ByRoot(jobName string) Query {
	return Query{Terms: map[string]any{"job": jobName}}
}

// ByStatus returns a query matching documents bearing the given status.
func ByStatus(s Status) Query {
	return Query{Terms: map[string]any{"status": string(s)}}
}

// Matches reports whether doc satisfies every term of the query.
// In-process backends use this directly; remote backends delegate the
// same semantics to the server.
func (q Query) Matches(doc *Document) bool {
	for name, want := range q.Terms {
		got, ok := doc.Field(name)
		if !ok || !termEquals(got, want) {
			return false
		}
	}
	return true
}

// termEquals compares a stored field value against a query term. Numeric
// values are compared by magnitude regardless of Go type, because a
// document read back through JSON carries float64 where the writer held
// int or int64. Container-valued fields (logs, config) never match a
// term.
func termEquals(got, want any) bool {
	if g, ok := asNumber(got); ok {
		w, ok := asNumber(want)
		return ok && g == w
	}
	switch got.(type) {
	case nil, string, bool:
		return got == want
	}
	return false
}

func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
