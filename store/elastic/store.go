// Package elastic provides a checkpoint.Backend over Elasticsearch using
// the official go-elasticsearch client. Each collection maps to an index
// created with the tracking settings and mappings; saves are identity-
// keyed upserts with immediate refresh so a save is visible to the next
// get or search.
package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	elasticsearch "github.com/elastic/go-elasticsearch/v8"

	"github.com/xraph/checkpoint"
)

// Ensure Store implements checkpoint.Backend at compile time.
var _ checkpoint.Backend = (*Store)(nil)

// Store is an Elasticsearch implementation of checkpoint.Backend.
// The caller owns the client lifecycle; Store never closes it.
type Store struct {
	client *elasticsearch.Client
	logger *slog.Logger
}

// Option configures the Store.
type Option func(*Store)

// WithLogger sets the logger for the store.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New creates a new Elasticsearch store around an existing client.
func New(client *elasticsearch.Client, opts ...Option) *Store {
	s := &Store{
		client: client,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EnsureIndex creates the index with tracking settings and mappings if
// it does not exist. Transport failures surface as ErrBackendUnavailable.
func (s *Store) EnsureIndex(ctx context.Context, collection string) error {
	res, err := s.client.Indices.Exists(
		[]string{collection},
		s.client.Indices.Exists.WithContext(ctx),
	)
	if err != nil {
		return unavailable("index exists check", err)
	}
	defer res.Body.Close()

	switch res.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
		// Fall through to create.
	default:
		return unavailable("index exists check", fmt.Errorf("status %d", res.StatusCode))
	}

	created, err := s.client.Indices.Create(
		collection,
		s.client.Indices.Create.WithContext(ctx),
		s.client.Indices.Create.WithBody(strings.NewReader(indexBody)),
	)
	if err != nil {
		return unavailable("index create", err)
	}
	defer created.Body.Close()

	if created.IsError() {
		// A concurrent creator winning the race is not a failure.
		if strings.Contains(created.String(), "resource_already_exists_exception") {
			return nil
		}
		return unavailable("index create", fmt.Errorf("status %d", created.StatusCode))
	}
	s.logger.Debug("tracking index created", slog.String("index", collection))
	return nil
}

// Get retrieves a document by identity. A 404 translates to ErrNotFound.
func (s *Store) Get(ctx context.Context, collection, identity string) (*checkpoint.Document, error) {
	res, err := s.client.Get(collection, identity, s.client.Get.WithContext(ctx))
	if err != nil {
		return nil, unavailable("get", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return nil, checkpoint.ErrNotFound
	}
	if res.IsError() {
		return nil, unavailable("get", fmt.Errorf("status %d", res.StatusCode))
	}

	var envelope struct {
		Source checkpoint.Document `json:"_source"`
	}
	if err := json.NewDecoder(res.Body).Decode(&envelope); err != nil {
		return nil, unavailable("decode get response", err)
	}
	return &envelope.Source, nil
}

// Search translates the query terms into a bool filter of term clauses.
// A missing index yields an empty result, matching the in-process
// backends.
func (s *Store) Search(ctx context.Context, collection string, q checkpoint.Query) ([]*checkpoint.Document, error) {
	body, err := searchBody(q)
	if err != nil {
		return nil, err
	}

	size := q.Size
	if size <= 0 {
		size = 10000
	}
	res, err := s.client.Search(
		s.client.Search.WithContext(ctx),
		s.client.Search.WithIndex(collection),
		s.client.Search.WithBody(bytes.NewReader(body)),
		s.client.Search.WithSize(size),
	)
	if err != nil {
		return nil, unavailable("search", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return []*checkpoint.Document{}, nil
	}
	if res.IsError() {
		return nil, unavailable("search", fmt.Errorf("status %d", res.StatusCode))
	}

	var envelope struct {
		Hits struct {
			Hits []struct {
				Source checkpoint.Document `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&envelope); err != nil {
		return nil, unavailable("decode search response", err)
	}

	docs := make([]*checkpoint.Document, 0, len(envelope.Hits.Hits))
	for i := range envelope.Hits.Hits {
		doc := envelope.Hits.Hits[i].Source
		docs = append(docs, &doc)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Identity < docs[j].Identity })
	return docs, nil
}

// Save upserts the document under identity with immediate refresh.
func (s *Store) Save(ctx context.Context, collection, identity string, doc *checkpoint.Document) error {
	if err := s.EnsureIndex(ctx, collection); err != nil {
		return err
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("checkpoint/elastic: encode document: %w", err)
	}

	res, err := s.client.Index(
		collection,
		bytes.NewReader(raw),
		s.client.Index.WithContext(ctx),
		s.client.Index.WithDocumentID(identity),
		s.client.Index.WithRefresh("true"),
	)
	if err != nil {
		return unavailable("save", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return unavailable("save", fmt.Errorf("status %d", res.StatusCode))
	}
	return nil
}

// Ping checks cluster reachability.
func (s *Store) Ping(ctx context.Context) error {
	res, err := s.client.Ping(s.client.Ping.WithContext(ctx))
	if err != nil {
		return unavailable("ping", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return unavailable("ping", fmt.Errorf("status %d", res.StatusCode))
	}
	return nil
}

// Close is a no-op because the caller owns the client lifecycle.
func (s *Store) Close() error { return nil }

// searchBody builds the Elasticsearch query body for q: a bool filter of
// term clauses, or match_all when no terms are set.
func searchBody(q checkpoint.Query) ([]byte, error) {
	var query any
	if len(q.Terms) == 0 {
		query = map[string]any{"match_all": map[string]any{}}
	} else {
		filters := make([]any, 0, len(q.Terms))
		for field, value := range q.Terms {
			filters = append(filters, map[string]any{
				"term": map[string]any{field: value},
			})
		}
		query = map[string]any{"bool": map[string]any{"filter": filters}}
	}
	return json.Marshal(map[string]any{"query": query})
}

func unavailable(op string, err error) error {
	return fmt.Errorf("checkpoint/elastic: %s: %v: %w", op, err, checkpoint.ErrBackendUnavailable)
}
