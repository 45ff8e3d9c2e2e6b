package elastic

// indexBody holds the settings and mappings applied to every tracking
// index. Fixed attributes and back-references are keyword fields so term
// filters match exactly; timestamps are dates; the log trail is full
// text. Stored job config values are keyword, unindexed.
const indexBody = `{
  "settings": {
    "index": {
      "number_of_shards": "1",
      "auto_expand_replicas": "0-1"
    }
  },
  "mappings": {
    "properties": {
      "identity":        {"type": "keyword"},
      "kind":            {"type": "keyword"},
      "parent_ref":      {"type": "keyword"},
      "status":          {"type": "keyword"},
      "job":             {"type": "keyword"},
      "task":            {"type": "keyword"},
      "step":            {"type": "keyword"},
      "name":            {"type": "keyword"},
      "description":     {"type": "text"},
      "ordinal":         {"type": "integer"},
      "dry_run":         {"type": "boolean"},
      "items_processed": {"type": "long"},
      "marker":          {"type": "keyword"},
      "logs":            {"type": "text"},
      "created_at":      {"type": "date"},
      "updated_at":      {"type": "date"}
    },
    "dynamic_templates": [
      {
        "configuration": {
          "path_match": "config.*",
          "mapping": {"type": "keyword", "index": false}
        }
      }
    ]
  }
}`
