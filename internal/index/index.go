// Package index maintains the vector index of tool descriptions and
// answers similarity searches against it.
package index

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/toolscout/toolscout/internal/embedding"
	"github.com/toolscout/toolscout/internal/tools"
)

var (
	// ErrSearchTimedOut means the engine reported a timeout; the partial
	// result set is discarded rather than silently accepted
	ErrSearchTimedOut = errors.New("tool search timed out")
	// ErrSearchTerminatedEarly means the engine stopped collecting hits
	// before finishing
	ErrSearchTerminatedEarly = errors.New("tool search terminated early")
)

// rebuildConcurrency bounds parallel embedding calls during a rebuild
const rebuildConcurrency = 4

// Embedder produces fixed-dimension vectors for index documents and queries
type Embedder interface {
	Embed(ctx context.Context, text string, mode embedding.Mode) ([]float32, error)
	Dimensions() int
}

// Index is the searchable vector index of tool descriptions. Search is safe
// for concurrent use; Rebuild is not and must be serialized by the caller,
// normally as a startup maintenance phase.
type Index struct {
	es       *elasticsearch.Client
	embedder Embedder
	name     string
}

// New creates an index handle over the named Elasticsearch index
func New(es *elasticsearch.Client, embedder Embedder, name string) *Index {
	return &Index{es: es, embedder: embedder, name: name}
}

// toolDocument is the stored shape of one indexed tool
type toolDocument struct {
	Embedding   []float32 `json:"embedding"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	InputSchema string    `json:"input_schema"`
}

// Rebuild replaces the index contents with entries for the given tools:
// delete, recreate, embed and upsert every descriptor. Writes wait for
// visibility so a search issued right after Rebuild sees every entry.
func (x *Index) Rebuild(ctx context.Context, descs []tools.Descriptor) error {
	if err := x.deleteIndex(ctx); err != nil {
		return err
	}
	if err := x.createIndex(ctx); err != nil {
		return err
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(rebuildConcurrency)
	for _, d := range descs {
		d := d
		g.Go(func() error {
			return x.indexTool(gCtx, d)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	log.Info().Str("index", x.name).Int("tools", len(descs)).Msg("tool index rebuilt")
	return nil
}

func (x *Index) deleteIndex(ctx context.Context) error {
	res, err := x.es.Indices.Delete(
		[]string{x.name},
		x.es.Indices.Delete.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("delete index %q: %w", x.name, err)
	}
	defer res.Body.Close()

	// A missing index is a normal outcome of a previous deletion
	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("delete index %q: %s", x.name, bodySnippet(res))
	}
	return nil
}

func (x *Index) createIndex(ctx context.Context) error {
	mapping := map[string]interface{}{
		"mappings": map[string]interface{}{
			"properties": map[string]interface{}{
				"embedding": map[string]interface{}{
					"type":       "dense_vector",
					"dims":       x.embedder.Dimensions(),
					"index":      true,
					"similarity": "cosine",
				},
				"name":         map[string]interface{}{"type": "keyword"},
				"description":  map[string]interface{}{"type": "text"},
				"input_schema": map[string]interface{}{"type": "keyword", "index": false},
			},
		},
	}
	body, err := json.Marshal(mapping)
	if err != nil {
		return fmt.Errorf("marshal index mapping: %w", err)
	}

	res, err := x.es.Indices.Create(
		x.name,
		x.es.Indices.Create.WithContext(ctx),
		x.es.Indices.Create.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return fmt.Errorf("create index %q: %w", x.name, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		snippet := bodySnippet(res)
		// Racing a previous partial run is benign
		if strings.Contains(snippet, "resource_already_exists_exception") {
			return nil
		}
		return fmt.Errorf("create index %q: %s", x.name, snippet)
	}
	return nil
}

func (x *Index) indexTool(ctx context.Context, d tools.Descriptor) error {
	text := buildEmbeddingText(d)
	vector, err := x.embedder.Embed(ctx, text, embedding.ModeDocument)
	if err != nil {
		return fmt.Errorf("embed tool %q: %w", d.Name, err)
	}

	schemaJSON, err := json.Marshal(d.InputSchema)
	if err != nil {
		return fmt.Errorf("marshal input schema for %q: %w", d.Name, err)
	}

	doc, err := json.Marshal(toolDocument{
		Embedding:   vector,
		Name:        d.Name,
		Description: d.Description,
		InputSchema: string(schemaJSON),
	})
	if err != nil {
		return fmt.Errorf("marshal document for %q: %w", d.Name, err)
	}

	res, err := x.es.Index(
		x.name,
		bytes.NewReader(doc),
		x.es.Index.WithContext(ctx),
		x.es.Index.WithDocumentID(d.Name),
		// Read-after-write: the entry must be visible to the next search
		x.es.Index.WithRefresh("wait_for"),
	)
	if err != nil {
		return fmt.Errorf("index tool %q: %w", d.Name, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("index tool %q: %s", d.Name, bodySnippet(res))
	}

	log.Debug().Str("index", x.name).Str("tool", d.Name).Msg("indexed tool")
	return nil
}

type searchResponse struct {
	TimedOut        bool `json:"timed_out"`
	TerminatedEarly bool `json:"terminated_early"`
	Hits            struct {
		Hits []struct {
			Score  float64      `json:"_score"`
			Source toolDocument `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// Search embeds the query and returns descriptors of tools scoring at or
// above minScore, best first, at most maxResults of them. Zero hits is a
// normal outcome; a timed-out or early-terminated search is not.
func (x *Index) Search(ctx context.Context, query string, maxResults int, minScore float64) ([]tools.Descriptor, error) {
	vector, err := x.embedder.Embed(ctx, query, embedding.ModeQuery)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	body, err := json.Marshal(map[string]interface{}{
		"knn": map[string]interface{}{
			"field":          "embedding",
			"query_vector":   vector,
			"k":              maxResults,
			"num_candidates": maxResults * 5,
		},
		"min_score": minScore,
		"size":      maxResults,
		"_source":   []string{"name", "description", "input_schema"},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal search body: %w", err)
	}

	opts := []func(*esapi.SearchRequest){
		x.es.Search.WithContext(ctx),
		x.es.Search.WithIndex(x.name),
		x.es.Search.WithBody(bytes.NewReader(body)),
	}
	res, err := x.es.Search(opts...)
	if err != nil {
		return nil, fmt.Errorf("search index %q: %w", x.name, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("search index %q: %s", x.name, bodySnippet(res))
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	if parsed.TimedOut {
		return nil, ErrSearchTimedOut
	}
	if parsed.TerminatedEarly {
		return nil, ErrSearchTerminatedEarly
	}

	results := make([]tools.Descriptor, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		var schema map[string]interface{}
		if hit.Source.InputSchema != "" {
			if err := json.Unmarshal([]byte(hit.Source.InputSchema), &schema); err != nil {
				return nil, fmt.Errorf("decode stored schema for %q: %w", hit.Source.Name, err)
			}
		}
		results = append(results, tools.Descriptor{
			Name:        hit.Source.Name,
			Description: hit.Source.Description,
			InputSchema: schema,
		})
	}

	log.Debug().
		Str("index", x.name).
		Int("hits", len(results)).
		Float64("min_score", minScore).
		Msg("tool search")
	return results, nil
}

// buildEmbeddingText produces the text that represents a tool in vector
// space: its name and description, plus one line per documented parameter
func buildEmbeddingText(d tools.Descriptor) string {
	var sb strings.Builder
	sb.WriteString(d.Name)
	sb.WriteString(": ")
	sb.WriteString(d.Description)

	props, _ := d.InputSchema["properties"].(map[string]interface{})
	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		prop, _ := props[name].(map[string]interface{})
		desc, _ := prop["description"].(string)
		if desc == "" {
			continue
		}
		sb.WriteString("\n")
		sb.WriteString(name)
		sb.WriteString(": ")
		sb.WriteString(desc)
	}
	return sb.String()
}

// bodySnippet reads a short prefix of the response body for error messages
func bodySnippet(res *esapi.Response) string {
	data, err := io.ReadAll(io.LimitReader(res.Body, 512))
	if err != nil || len(data) == 0 {
		return res.Status()
	}
	return res.Status() + ": " + string(data)
}
