package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pinecone-io/go-pinecone/v3/pinecone"
	"google.golang.org/protobuf/types/known/structpb"
)

var _ VectorStore = (*PineconeStore)(nil)

// PineconeStore keeps chunk vectors in a Pinecone index, one namespace per document.
type PineconeStore struct {
	apiKey    string
	indexName string
	logger    *slog.Logger

	mu     sync.Mutex
	client *pinecone.Client
	host   string
}

// NewPineconeStore creates a store for the named index. Nothing is contacted
// until Init.
func NewPineconeStore(apiKey, indexName string) *PineconeStore {
	return &PineconeStore{apiKey: apiKey, indexName: indexName, logger: slog.Default()}
}

// Init resolves the index host. After the first success it returns
// immediately; a failed attempt leaves the store uninitialized.
func (s *PineconeStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.host != "" {
		return nil
	}
	if s.apiKey == "" || s.indexName == "" {
		return fmt.Errorf("%w: PINECONE_API_KEY and PINECONE_INDEX are required", ErrNotConfigured)
	}

	pc, err := pinecone.NewClient(pinecone.NewClientParams{ApiKey: s.apiKey})
	if err != nil {
		return fmt.Errorf("creating pinecone client: %w", err)
	}
	idx, err := pc.DescribeIndex(ctx, s.indexName)
	if err != nil {
		return fmt.Errorf("describing index %q: %w", s.indexName, err)
	}

	s.client, s.host = pc, idx.Host
	s.logger.Info("pinecone index ready", "index", s.indexName, "host", idx.Host)
	return nil
}

// Close is a no-op; index connections are closed after each call.
func (s *PineconeStore) Close() error { return nil }

func (s *PineconeStore) conn(namespace string) (*pinecone.IndexConnection, error) {
	s.mu.Lock()
	pc, host := s.client, s.host
	s.mu.Unlock()

	if pc == nil {
		return nil, ErrNotInitialized
	}
	c, err := pc.Index(pinecone.NewIndexConnParams{Host: host, Namespace: namespace})
	if err != nil {
		return nil, fmt.Errorf("connecting to index %q: %w", s.indexName, err)
	}
	return c, nil
}

// Upsert sends records in batches of UpsertBatchSize, one after another.
func (s *PineconeStore) Upsert(ctx context.Context, namespace string, records []Record) error {
	c, err := s.conn(namespace)
	if err != nil {
		return err
	}
	defer c.Close()

	return forEachBatch(records, UpsertBatchSize, func(batch []Record) error {
		vecs := make([]*pinecone.Vector, len(batch))
		for i, r := range batch {
			md, err := metadataToStruct(r.Metadata)
			if err != nil {
				return fmt.Errorf("encoding metadata for %s: %w", r.ID, err)
			}
			values := r.Values
			vecs[i] = &pinecone.Vector{Id: r.ID, Values: &values, Metadata: md}
		}
		if _, err := c.UpsertVectors(ctx, vecs); err != nil {
			return fmt.Errorf("upserting vectors: %w", err)
		}
		return nil
	})
}

// Query returns the topK nearest vectors in namespace with their metadata.
func (s *PineconeStore) Query(ctx context.Context, namespace string, vector []float32, topK int) ([]Match, error) {
	if topK <= 0 {
		return nil, nil
	}
	c, err := s.conn(namespace)
	if err != nil {
		return nil, err
	}
	defer c.Close()

	resp, err := c.QueryByVectorValues(ctx, &pinecone.QueryByVectorValuesRequest{
		Vector:          vector,
		TopK:            uint32(topK),
		IncludeMetadata: true,
	})
	if err != nil {
		return nil, fmt.Errorf("querying namespace %q: %w", namespace, err)
	}

	matches := make([]Match, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		if m == nil || m.Vector == nil {
			continue
		}
		matches = append(matches, Match{
			ID:       m.Vector.Id,
			Metadata: metadataFromStruct(m.Vector.Metadata),
			Score:    m.Score,
		})
	}
	sortByScore(matches)
	return matches, nil
}

func metadataToStruct(md Metadata) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"text":       md.Text,
		"page":       md.Page,
		"chunkIndex": md.ChunkIndex,
	})
}

func metadataFromStruct(s *structpb.Struct) Metadata {
	if s == nil {
		return Metadata{}
	}
	f := s.GetFields()
	return Metadata{
		Text:       f["text"].GetStringValue(),
		Page:       int(f["page"].GetNumberValue()),
		ChunkIndex: int(f["chunkIndex"].GetNumberValue()),
	}
}
