package vectorstore

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// chunkIDNamespace derives a stable, content-addressed UUID from an
// arbitrary string id via uuid.NewSHA1 (RFC 4122 v5). Qdrant point ids must
// be either u64 or UUID; spec's chunk id format ("{source}-chunk-{index}",
// §4.1/§4.8) is neither, so every id that isn't already a UUID is mapped
// through this fixed namespace instead. The derivation is deterministic:
// the same string id always produces the same point id, so re-upserting a
// chunk still replaces its prior point.
var chunkIDNamespace = uuid.MustParse("c9c5a9ee-1d3a-4f7b-8c2e-2a6c1f7d8e90")

// payloadIDKey stores the original, spec-format id in the point payload so
// Query can recover it: a UUID-derived point id is one-way and cannot be
// turned back into "{source}-chunk-{index}" on its own.
const payloadIDKey = "_point_id"

// QdrantStore implements Store using Qdrant's gRPC client, adapted from the
// teacher's tenant-scoped internal/vectorstore/qdrant.go: collections are
// now named directly by the caller's collection/namespace string instead
// of being derived from a tenant id, and dimensionality is inferred lazily
// from the first upserted record (§4.4) rather than requiring an explicit
// CreateCollection call up front.
type QdrantStore struct {
	client *qdrant.Client

	mu       sync.Mutex
	ensured  map[string]int // collection -> dimension, once created
}

// NewQdrantStore dials a Qdrant gRPC endpoint. url is "host:port"; a bare
// host assumes Qdrant's default gRPC port 6334.
func NewQdrantStore(url string) (*QdrantStore, error) {
	host, portStr, err := net.SplitHostPort(url)
	if err != nil {
		host = url
		portStr = "6334"
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: invalid port in qdrant url %q: %w", url, err)
	}

	client, err := qdrant.NewClient(&qdrant.Config{Host: host, Port: port})
	if err != nil {
		return nil, fmt.Errorf("%w: create qdrant client: %v", ErrVectorStore, err)
	}
	return &QdrantStore{client: client, ensured: make(map[string]int)}, nil
}

// Close closes the underlying gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

func (s *QdrantStore) ensureCollection(ctx context.Context, collection string, dimension int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if dim, ok := s.ensured[collection]; ok {
		if dim != dimension {
			return fmt.Errorf("%w: collection %q dimension mismatch: have %d, got %d", ErrVectorStore, collection, dim, dimension)
		}
		return nil
	}

	exists, err := s.client.CollectionExists(ctx, collection)
	if err != nil {
		return fmt.Errorf("%w: check collection %q: %v", ErrVectorStore, collection, err)
	}
	if !exists {
		if err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(dimension),
				Distance: qdrant.Distance_Cosine,
			}),
		}); err != nil {
			return fmt.Errorf("%w: create collection %q: %v", ErrVectorStore, collection, err)
		}
	}
	s.ensured[collection] = dimension
	return nil
}

// Upsert lazily ensures collection exists (inferring dimension from the
// first record) then replaces/inserts every record.
func (s *QdrantStore) Upsert(ctx context.Context, collection string, records []VectorRecord) error {
	if len(records) == 0 {
		return nil
	}
	if err := s.ensureCollection(ctx, collection, len(records[0].Embedding)); err != nil {
		return err
	}

	points := make([]*qdrant.PointStruct, len(records))
	for i, rec := range records {
		payload := make(map[string]*qdrant.Value, len(rec.Metadata)+1)
		for k, v := range rec.Metadata {
			payload[k] = toQdrantValue(v)
		}
		payload[payloadIDKey] = qdrant.NewValueString(rec.ID)
		points[i] = &qdrant.PointStruct{
			Id:      pointID(rec.ID),
			Payload: payload,
			Vectors: qdrant.NewVectors(rec.Embedding...),
		}
	}

	if _, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Points:         points,
	}); err != nil {
		return fmt.Errorf("%w: upsert into %q: %v", ErrVectorStore, collection, err)
	}
	return nil
}

// Query searches collection for the topK nearest points to vector,
// optionally constrained by an equality filter conjunction.
func (s *QdrantStore) Query(ctx context.Context, collection string, vector []float32, topK int, filters map[string]string) ([]Match, error) {
	req := &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(topK)),
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if len(filters) > 0 {
		conditions := make([]*qdrant.Condition, 0, len(filters))
		for k, v := range filters {
			conditions = append(conditions, qdrant.NewMatch(k, v))
		}
		req.Filter = &qdrant.Filter{Must: conditions}
	}

	response, err := s.client.Query(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: query %q: %v", ErrVectorStore, collection, err)
	}

	matches := make([]Match, 0, len(response))
	for _, point := range response {
		metadata := make(map[string]any)
		var text, id string
		for k, v := range point.Payload {
			switch k {
			case "text":
				text = v.GetStringValue()
			case payloadIDKey:
				id = v.GetStringValue()
				continue // internal bookkeeping field, not caller metadata
			}
			metadata[k] = v.GetStringValue()
		}
		if id == "" {
			id = pointIDString(point.Id)
		}
		matches = append(matches, Match{
			ID:       id,
			Score:    point.Score,
			Text:     text,
			Metadata: metadata,
		})
	}
	return matches, nil
}

// Delete removes points by id; unknown ids are silently ignored by Qdrant.
func (s *QdrantStore) Delete(ctx context.Context, collection string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	pointIDs := make([]*qdrant.PointId, len(ids))
	for i, id := range ids {
		pointIDs[i] = pointID(id)
	}
	if _, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collection,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Points{
				Points: &qdrant.PointsIdsList{Ids: pointIDs},
			},
		},
	}); err != nil {
		return fmt.Errorf("%w: delete from %q: %v", ErrVectorStore, collection, err)
	}
	return nil
}

// pointID maps an arbitrary string id onto Qdrant's point-id type, which
// only accepts a u64 or a UUID: if id already parses as a UUID it is used
// verbatim (the teacher's chunk ids always were UUIDs, so NewIDUUID alone
// sufficed there); otherwise id is deterministically derived into a UUID
// via chunkIDNamespace, covering spec's "{source}-chunk-{index}" format.
// The original string is separately preserved in the point's payload
// (payloadIDKey) since this derivation cannot be inverted.
func pointID(id string) *qdrant.PointId {
	if _, err := uuid.Parse(id); err == nil {
		return qdrant.NewIDUUID(id)
	}
	return qdrant.NewIDUUID(uuid.NewSHA1(chunkIDNamespace, []byte(id)).String())
}

func pointIDString(id *qdrant.PointId) string {
	if id == nil {
		return ""
	}
	return id.GetUuid()
}

func toQdrantValue(v any) *qdrant.Value {
	switch t := v.(type) {
	case string:
		return qdrant.NewValueString(t)
	case bool:
		return qdrant.NewValueBool(t)
	case int:
		return qdrant.NewValueInt(int64(t))
	case int64:
		return qdrant.NewValueInt(t)
	case float64:
		return qdrant.NewValueDouble(t)
	case float32:
		return qdrant.NewValueDouble(float64(t))
	default:
		return qdrant.NewValueString(fmt.Sprintf("%v", t))
	}
}

var _ Store = (*QdrantStore)(nil)
