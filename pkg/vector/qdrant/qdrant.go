// Package qdrant provides a Qdrant vector driver over gRPC.
package qdrant

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/papercomputeco/insurag/pkg/entity"
	"github.com/papercomputeco/insurag/pkg/vector"
)

const (
	// DefaultCollection is the Qdrant collection holding every entity vector.
	DefaultCollection = "insurag"

	payloadCollection = "collection"
	payloadEntityID   = "entity_id"
	payloadVersion    = "version"
	payloadContent    = "content"
)

// pointNamespace derives stable point ids from (collection, entity id).
var pointNamespace = uuid.MustParse("4b0c7f5e-8f0f-4c55-9f0a-6f1e2b3c4d5e")

// PointID is the Qdrant point id of an entity vector. Qdrant only accepts
// integers or UUIDs, so the key is hashed into a UUIDv5.
func PointID(c entity.Collection, id string) string {
	return uuid.NewSHA1(pointNamespace, []byte(string(c)+"/"+id)).String()
}

// Config holds configuration for the Qdrant driver.
type Config struct {
	// Addr is the gRPC address, e.g. "localhost:6334".
	Addr string

	// Collection defaults to DefaultCollection.
	Collection string

	// Dimensions is the embedding size used when creating the collection.
	Dimensions uint
}

// Driver implements vector.Driver on a single Qdrant collection. Entity
// collections are a keyword payload field every search filters on.
type Driver struct {
	conn        *grpc.ClientConn
	points      pb.PointsClient
	collections pb.CollectionsClient
	collection  string
	logger      *slog.Logger
}

var _ vector.Driver = (*Driver)(nil)

// NewDriver dials Qdrant and ensures the collection exists.
func NewDriver(ctx context.Context, c Config, logger *slog.Logger) (*Driver, error) {
	if c.Addr == "" {
		return nil, fmt.Errorf("qdrant address is required")
	}
	if c.Dimensions == 0 {
		return nil, fmt.Errorf("qdrant embedding dimensions cannot be 0, must be configured")
	}

	conn, err := grpc.NewClient(c.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("%w: dial qdrant %s: %w", vector.ErrConnection, c.Addr, err)
	}

	d := &Driver{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		collection:  c.Collection,
		logger:      logger,
	}
	if d.collection == "" {
		d.collection = DefaultCollection
	}

	if err := d.ensureCollection(ctx, c.Dimensions); err != nil {
		conn.Close()
		return nil, err
	}

	logger.Info("connected to Qdrant", "addr", c.Addr, "collection", d.collection)
	return d, nil
}

func (d *Driver) ensureCollection(ctx context.Context, dims uint) error {
	list, err := d.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("%w: list collections: %w", vector.ErrConnection, err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == d.collection {
			return nil
		}
	}

	_, err = d.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: d.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(dims),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("create collection %s: %w", d.collection, err)
	}

	wait := true
	_, err = d.points.CreateFieldIndex(ctx, &pb.CreateFieldIndexCollection{
		CollectionName: d.collection,
		Wait:           &wait,
		FieldName:      payloadCollection,
		FieldType:      pb.FieldType_FieldTypeKeyword.Enum(),
	})
	if err != nil {
		return fmt.Errorf("index %s payload: %w", payloadCollection, err)
	}
	return nil
}

// Upsert stores entity vectors as points keyed by PointID.
func (d *Driver) Upsert(ctx context.Context, docs []vector.Document) error {
	if len(docs) == 0 {
		return nil
	}

	points := make([]*pb.PointStruct, len(docs))
	for i, doc := range docs {
		points[i] = &pb.PointStruct{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Uuid{Uuid: PointID(doc.Collection, doc.ID)},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{Data: doc.Embedding},
				},
			},
			Payload: map[string]*pb.Value{
				payloadCollection: {Kind: &pb.Value_StringValue{StringValue: string(doc.Collection)}},
				payloadEntityID:   {Kind: &pb.Value_StringValue{StringValue: doc.ID}},
				payloadVersion:    {Kind: &pb.Value_IntegerValue{IntegerValue: doc.Version}},
				payloadContent:    {Kind: &pb.Value_StringValue{StringValue: doc.Content}},
			},
		}
	}

	wait := true
	_, err := d.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: d.collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("upsert %d points: %w", len(docs), err)
	}

	d.logger.Debug("upserted points to qdrant", "count", len(docs))
	return nil
}

// Search runs a filtered k-NN search restricted to the given collections.
func (d *Driver) Search(ctx context.Context, embedding []float32, topK int, collections ...entity.Collection) ([]vector.QueryResult, error) {
	if topK <= 0 {
		return []vector.QueryResult{}, nil
	}

	names := make([]string, 0, len(collections))
	for _, c := range vector.ResolveCollections(collections) {
		names = append(names, string(c))
	}

	resp, err := d.points.Search(ctx, &pb.SearchPoints{
		CollectionName: d.collection,
		Vector:         embedding,
		Limit:          uint64(topK),
		Filter:         &pb.Filter{Must: []*pb.Condition{fieldIn(payloadCollection, names)}},
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	results := make([]vector.QueryResult, 0, len(resp.GetResult()))
	for _, r := range resp.GetResult() {
		results = append(results, vector.QueryResult{
			Document: documentFromPayload(r.GetPayload()),
			Score:    vector.Clamp(float64(r.GetScore())),
		})
	}
	return vector.SortResults(results, topK), nil
}

// Get retrieves points by entity id.
func (d *Driver) Get(ctx context.Context, c entity.Collection, ids []string) ([]vector.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	resp, err := d.points.Get(ctx, &pb.GetPoints{
		CollectionName: d.collection,
		Ids:            pointIDs(c, ids),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
		WithVectors:    &pb.WithVectorsSelector{SelectorOptions: &pb.WithVectorsSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, fmt.Errorf("get points: %w", err)
	}

	docs := make([]vector.Document, 0, len(resp.GetResult()))
	for _, p := range resp.GetResult() {
		doc := documentFromPayload(p.GetPayload())
		doc.Embedding = p.GetVectors().GetVector().GetData()
		docs = append(docs, doc)
	}
	return docs, nil
}

// Delete removes points by entity id.
func (d *Driver) Delete(ctx context.Context, c entity.Collection, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	wait := true
	_, err := d.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: d.collection,
		Wait:           &wait,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Points{
				Points: &pb.PointsIdsList{Ids: pointIDs(c, ids)},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("delete %d points: %w", len(ids), err)
	}

	d.logger.Debug("deleted points from qdrant", "collection", c, "count", len(ids))
	return nil
}

// Close closes the underlying gRPC connection.
func (d *Driver) Close() error {
	return d.conn.Close()
}

func pointIDs(c entity.Collection, ids []string) []*pb.PointId {
	out := make([]*pb.PointId, len(ids))
	for i, id := range ids {
		out[i] = &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: PointID(c, id)}}
	}
	return out
}

func documentFromPayload(payload map[string]*pb.Value) vector.Document {
	return vector.Document{
		Collection: entity.Collection(payload[payloadCollection].GetStringValue()),
		ID:         payload[payloadEntityID].GetStringValue(),
		Version:    payload[payloadVersion].GetIntegerValue(),
		Content:    payload[payloadContent].GetStringValue(),
	}
}

func fieldIn(key string, values []string) *pb.Condition {
	return &pb.Condition{
		ConditionOneOf: &pb.Condition_Field{
			Field: &pb.FieldCondition{
				Key: key,
				Match: &pb.Match{
					MatchValue: &pb.Match_Keywords{Keywords: &pb.RepeatedStrings{Strings: values}},
				},
			},
		},
	}
}
