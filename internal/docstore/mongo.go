package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	mongoVersionField = "_version"
	mongoCreatedField = "_created"
)

// Map keys inside documents are usernames, which may contain characters MongoDB
// reserves in field paths.
var (
	mongoKeyEscaper   = strings.NewReplacer("%", "%25", ".", "%2E", "$", "%24")
	mongoKeyUnescaper = strings.NewReplacer("%2E", ".", "%24", "$", "%25", "%")
)

// MongoStore maps collections to MongoDB collections and patches to native update
// operators, so updates are applied server-side in one round trip.
type MongoStore struct {
	db *mongo.Database
}

// NewMongoStore wraps a database handle.
func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{db: db}
}

func (s *MongoStore) Create(ctx context.Context, collection string, data map[string]any) (string, error) {
	id := primitive.NewObjectID().Hex()
	doc := bson.M{
		"_id":             id,
		mongoVersionField: int64(1),
		mongoCreatedField: time.Now().UTC(),
	}
	for k, v := range data {
		doc[k] = escapeValue(v)
	}
	if _, err := s.db.Collection(collection).InsertOne(ctx, doc); err != nil {
		return "", err
	}
	return id, nil
}

func (s *MongoStore) Get(ctx context.Context, collection, id string) (*Document, error) {
	var raw bson.M
	err := s.db.Collection(collection).FindOne(ctx, bson.M{"_id": id}).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return fromBSON(raw)
}

func (s *MongoStore) Update(ctx context.Context, collection, id string, patch *Patch, opts ...UpdateOption) error {
	o := resolveUpdateOptions(opts)

	filter := bson.M{"_id": id}
	if o.ifVersion > 0 {
		filter[mongoVersionField] = o.ifVersion
	}

	coll := s.db.Collection(collection)
	res, err := coll.UpdateOne(ctx, filter, buildMongoUpdate(patch))
	if err != nil {
		return err
	}
	if res.MatchedCount > 0 {
		return nil
	}
	if o.ifVersion == 0 {
		return ErrNotFound
	}

	n, err := coll.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return ErrVersionConflict
}

// buildMongoUpdate translates a patch to update operators. Every update bumps the version.
func buildMongoUpdate(p *Patch) bson.M {
	set := bson.M{}
	unset := bson.M{}
	inc := bson.M{mongoVersionField: int64(1)}
	appendVals := map[string][]any{}
	removeVals := map[string][]any{}

	for _, op := range p.Ops() {
		switch op.Kind {
		case OpSet:
			set[op.Field] = escapeValue(op.Value)
		case OpIncrement:
			prev, _ := inc[op.Field].(int64)
			inc[op.Field] = prev + op.Delta
		case OpSetKey:
			set[op.Field+"."+mongoKeyEscaper.Replace(op.Key)] = escapeValue(op.Value)
		case OpUnsetKey:
			unset[op.Field+"."+mongoKeyEscaper.Replace(op.Key)] = ""
		case OpAppend:
			appendVals[op.Field] = append(appendVals[op.Field], op.Value)
		case OpRemove:
			removeVals[op.Field] = append(removeVals[op.Field], op.Value)
		}
	}

	update := bson.M{"$inc": inc}
	if len(set) > 0 {
		update["$set"] = set
	}
	if len(unset) > 0 {
		update["$unset"] = unset
	}
	if len(appendVals) > 0 {
		addToSet := bson.M{}
		for field, vals := range appendVals {
			addToSet[field] = bson.M{"$each": vals}
		}
		update["$addToSet"] = addToSet
	}
	if len(removeVals) > 0 {
		pull := bson.M{}
		for field, vals := range removeVals {
			pull[field] = bson.M{"$in": vals}
		}
		update["$pull"] = pull
	}
	return update
}

func (s *MongoStore) Delete(ctx context.Context, collection, id string) error {
	res, err := s.db.Collection(collection).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) List(ctx context.Context, collection string) ([]*Document, error) {
	return s.find(ctx, collection, bson.M{})
}

func (s *MongoStore) FindEqual(ctx context.Context, collection, field, value string) ([]*Document, error) {
	return s.find(ctx, collection, bson.M{field: value})
}

func (s *MongoStore) FindIn(ctx context.Context, collection string, ids []string) ([]*Document, error) {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return []*Document{}, nil
	}
	docs, err := s.find(ctx, collection, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	return orderByIDs(docs, ids), nil
}

func (s *MongoStore) find(ctx context.Context, collection string, filter bson.M) ([]*Document, error) {
	opts := options.Find().SetSort(bson.D{{Key: mongoCreatedField, Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.db.Collection(collection).Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var raws []bson.M
	if err := cur.All(ctx, &raws); err != nil {
		return nil, err
	}
	docs := make([]*Document, 0, len(raws))
	for _, raw := range raws {
		doc, err := fromBSON(raw)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.db.Client().Ping(ctx, readpref.Primary())
}

func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.db.Client().Disconnect(ctx)
}

func fromBSON(raw bson.M) (*Document, error) {
	id, ok := raw["_id"].(string)
	if !ok {
		return nil, fmt.Errorf("document id of type %T is not a string", raw["_id"])
	}
	version, err := toInt64(raw[mongoVersionField])
	if err != nil {
		return nil, fmt.Errorf("decode version of %s: %w", id, err)
	}

	data := make(map[string]any, len(raw))
	for k, v := range raw {
		switch k {
		case "_id", mongoVersionField, mongoCreatedField:
			continue
		}
		data[k] = unescapeValue(v)
	}
	return &Document{ID: id, Version: version, Data: data}, nil
}

func escapeValue(v any) any {
	switch m := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(m))
		for k, x := range m {
			out[mongoKeyEscaper.Replace(k)] = escapeValue(x)
		}
		return out
	case map[string]bool:
		out := make(map[string]any, len(m))
		for k, x := range m {
			out[mongoKeyEscaper.Replace(k)] = x
		}
		return out
	case []any:
		out := make([]any, len(m))
		for i, x := range m {
			out[i] = escapeValue(x)
		}
		return out
	case json.Number:
		// Counters must reach MongoDB as numbers for $inc to work on them.
		if i, err := m.Int64(); err == nil {
			return i
		}
		if f, err := m.Float64(); err == nil {
			return f
		}
		return m.String()
	default:
		return v
	}
}

func unescapeValue(v any) any {
	switch m := v.(type) {
	case bson.M:
		out := make(map[string]any, len(m))
		for k, x := range m {
			out[mongoKeyUnescaper.Replace(k)] = unescapeValue(x)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(m))
		for k, x := range m {
			out[mongoKeyUnescaper.Replace(k)] = unescapeValue(x)
		}
		return out
	case bson.D:
		out := make(map[string]any, len(m))
		for _, e := range m {
			out[mongoKeyUnescaper.Replace(e.Key)] = unescapeValue(e.Value)
		}
		return out
	case bson.A:
		out := make([]any, len(m))
		for i, x := range m {
			out[i] = unescapeValue(x)
		}
		return out
	default:
		return v
	}
}
