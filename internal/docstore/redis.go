package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	redisFieldData    = "data"
	redisFieldVersion = "version"
)

// RedisStore keeps each document in a hash {prefix}:{collection}:doc:{id} holding the JSON
// body and the version. A sorted set {prefix}:{collection}:index scored by creation time
// lists the collection.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisStore creates a store on an existing client.
func NewRedisStore(rdb *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "agora"
	}
	return &RedisStore{rdb: rdb, prefix: prefix}
}

func (s *RedisStore) docKey(collection, id string) string {
	return fmt.Sprintf("%s:%s:doc:%s", s.prefix, collection, id)
}

func (s *RedisStore) indexKey(collection string) string {
	return fmt.Sprintf("%s:%s:index", s.prefix, collection)
}

func (s *RedisStore) Create(ctx context.Context, collection string, data map[string]any) (string, error) {
	body, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("encode document: %w", err)
	}

	id := uuid.NewString()
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.docKey(collection, id), redisFieldData, body, redisFieldVersion, 1)
		pipe.ZAdd(ctx, s.indexKey(collection), redis.Z{
			Score:  float64(time.Now().UnixMicro()),
			Member: id,
		})
		return nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *RedisStore) Get(ctx context.Context, collection, id string) (*Document, error) {
	vals, err := s.rdb.HMGet(ctx, s.docKey(collection, id), redisFieldData, redisFieldVersion).Result()
	if err != nil {
		return nil, err
	}
	return decodeRedisDocument(id, vals)
}

func decodeRedisDocument(id string, vals []any) (*Document, error) {
	if len(vals) != 2 || vals[0] == nil {
		return nil, ErrNotFound
	}
	body, _ := vals[0].(string)
	data, err := decodeData([]byte(body))
	if err != nil {
		return nil, fmt.Errorf("decode document %s: %w", id, err)
	}
	var version int64 = 1
	if v, ok := vals[1].(string); ok {
		if version, err = strconv.ParseInt(v, 10, 64); err != nil {
			return nil, fmt.Errorf("decode version of %s: %w", id, err)
		}
	}
	return &Document{ID: id, Version: version, Data: data}, nil
}

// patchScript applies a patch inside Redis, so field operations from concurrent writers
// never overwrite each other. It returns the new version, -1 for a missing document and -2
// when the IfVersion check fails.
//
// Lua's JSON codec cannot tell an empty array from an empty object, so the script drops
// top-level fields left holding an empty table. Readers treat absent and empty alike.
var patchScript = redis.NewScript(`
local vals = redis.call('HMGET', KEYS[1], 'data', 'version')
if not vals[1] then
  return -1
end
local version = tonumber(vals[2]) or 1
local want = tonumber(ARGV[1])
if want > 0 and version ~= want then
  return -2
end

local doc = cjson.decode(vals[1])
local ops = cjson.decode(ARGV[2])
for _, op in ipairs(ops) do
  local f = op.f
  if op.k == 'set' then
    doc[f] = op.v
  elseif op.k == 'incr' then
    local cur = doc[f]
    if cur == nil then
      cur = 0
    elseif type(cur) == 'string' then
      cur = tonumber(cur)
    end
    if type(cur) ~= 'number' then
      return redis.error_reply('increment ' .. f .. ': non-numeric value')
    end
    doc[f] = cur + op.d
  elseif op.k == 'setkey' or op.k == 'unsetkey' then
    local m = doc[f]
    if m == nil then
      m = {}
    end
    if type(m) ~= 'table' or m[1] ~= nil then
      return redis.error_reply(op.k .. ' ' .. f .. ': not a map')
    end
    if op.k == 'setkey' then
      m[op.key] = op.v
    else
      m[op.key] = nil
    end
    doc[f] = m
  elseif op.k == 'append' or op.k == 'remove' then
    local arr = doc[f]
    if arr == nil then
      arr = {}
    end
    if type(arr) ~= 'table' then
      return redis.error_reply(op.k .. ' ' .. f .. ': not an array')
    end
    local out, found = {}, false
    for _, v in ipairs(arr) do
      if v == op.v then
        found = true
        if op.k == 'append' then
          table.insert(out, v)
        end
      else
        table.insert(out, v)
      end
    end
    if op.k == 'append' and not found then
      table.insert(out, op.v)
    end
    doc[f] = out
  else
    return redis.error_reply('unknown patch op ' .. tostring(op.k))
  end
end

for k, v in pairs(doc) do
  if type(v) == 'table' and next(v) == nil then
    doc[k] = nil
  end
end

redis.call('HSET', KEYS[1], 'data', cjson.encode(doc), 'version', version + 1)
return version + 1
`)

// redisOp is the wire form of one patch operation handed to patchScript.
type redisOp struct {
	Kind  string `json:"k"`
	Field string `json:"f"`
	Key   string `json:"key,omitempty"`
	Value any    `json:"v"`
	Delta int64  `json:"d"`
}

var redisOpNames = map[OpKind]string{
	OpSet:       "set",
	OpIncrement: "incr",
	OpSetKey:    "setkey",
	OpUnsetKey:  "unsetkey",
	OpAppend:    "append",
	OpRemove:    "remove",
}

func encodeRedisOps(p *Patch) ([]byte, error) {
	ops := make([]redisOp, 0, p.Len())
	for _, op := range p.Ops() {
		name, ok := redisOpNames[op.Kind]
		if !ok {
			return nil, fmt.Errorf("unknown patch op %d", op.Kind)
		}
		ops = append(ops, redisOp{Kind: name, Field: op.Field, Key: op.Key, Value: op.Value, Delta: op.Delta})
	}
	return json.Marshal(ops)
}

// Update applies the patch atomically on the server with patchScript. With IfVersion the
// version check runs in the same script, so a conditional update never retries here.
func (s *RedisStore) Update(ctx context.Context, collection, id string, patch *Patch, opts ...UpdateOption) error {
	o := resolveUpdateOptions(opts)
	ops, err := encodeRedisOps(patch)
	if err != nil {
		return err
	}

	res, err := patchScript.Run(ctx, s.rdb, []string{s.docKey(collection, id)}, o.ifVersion, ops).Int64()
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	switch res {
	case -1:
		return ErrNotFound
	case -2:
		return ErrVersionConflict
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, collection, id string) error {
	var del *redis.IntCmd
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, s.docKey(collection, id))
		pipe.ZRem(ctx, s.indexKey(collection), id)
		return nil
	})
	if err != nil {
		return err
	}
	if del.Val() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *RedisStore) List(ctx context.Context, collection string) ([]*Document, error) {
	ids, err := s.rdb.ZRange(ctx, s.indexKey(collection), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	return s.fetch(ctx, collection, ids)
}

// FindEqual scans the collection; Redis hashes carry no secondary index on body fields.
func (s *RedisStore) FindEqual(ctx context.Context, collection, field, value string) ([]*Document, error) {
	docs, err := s.List(ctx, collection)
	if err != nil {
		return nil, err
	}
	out := make([]*Document, 0, len(docs))
	for _, d := range docs {
		if matchesEqual(d.Data, field, value) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *RedisStore) FindIn(ctx context.Context, collection string, ids []string) ([]*Document, error) {
	return s.fetch(ctx, collection, uniqueIDs(ids))
}

// fetch reads many documents in a single pipeline round trip, skipping missing ones.
func (s *RedisStore) fetch(ctx context.Context, collection string, ids []string) ([]*Document, error) {
	if len(ids) == 0 {
		return []*Document{}, nil
	}

	cmds := make([]*redis.SliceCmd, len(ids))
	_, err := s.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HMGet(ctx, s.docKey(collection, id), redisFieldData, redisFieldVersion)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	docs := make([]*Document, 0, len(ids))
	for i, cmd := range cmds {
		doc, err := decodeRedisDocument(ids[i], cmd.Val())
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
