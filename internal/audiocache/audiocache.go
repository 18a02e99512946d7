// Package audiocache stores and recovers generated audio+alignment payloads
// keyed by scene, beat, language and speaker.
//
// Scene and beat identifiers are regenerated on every story import, so a
// naive key lookup would miss everything after an export/import round trip.
// Find therefore runs a ladder of increasingly permissive strategies: exact
// key match, position-based recovery (the same beat index with identical
// line text), and a last-resort scan for the literal beat id regardless of
// scene. Each cache key embeds the beat's position and a hash of the line
// text, so positional recovery needs no access to the superseded story data
// and cannot resurrect a different scene's audio that merely shares a beat
// index.
//
// The cache is an explicit object with an injected persistence collaborator:
// the key index is loaded on construction, every write goes straight through
// to the store. Entries are immutable once written — superseding audio means
// writing a new key.
package audiocache

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"

	"lukechampine.com/blake3"

	"github.com/sversen/novella/pkg/speech"
	"github.com/sversen/novella/pkg/store"
)

// keyPrefix marks cache-entry keys within the shared key-value store.
const keyPrefix = "audio"

// Strategy identifies which ladder rung produced a cache hit.
type Strategy string

const (
	// StrategyExact is a direct scene+beat+language+speaker match.
	StrategyExact Strategy = "exact"

	// StrategyPosition recovered an entry written under superseded ids by
	// matching the beat's position within its scene.
	StrategyPosition Strategy = "position"

	// StrategyBeatID found the literal beat id in a key regardless of
	// scene identity.
	StrategyBeatID Strategy = "beat-id"

	// StrategyMiss means no rung matched.
	StrategyMiss Strategy = "miss"
)

// Entry is one persisted generation result. Audio may be inlined or held as
// a URL into external blob storage; Alignment is the provider's raw payload.
type Entry struct {
	Audio     []byte               `json:"audio,omitempty"`
	AudioURL  string               `json:"audio_url,omitempty"`
	MIMEType  string               `json:"mime_type,omitempty"`
	Alignment *speech.RawAlignment `json:"alignment,omitempty"`
}

// Query describes the line whose audio is being looked up.
type Query struct {
	// SceneID and BeatID are the current (possibly remapped) ids.
	SceneID string
	BeatID  string

	// BeatIndex is the beat's position within its scene. Zero for
	// unstructured scene content.
	BeatIndex int

	// Speaker and Language filter every ladder rung.
	Speaker  string
	Language string

	// Text is the line's current text. The position rung only accepts
	// entries whose persisted content hash matches it, so remapped ids
	// recover exactly this line's audio and nothing else.
	Text string
}

// Cache looks up and records generated audio. Safe for concurrent use.
type Cache struct {
	mu     sync.RWMutex
	keys   []string
	kv     store.KV
	logger *slog.Logger
}

// New builds a Cache over kv, loading the existing key index. Values are
// fetched lazily on lookup; only the key enumeration is held in memory.
func New(ctx context.Context, kv store.KV, logger *slog.Logger) (*Cache, error) {
	if logger == nil {
		logger = slog.Default()
	}
	all, err := kv.Keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("audiocache: load key index: %w", err)
	}

	keys := make([]string, 0, len(all))
	for _, k := range all {
		if _, ok := parseKey(k); ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	logger.Debug("audio cache initialised", "entries", len(keys))
	return &Cache{keys: keys, kv: kv, logger: logger}, nil
}

// Key builds the persisted key for a generation. The trailing content hash
// keeps keys unique per text revision: re-authoring a line produces a new
// key instead of overwriting the old entry.
func Key(q Query) string {
	return strings.Join([]string{
		keyPrefix,
		sanitize(q.SceneID),
		sanitize(q.BeatID),
		strconv.Itoa(q.BeatIndex),
		sanitize(q.Language),
		sanitize(q.Speaker),
		textHash(q.Text),
	}, "|")
}

// textHash derives the content-hash key segment for a line's text.
func textHash(text string) string {
	sum := blake3.Sum256([]byte(text))
	return hex.EncodeToString(sum[:8])
}

// parsedKey is the decomposed form of a cache key.
type parsedKey struct {
	sceneID   string
	beatID    string
	beatIndex int
	language  string
	speaker   string
	textHash  string
}

// parseKey splits a stored key into its segments. Returns false for keys
// that are not cache entries (other tenants of the shared store).
func parseKey(key string) (parsedKey, bool) {
	parts := strings.Split(key, "|")
	if len(parts) != 7 || parts[0] != keyPrefix {
		return parsedKey{}, false
	}
	idx, err := strconv.Atoi(parts[3])
	if err != nil {
		return parsedKey{}, false
	}
	return parsedKey{
		sceneID:   parts[1],
		beatID:    parts[2],
		beatIndex: idx,
		language:  parts[4],
		speaker:   parts[5],
		textHash:  parts[6],
	}, true
}

// sanitize strips the key separator from a segment value.
func sanitize(s string) string {
	return strings.ReplaceAll(s, "|", "_")
}

// Record persists a generation result under key and adds it to the index.
func (c *Cache) Record(ctx context.Context, key string, entry Entry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("audiocache: marshal entry: %w", err)
	}
	if err := c.kv.Put(ctx, key, payload); err != nil {
		return fmt.Errorf("audiocache: persist entry: %w", err)
	}

	c.mu.Lock()
	i := sort.SearchStrings(c.keys, key)
	if i == len(c.keys) || c.keys[i] != key {
		c.keys = append(c.keys, "")
		copy(c.keys[i+1:], c.keys[i:])
		c.keys[i] = key
	}
	c.mu.Unlock()
	return nil
}

// Find runs the lookup ladder for q. A nil entry with [StrategyMiss] means
// cache miss; the caller falls back to fresh generation. Store read errors
// are returned as errors, not misses, so transient backend failures are not
// papered over with a pointless regeneration.
func (c *Cache) Find(ctx context.Context, q Query) (*Entry, Strategy, error) {
	c.mu.RLock()
	keys := make([]string, len(c.keys))
	copy(keys, c.keys)
	c.mu.RUnlock()

	queryHash := textHash(q.Text)

	type rung struct {
		strategy Strategy
		match    func(parsedKey) bool
	}
	ladder := []rung{
		{StrategyExact, func(k parsedKey) bool {
			return k.sceneID == sanitize(q.SceneID) && k.beatID == sanitize(q.BeatID) &&
				k.language == sanitize(q.Language) && k.speaker == sanitize(q.Speaker)
		}},
		// Position recovery has no stable scene id to pin to (ids churn on
		// import), so the content hash stands in for scene identity: only an
		// entry whose text matches the queried line can be recovered here.
		{StrategyPosition, func(k parsedKey) bool {
			return k.beatIndex == q.BeatIndex && k.textHash == queryHash &&
				k.language == sanitize(q.Language) && k.speaker == sanitize(q.Speaker)
		}},
		{StrategyBeatID, func(k parsedKey) bool {
			return strings.Contains(k.beatID, sanitize(q.BeatID)) &&
				k.language == sanitize(q.Language) && k.speaker == sanitize(q.Speaker)
		}},
	}

	for _, r := range ladder {
		for _, key := range keys {
			parsed, ok := parseKey(key)
			if !ok || !r.match(parsed) {
				continue
			}
			entry, err := c.load(ctx, key)
			if err != nil {
				return nil, StrategyMiss, err
			}
			if r.strategy != StrategyExact {
				c.logger.Debug("audio cache recovered entry",
					"strategy", string(r.strategy),
					"key", key,
					"scene", q.SceneID,
					"beat", q.BeatID,
				)
			}
			return entry, r.strategy, nil
		}
	}
	return nil, StrategyMiss, nil
}

// load fetches and decodes one entry.
func (c *Cache) load(ctx context.Context, key string) (*Entry, error) {
	payload, err := c.kv.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("audiocache: read %q: %w", key, err)
	}
	var entry Entry
	if err := json.Unmarshal(payload, &entry); err != nil {
		return nil, fmt.Errorf("audiocache: decode %q: %w", key, err)
	}
	return &entry, nil
}

// Len returns the number of indexed entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.keys)
}
