package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"time"

	"github.com/aevon-lab/tradepulse/internal/core/aggregation"
	"github.com/goccy/go-json"
)

// KeyPrefix starts every cache key.
const KeyPrefix = "tradepulse"

// KeyBuilder derives a deterministic key from an identity and its parameters.
// Parameters are hashed sorted by name; list values keep their order.
type KeyBuilder struct {
	identity string
	params   map[string]any
}

// NewKey starts a key for the given operation identity, e.g. "report.peak_hours".
func NewKey(identity string) *KeyBuilder {
	return &KeyBuilder{identity: identity, params: make(map[string]any)}
}

// Str adds a string parameter.
func (k *KeyBuilder) Str(name, value string) *KeyBuilder {
	k.params[name] = value
	return k
}

// Int adds an integer parameter.
func (k *KeyBuilder) Int(name string, value int) *KeyBuilder {
	k.params[name] = value
	return k
}

// Strings adds an ordered list parameter.
func (k *KeyBuilder) Strings(name string, values []string) *KeyBuilder {
	cp := make([]string, len(values))
	copy(cp, values)
	k.params[name] = cp
	return k
}

// Window adds the window bounds and granularity.
func (k *KeyBuilder) Window(w aggregation.Window) *KeyBuilder {
	k.params["window.start"] = w.Start.UTC().Format(time.RFC3339Nano)
	k.params["window.end"] = w.End.UTC().Format(time.RFC3339Nano)
	k.params["window.granularity"] = string(w.Granularity)
	return k
}

// Metric adds a metric definition: its full shape (filters and ranking
// included) and the fingerprint of the definition it was loaded from.
func (k *KeyBuilder) Metric(spec aggregation.MetricSpec) *KeyBuilder {
	k.params["metric"] = spec
	k.params["metric.fingerprint"] = spec.Fingerprint
	return k
}

// String renders the key as tradepulse:<identity>:<hash>.
func (k *KeyBuilder) String() string {
	names := make([]string, 0, len(k.params))
	for name := range k.params {
		names = append(names, name)
	}
	sort.Strings(names)

	pairs := make([][2]any, 0, len(names))
	for _, name := range names {
		pairs = append(pairs, [2]any{name, k.params[name]})
	}

	// Parameters are plain values and metric definitions; Marshal cannot fail.
	data, _ := json.Marshal(pairs)
	sum := sha256.Sum256(data)
	return KeyPrefix + ":" + k.identity + ":" + hex.EncodeToString(sum[:16])
}

// identityOf extracts the identity segment of a key built by KeyBuilder.
func identityOf(key string) string {
	rest := strings.TrimPrefix(key, KeyPrefix+":")
	if i := strings.LastIndexByte(rest, ':'); i > 0 {
		return rest[:i]
	}
	return "unknown"
}
