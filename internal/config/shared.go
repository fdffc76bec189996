package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/BurntSushi/toml"
)

// SharedConfigFile holds the current Config snapshot and backs it with a
// TOML file on disk. Readers take a cheap copy via GetLatest; the single
// writer (the Controller's event loop) replaces the whole snapshot via Set.
// The lock is held only for the duration of GetLatest/Set, never across I/O.
type SharedConfigFile struct {
	mu   sync.Mutex
	path string
	cur  Config
}

// NewSharedConfigFile loads path and wraps it for snapshot-and-swap access.
func NewSharedConfigFile(path string) (*SharedConfigFile, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	return &SharedConfigFile{path: path, cur: cfg}, nil
}

// Path returns the backing file path, for callers that need to re-read it
// independently (the config-poll timer).
func (s *SharedConfigFile) Path() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.path
}

// GetLatest returns the current snapshot. The returned value is safe to
// retain: later calls to Set never mutate it.
func (s *SharedConfigFile) GetLatest() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur
}

// Set replaces the current snapshot and persists it to disk. Persistence
// failures are returned but do not roll back the in-memory snapshot — the
// loop's view of config must never lag what it just decided.
func (s *SharedConfigFile) Set(cfg Config) error {
	s.mu.Lock()
	s.cur = cfg
	path := s.path
	s.mu.Unlock()

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	defer f.Close()

	cfg.ModeName = ModeName(cfg.Mode)
	cfg.ModeWinch = cfg.Mode.Winch
	cfg.Vision.BorderRectValues = [4]float32(cfg.Vision.BorderRect)
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return fmt.Errorf("encoding config file: %w", err)
	}
	return nil
}

// MergePatch merges a freeform JSON object leaf-wise onto base and returns
// the resulting Config. Unknown keys are ignored by json.Unmarshal's normal
// struct-tag matching; this is intentionally lenient since a partial patch
// from a client is expected to name only the fields it wants to change.
func MergePatch(base Config, patch []byte) (Config, error) {
	// Round-trip base through JSON so the patch is merged onto its JSON
	// representation rather than its TOML one: JSON is what UpdateConfig
	// messages carry on the wire.
	baseJSON, err := json.Marshal(base)
	if err != nil {
		return Config{}, fmt.Errorf("marshal base config: %w", err)
	}

	merged, err := jsonMergePatch(baseJSON, patch)
	if err != nil {
		return Config{}, fmt.Errorf("merge patch: %w", err)
	}

	var out Config
	if err := json.Unmarshal(merged, &out); err != nil {
		return Config{}, fmt.Errorf("unmarshal merged config: %w", err)
	}
	out.postDecode()
	return out, nil
}

// jsonMergePatch implements RFC 7386 merge-patch semantics: object members
// present in patch overwrite or recurse into the corresponding member of
// base; a null value deletes the member; everything else (arrays, scalars)
// replaces the base value wholesale.
func jsonMergePatch(base, patch []byte) ([]byte, error) {
	var patchVal interface{}
	if err := json.Unmarshal(patch, &patchVal); err != nil {
		return nil, err
	}

	patchObj, ok := patchVal.(map[string]interface{})
	if !ok {
		// A non-object patch replaces the document entirely.
		return patch, nil
	}

	var baseVal interface{}
	if err := json.Unmarshal(base, &baseVal); err != nil {
		return nil, err
	}
	baseObj, ok := baseVal.(map[string]interface{})
	if !ok {
		baseObj = map[string]interface{}{}
	}

	merged := mergeObjects(baseObj, patchObj)
	return json.Marshal(merged)
}

func mergeObjects(base, patch map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(base))
	for k, v := range base {
		out[k] = v
	}

	for k, pv := range patch {
		if pv == nil {
			delete(out, k)
			continue
		}

		pvObj, pvIsObj := pv.(map[string]interface{})
		bvObj, bvIsObj := out[k].(map[string]interface{})
		if pvIsObj && bvIsObj {
			out[k] = mergeObjects(bvObj, pvObj)
		} else {
			out[k] = pv
		}
	}
	return out
}
