package sweep

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/japaniel/nottranslated/pkg/suspects"
)

// TitleIndex is the set of document paths (/{locale}/docs/{slug}) that exist
// upstream, kept sorted for prefix lookups.
type TitleIndex struct {
	keys []string
	set  map[string]struct{}
}

// LoadTitleIndex reads an all-titles JSON object; only its keys are used.
func LoadTitleIndex(path string) (*TitleIndex, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	return NewTitleIndex(keys), nil
}

// NewTitleIndex builds an index from document paths.
func NewTitleIndex(keys []string) *TitleIndex {
	idx := &TitleIndex{keys: slices.Clone(keys), set: make(map[string]struct{}, len(keys))}
	sort.Strings(idx.keys)
	for _, k := range keys {
		idx.set[k] = struct{}{}
	}
	return idx
}

// Has reports whether uri is indexed.
func (idx *TitleIndex) Has(uri string) bool {
	_, ok := idx.set[uri]
	return ok
}

// IsLeaf reports whether no indexed document lives below uri.
func (idx *TitleIndex) IsLeaf(uri string) bool {
	prefix := uri + "/"
	i := sort.SearchStrings(idx.keys, prefix)
	return i == len(idx.keys) || !strings.HasPrefix(idx.keys[i], prefix)
}

// LeafnessReport summarizes one locale.
type LeafnessReport struct {
	Locale    string
	Flipped   int
	Unknown   int
	Rewritten bool
}

// UpdateLeafness recomputes the leaf flag of every suspect in the named
// locales (all locales when none are named). Suspects missing from the index
// are logged and left alone; files are rewritten only when a flag changed.
func UpdateLeafness(store *suspects.Store, idx *TitleIndex, locales []string, log *zap.Logger) ([]LeafnessReport, error) {
	if log == nil {
		log = zap.NewNop()
	}
	all, err := store.Locales()
	if err != nil {
		return nil, err
	}
	if len(locales) > 0 {
		for _, code := range locales {
			if !slices.Contains(all, code) {
				return nil, fmt.Errorf("unknown locale %q", code)
			}
		}
		all = locales
	}
	if len(all) == 0 {
		return nil, ErrNoLocales
	}

	var reports []LeafnessReport
	for _, code := range all {
		r := LeafnessReport{Locale: code}
		changed, err := store.Update(code, func(list []suspects.Suspect) ([]suspects.Suspect, error) {
			r.Flipped, r.Unknown = 0, 0
			for i := range list {
				uri := list[i].URI()
				if !idx.Has(uri) {
					r.Unknown++
					log.Warn("Suspect missing from title index", zap.String("uri", uri))
					continue
				}
				if leaf := idx.IsLeaf(uri); leaf != list[i].Leaf {
					log.Info("Leaf flag changed", zap.String("uri", uri), zap.Bool("leaf", leaf))
					list[i].Leaf = leaf
					r.Flipped++
				}
			}
			return list, nil
		})
		if err != nil {
			return reports, fmt.Errorf("update %s: %w", code, err)
		}
		r.Rewritten = changed
		reports = append(reports, r)
	}
	return reports, nil
}
