package suspects

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/japaniel/nottranslated/pkg/apperrors"
)

// SummaryOptions controls BuildSummary.
type SummaryOptions struct {
	Languages Languages
	// Strict makes a count > inception row a hard failure instead of a warning.
	Strict bool
	Logger *zap.Logger
}

// BuildSummary recomputes summary.json from the locale files. Locales seen
// for the first time get an inception snapshot equal to their current count,
// and inception.json is rewritten when that happens.
func BuildSummary(store *Store, opts SummaryOptions) ([]LocaleSummaryEntry, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	codes, err := store.Locales()
	if err != nil {
		return nil, err
	}
	inception, err := store.Inception()
	if err != nil {
		return nil, err
	}
	baseline := make(map[string]int, len(inception))
	for _, e := range inception {
		baseline[e.Code] = e.Count
	}

	var (
		entries    []LocaleSummaryEntry
		seeded     bool
		violations []error
	)
	for _, code := range codes {
		lang, ok := opts.Languages.Lookup(code)
		if !ok {
			return nil, fmt.Errorf("no language names for locale %q", code)
		}
		list, err := store.Locale(code)
		if err != nil {
			return nil, err
		}
		count := len(Active(list))
		base, ok := baseline[code]
		if !ok {
			base = count
			baseline[code] = count
			inception = append(inception, InceptionEntry{Code: code, Count: count})
			seeded = true
			log.Info("Seeded inception count", zap.String("locale", code), zap.Int("count", count))
		}
		entry := LocaleSummaryEntry{Code: code, Language: lang, Count: count, Inception: base}
		if err := entry.Validate(); err != nil {
			if opts.Strict {
				violations = append(violations, err)
			} else {
				log.Warn("Summary row breaks invariant", zap.String("locale", code), zap.Error(err))
			}
		}
		entries = append(entries, entry)
	}
	if len(violations) > 0 {
		return nil, errors.Join(violations...)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return strings.ToLower(entries[i].Language.English) < strings.ToLower(entries[j].Language.English)
	})

	if seeded {
		if err := store.WriteInception(inception); err != nil {
			return nil, err
		}
	}
	if err := store.WriteSummary(entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// Totals sums count and inception over all rows.
func Totals(entries []LocaleSummaryEntry) (count, inception int) {
	for _, e := range entries {
		count += e.Count
		inception += e.Inception
	}
	return count, inception
}

// IsInvariantViolation reports whether err came from a summary or list invariant.
func IsInvariantViolation(err error) bool {
	return errors.Is(err, apperrors.ErrDataInvariant)
}
