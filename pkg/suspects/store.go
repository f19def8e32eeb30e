package suspects

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/japaniel/nottranslated/pkg/apperrors"
)

const (
	SummaryFile   = "summary.json"
	InceptionFile = "inception.json"
)

var localeCodeRe = regexp.MustCompile(`^[A-Za-z]{2,3}(-[A-Za-z0-9]{2,8})*$`)

// ValidLocaleCode reports whether code is safe to use as a file name.
func ValidLocaleCode(code string) bool {
	return localeCodeRe.MatchString(code)
}

// Store reads and writes a suspect store root.
//
// Writes to one locale are serialized inside the process and published with
// an atomic rename, so readers never see a partially written file. Separate
// processes writing the same locale race with last-writer-wins.
type Store struct {
	root string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewStore returns a store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{root: dir, locks: make(map[string]*sync.Mutex)}
}

// Root returns the store directory.
func (s *Store) Root() string { return s.root }

func (s *Store) localePath(code string) (string, error) {
	if !ValidLocaleCode(code) {
		return "", apperrors.Validation(fmt.Sprintf("invalid locale code %q", code))
	}
	return filepath.Join(s.root, code+".json"), nil
}

func (s *Store) lockFor(name string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[name]
	if !ok {
		l = &sync.Mutex{}
		s.locks[name] = l
	}
	return l
}

// Locales lists the locale codes that have a suspect file, sorted.
func (s *Store) Locales() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("list store: %w", err)
	}
	var codes []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") || name == SummaryFile || name == InceptionFile {
			continue
		}
		code := strings.TrimSuffix(name, ".json")
		if ValidLocaleCode(code) {
			codes = append(codes, code)
		}
	}
	sort.Strings(codes)
	return codes, nil
}

// Locale loads the suspect list of one locale.
func (s *Store) Locale(code string) ([]Suspect, error) {
	path, err := s.localePath(code)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	return decodeLocale(code, data)
}

// LocaleDigest returns the canonical digest of a locale file.
func (s *Store) LocaleDigest(code string) (string, error) {
	path, err := s.localePath(code)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	return Digest(data)
}

func decodeLocale(code string, data []byte) ([]Suspect, error) {
	if err := ValidateLocaleJSON(data); err != nil {
		return nil, fmt.Errorf("%s.json: %w", code, err)
	}
	var list []Suspect
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("decode %s.json: %w", code, err)
	}
	if err := CheckUnique(code, list); err != nil {
		return nil, err
	}
	return list, nil
}

// Update applies fn to the current list of a locale under the locale's lock
// and writes the result back. The file is left untouched when the result is
// canonically equal to what was read; changed reports whether it was written.
func (s *Store) Update(code string, fn func([]Suspect) ([]Suspect, error)) (changed bool, err error) {
	path, err := s.localePath(code)
	if err != nil {
		return false, err
	}
	l := s.lockFor(code)
	l.Lock()
	defer l.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	before, err := Digest(data)
	if err != nil {
		return false, err
	}
	list, err := decodeLocale(code, data)
	if err != nil {
		return false, err
	}
	next, err := fn(list)
	if err != nil {
		return false, err
	}
	if next == nil {
		next = []Suspect{}
	}
	if err := CheckUnique(code, next); err != nil {
		return false, err
	}
	after, err := DigestList(next)
	if err != nil {
		return false, err
	}
	if before == after {
		return false, nil
	}
	if err := writeJSON(path, next); err != nil {
		return false, err
	}
	return true, nil
}

// WriteLocale replaces a locale file.
func (s *Store) WriteLocale(code string, list []Suspect) error {
	path, err := s.localePath(code)
	if err != nil {
		return err
	}
	if err := CheckUnique(code, list); err != nil {
		return err
	}
	if list == nil {
		list = []Suspect{}
	}
	l := s.lockFor(code)
	l.Lock()
	defer l.Unlock()
	return writeJSON(path, list)
}

// Summary loads summary.json.
func (s *Store) Summary() ([]LocaleSummaryEntry, error) {
	var out []LocaleSummaryEntry
	if err := readJSON(filepath.Join(s.root, SummaryFile), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// WriteSummary replaces summary.json.
func (s *Store) WriteSummary(entries []LocaleSummaryEntry) error {
	l := s.lockFor(SummaryFile)
	l.Lock()
	defer l.Unlock()
	return writeJSON(filepath.Join(s.root, SummaryFile), entries)
}

// Inception loads inception.json. A missing file is an empty snapshot list.
func (s *Store) Inception() ([]InceptionEntry, error) {
	var out []InceptionEntry
	err := readJSON(filepath.Join(s.root, InceptionFile), &out)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return out, err
}

// WriteInception replaces inception.json.
func (s *Store) WriteInception(entries []InceptionEntry) error {
	l := s.lockFor(InceptionFile)
	l.Lock()
	defer l.Unlock()
	return writeJSON(filepath.Join(s.root, InceptionFile), entries)
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return nil
}

// writeJSON writes v with two-space indentation via a temp file and rename.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", filepath.Base(path), err)
	}
	tmpName := tmp.Name()
	defer func() {
		// no-op once renamed
		_ = os.Remove(tmpName)
	}()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", filepath.Base(path), err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename %s: %w", filepath.Base(path), err)
	}
	return nil
}
