// Package cache persists prebuilt graphs and k-mer indices on disk so
// repeated typing runs skip reconstruction. Entries are gob files keyed by a
// deterministic fingerprint of the construction arguments, with a sidecar
// recording the source file's fingerprint.
package cache

import (
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/philloidin/prohlatype/internal/graph"
	"github.com/philloidin/prohlatype/internal/index"
)

// DefaultDir is the cache root used when no directory is configured.
const DefaultDir = ".cache"

// FileFingerprint identifies a source file's state.
type FileFingerprint struct {
	Size    int64
	ModTime time.Time
}

// Fingerprint stats a file.
func Fingerprint(path string) (FileFingerprint, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileFingerprint{}, fmt.Errorf("stat %s: %w", path, err)
	}
	return FileFingerprint{Size: info.Size(), ModTime: info.ModTime()}, nil
}

// GraphKey derives the cache key for a graph from its construction
// arguments. Equal arguments always produce the same key.
func GraphKey(alignmentPath string, opts graph.Options) string {
	specific := append([]string(nil), opts.Specific...)
	without := append([]string(nil), opts.Without...)
	sort.Strings(specific)
	sort.Strings(without)

	canon := strings.Join([]string{
		filepath.Base(alignmentPath),
		strconv.Itoa(opts.NumAlt),
		opts.Regex,
		strings.Join(specific, ","),
		strings.Join(without, ","),
		strconv.FormatBool(opts.JoinSameSeq),
	}, "\x00")

	sum := sha256.Sum256([]byte(canon))
	return hex.EncodeToString(sum[:16])
}

// IndexKey derives the cache key for a k-mer index over a cached graph.
func IndexKey(graphKey string, k int) string {
	sum := sha256.Sum256([]byte(graphKey + "\x00k=" + strconv.Itoa(k)))
	return hex.EncodeToString(sum[:16])
}

// Store manages the cache directory tree:
//
//	<dir>/graphs/<key>.gob        (serialized graph)
//	<dir>/graphs/<key>.gob.meta   (source file fingerprint)
//	<dir>/indices/<key>.gob
//	<dir>/indices/<key>.gob.meta
type Store struct {
	dir string
}

// New creates a store rooted at dir.
func New(dir string) *Store {
	if dir == "" {
		dir = DefaultDir
	}
	return &Store{dir: dir}
}

func (s *Store) graphPath(key string) string {
	return filepath.Join(s.dir, "graphs", key+".gob")
}

func (s *Store) indexPath(key string) string {
	return filepath.Join(s.dir, "indices", key+".gob")
}

// LoadGraph returns the cached graph for a key if it is present and its
// source fingerprint still matches.
func (s *Store) LoadGraph(key string, src FileFingerprint) (*graph.Graph, bool) {
	path := s.graphPath(key)
	if !validMeta(path+".meta", src) {
		return nil, false
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, false
	}
	defer f.Close()

	var snap graph.Snapshot
	if err := gob.NewDecoder(f).Decode(&snap); err != nil {
		return nil, false
	}
	g, err := graph.FromSnapshot(&snap)
	if err != nil {
		return nil, false
	}
	return g, true
}

// WriteGraph serializes a graph under a key.
func (s *Store) WriteGraph(key string, src FileFingerprint, g *graph.Graph) error {
	path := s.graphPath(key)
	if err := writeGob(path, g.Snapshot()); err != nil {
		return err
	}
	return writeMeta(path+".meta", src)
}

// indexSnapshot is the gob form of a k-mer index.
type indexSnapshot struct {
	K         int
	Positions map[string][]int
}

// LoadIndex returns the cached index for a key if it is present and its
// source fingerprint still matches.
func (s *Store) LoadIndex(key string, src FileFingerprint) (*index.Index, bool) {
	path := s.indexPath(key)
	if !validMeta(path+".meta", src) {
		return nil, false
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, false
	}
	defer f.Close()

	var snap indexSnapshot
	if err := gob.NewDecoder(f).Decode(&snap); err != nil {
		return nil, false
	}
	return index.Restore(snap.K, snap.Positions), true
}

// WriteIndex serializes an index under a key.
func (s *Store) WriteIndex(key string, src FileFingerprint, ix *index.Index) error {
	path := s.indexPath(key)
	if err := writeGob(path, indexSnapshot{K: ix.K, Positions: ix.Positions()}); err != nil {
		return err
	}
	return writeMeta(path+".meta", src)
}

// Clear removes a cached entry and its sidecar.
func (s *Store) Clear(key string) {
	for _, path := range []string{s.graphPath(key), s.indexPath(key)} {
		os.Remove(path)
		os.Remove(path + ".meta")
	}
}

func writeGob(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create cache entry: %w", err)
	}
	if err := gob.NewEncoder(f).Encode(v); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("encode cache entry: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close cache entry: %w", err)
	}
	return nil
}

func writeMeta(path string, src FileFingerprint) error {
	lines := []string{
		"src_size=" + strconv.FormatInt(src.Size, 10),
		"src_modtime=" + src.ModTime.UTC().Format(time.RFC3339Nano),
		"created_at=" + time.Now().UTC().Format(time.RFC3339),
		"",
	}
	return os.WriteFile(path, []byte(strings.Join(lines, "\n")), 0644)
}

func validMeta(path string, src FileFingerprint) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}

	meta := make(map[string]string)
	for _, line := range strings.Split(string(data), "\n") {
		if k, v, ok := strings.Cut(line, "="); ok {
			meta[k] = v
		}
	}

	return meta["src_size"] == strconv.FormatInt(src.Size, 10) &&
		meta["src_modtime"] == src.ModTime.UTC().Format(time.RFC3339Nano)
}
