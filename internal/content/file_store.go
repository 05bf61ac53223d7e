package content

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"gopkg.in/yaml.v3"
)

// FileStore implements Store over a content directory.
// Every top-level directory is a collection; every supported file below it
// is an entry. Supported formats:
//
//	.json        JSON object
//	.yaml/.yml   YAML mapping
//	.md/.mdx     YAML frontmatter between "---" fences, body kept under "body"
//
// The entry ID is the path relative to the collection directory without the
// extension; "index" files take the name of their directory.
//
// Content is loaded once, on first access.
type FileStore struct {
	fs billy.Filesystem

	loadOnce    sync.Once
	loadErr     error
	entries     map[Key]*Entry
	order       map[string][]string
	collections []string
}

// NewFileStore creates a store reading from fs. Use osfs.New(dir) for a
// directory on disk or memfs.New() in tests.
func NewFileStore(fs billy.Filesystem) *FileStore {
	return &FileStore{fs: fs}
}

// Collections implements Store.
func (s *FileStore) Collections(ctx context.Context) ([]string, error) {
	if err := s.ensureLoaded(); err != nil {
		return nil, err
	}
	out := make([]string, len(s.collections))
	copy(out, s.collections)
	return out, nil
}

// ListEntries implements Store.
func (s *FileStore) ListEntries(ctx context.Context, collection string) ([]*Entry, error) {
	if err := s.ensureLoaded(); err != nil {
		return nil, err
	}
	ids, ok := s.order[collection]
	if !ok {
		return nil, fmt.Errorf("list %q: %w", collection, ErrUnknownCollection)
	}
	out := make([]*Entry, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.entries[Key{Collection: collection, ID: id}])
	}
	return out, nil
}

// GetEntry implements Store.
func (s *FileStore) GetEntry(ctx context.Context, collection, id string) (*Entry, error) {
	if err := s.ensureLoaded(); err != nil {
		return nil, err
	}
	return s.entries[Key{Collection: collection, ID: id}], nil
}

func (s *FileStore) ensureLoaded() error {
	s.loadOnce.Do(func() {
		s.loadErr = s.load()
	})
	return s.loadErr
}

func (s *FileStore) load() error {
	s.entries = make(map[Key]*Entry)
	s.order = make(map[string][]string)

	infos, err := s.fs.ReadDir("/")
	if err != nil {
		return fmt.Errorf("read content root: %w", err)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name() < infos[j].Name() })

	for _, info := range infos {
		if !info.IsDir() || strings.HasPrefix(info.Name(), ".") {
			continue
		}
		collection := info.Name()
		s.collections = append(s.collections, collection)
		s.order[collection] = []string{}
		if err := s.loadDir(collection, collection); err != nil {
			return err
		}
	}
	return nil
}

func (s *FileStore) loadDir(collection, dir string) error {
	infos, err := s.fs.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read %s: %w", dir, err)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name() < infos[j].Name() })

	for _, info := range infos {
		name := info.Name()
		if strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") {
			continue
		}
		p := path.Join(dir, name)
		if info.IsDir() {
			if err := s.loadDir(collection, p); err != nil {
				return err
			}
			continue
		}
		ext := path.Ext(name)
		if !isContentFile(ext) {
			continue
		}
		raw, err := util.ReadFile(s.fs, p)
		if err != nil {
			return fmt.Errorf("read %s: %w", p, err)
		}
		data, err := parseContentFile(ext, raw)
		if err != nil {
			return fmt.Errorf("parse %s: %w", p, err)
		}
		id := entryID(collection, p, ext)
		k := Key{Collection: collection, ID: id}
		if _, dup := s.entries[k]; dup {
			return fmt.Errorf("duplicate entry %s (from %s)", k, p)
		}
		s.entries[k] = &Entry{Collection: collection, ID: id, Data: data}
		s.order[collection] = append(s.order[collection], id)
	}
	return nil
}

func isContentFile(ext string) bool {
	switch ext {
	case ".json", ".yaml", ".yml", ".md", ".mdx":
		return true
	}
	return false
}

// entryID derives the id from a file path: "blog/2024/post.md" -> "2024/post",
// "blog/guide/index.md" -> "guide".
func entryID(collection, p, ext string) string {
	rel := strings.TrimPrefix(p, collection+"/")
	rel = strings.TrimSuffix(rel, ext)
	if rel == "index" {
		return "index"
	}
	return strings.TrimSuffix(rel, "/index")
}

func parseContentFile(ext string, raw []byte) (map[string]any, error) {
	switch ext {
	case ".json":
		var data map[string]any
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, err
		}
		return data, nil
	case ".yaml", ".yml":
		return decodeYAML(raw)
	default:
		front, body := splitFrontmatter(raw)
		data, err := decodeYAML(front)
		if err != nil {
			return nil, err
		}
		if body := strings.TrimSpace(string(body)); body != "" {
			data["body"] = body
		}
		return data, nil
	}
}

var fence = []byte("---")

// splitFrontmatter separates a leading "---" fenced YAML block from the body.
func splitFrontmatter(raw []byte) (front, body []byte) {
	raw = bytes.TrimPrefix(raw, []byte("\ufeff"))
	if !bytes.HasPrefix(raw, fence) {
		return nil, raw
	}
	rest := raw[len(fence):]
	nl := bytes.IndexByte(rest, '\n')
	if nl < 0 || len(bytes.TrimSpace(rest[:nl])) != 0 {
		return nil, raw
	}
	rest = rest[nl+1:]
	for off := 0; off < len(rest); {
		end := bytes.IndexByte(rest[off:], '\n')
		line := rest[off:]
		if end >= 0 {
			line = rest[off : off+end]
		}
		if bytes.Equal(bytes.TrimRight(line, "\r \t"), fence) {
			if end < 0 {
				return rest[:off], nil
			}
			return rest[:off], rest[off+end+1:]
		}
		if end < 0 {
			break
		}
		off += end + 1
	}
	// Unterminated frontmatter: treat everything as body.
	return nil, raw
}

func decodeYAML(raw []byte) (map[string]any, error) {
	data := map[string]any{}
	if len(bytes.TrimSpace(raw)) == 0 {
		return data, nil
	}
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return nil, err
	}
	return normalize(data).(map[string]any), nil
}

// normalize converts YAML-decoded values into the JSON-shaped forms the rest
// of the engine expects: map[string]any keys, []any sequences, RFC3339 times.
func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalize(val)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = normalize(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalize(val)
		}
		return out
	case time.Time:
		return t.Format(time.RFC3339)
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case uint64:
		return float64(t)
	default:
		return v
	}
}

// Verify interface compliance at compile time.
var _ Store = (*FileStore)(nil)
