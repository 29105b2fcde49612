// Package asset manages the single photo file attached to each record:
// deterministic path naming, existence checks, and scoped access grants
// handed to external capture tools.
package asset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"

	"github.com/aretw0/casebook/internal/atomicfile"
	"github.com/aretw0/casebook/pkg/core"
)

const (
	// FilePrefix and FileExt frame the record id in an asset file name.
	FilePrefix = "IMG_"
	FileExt    = ".jpg"
	// FilePattern matches every asset file name.
	FilePattern = FilePrefix + "*" + FileExt
)

// ErrCaptureInProgress is returned when a capture is already pending for a record.
var ErrCaptureInProgress = errors.New("capture already in progress")

// Token is an opaque capability for one principal's access to one asset.
type Token string

// Grant describes an outstanding access capability.
type Grant struct {
	Token     Token     `json:"-"`
	ID        core.ID   `json:"id"`
	Principal string    `json:"principal"`
	IssuedAt  time.Time `json:"issued_at"`
}

// Mirror receives copies of captured assets (e.g. an object store).
type Mirror interface {
	Push(ctx context.Context, id core.ID, r io.Reader, size int64) error
	Remove(ctx context.Context, id core.ID) error
}

// Config holds the configuration for a Manager.
type Config struct {
	Root   string
	Logger *slog.Logger
	Mirror Mirror
	// Settle is how long the watcher waits after the last write before a
	// capture is considered complete. Zero means 100ms.
	Settle time.Duration
}

// Manager owns asset path derivation and grant bookkeeping.
// The bytes themselves are written by external principals through grants.
type Manager struct {
	root   string
	logger *slog.Logger
	mirror Mirror
	settle time.Duration

	mu       sync.Mutex
	grants   map[core.ID]map[Token]Grant
	tokens   map[Token]Grant
	captures map[core.ID]*Capture
}

// NewManager creates a Manager rooted at cfg.Root, creating the directory if needed.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Root == "" {
		return nil, fmt.Errorf("asset root is required")
	}
	if err := os.MkdirAll(cfg.Root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create asset directory: %w", err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	settle := cfg.Settle
	if settle <= 0 {
		settle = 100 * time.Millisecond
	}
	return &Manager{
		root:     cfg.Root,
		logger:   logger,
		mirror:   cfg.Mirror,
		settle:   settle,
		grants:   make(map[core.ID]map[Token]Grant),
		tokens:   make(map[Token]Grant),
		captures: make(map[core.ID]*Capture),
	}, nil
}

// Root returns the asset directory.
func (m *Manager) Root() string { return m.root }

// FileName returns the asset file name for id.
func FileName(id core.ID) string {
	return FilePrefix + id.String() + FileExt
}

// ParseFileName extracts the record id from an asset file name.
func ParseFileName(name string) (core.ID, bool) {
	base := filepath.Base(name)
	if ok, _ := doublestar.Match(FilePattern, base); !ok {
		return core.ID{}, false
	}
	id, err := core.ParseID(strings.TrimSuffix(strings.TrimPrefix(base, FilePrefix), FileExt))
	if err != nil {
		return core.ID{}, false
	}
	return id, true
}

// PathFor returns the asset path of id. It depends only on id and the root.
func (m *Manager) PathFor(id core.ID) string {
	return filepath.Join(m.root, FileName(id))
}

// Exists reports whether the asset file of id is present.
func (m *Manager) Exists(id core.ID) bool {
	info, err := os.Stat(m.PathFor(id))
	return err == nil && info.Mode().IsRegular()
}

// Grant issues a token letting principal read and write the asset of id.
// Grants to different principals coexist; granting the same principal twice
// returns the outstanding token.
func (m *Manager) Grant(id core.ID, principal string) (Token, error) {
	if err := validateGrant(id, principal); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.grantLocked(id, principal), nil
}

func (m *Manager) grantLocked(id core.ID, principal string) Token {
	set, ok := m.grants[id]
	if !ok {
		set = make(map[Token]Grant)
		m.grants[id] = set
	}
	for tok, g := range set {
		if g.Principal == principal {
			return tok
		}
	}

	g := Grant{
		Token:     Token(uuid.NewString()),
		ID:        id,
		Principal: principal,
		IssuedAt:  time.Now().UTC(),
	}
	set[g.Token] = g
	m.tokens[g.Token] = g
	m.logger.Debug("grant issued", "id", id, "principal", principal)
	return g.Token
}

func validateGrant(id core.ID, principal string) error {
	if id.IsZero() {
		return fmt.Errorf("grant: empty record id")
	}
	if principal == "" {
		return fmt.Errorf("grant: principal is required")
	}
	return nil
}

// RevokeAll revokes every outstanding grant for id and fails any pending
// capture with core.ErrGrantDenied. It is idempotent and returns the number
// of grants revoked.
func (m *Manager) RevokeAll(id core.ID) int {
	m.mu.Lock()
	set := m.grants[id]
	for tok := range set {
		delete(m.tokens, tok)
	}
	delete(m.grants, id)
	capture := m.captures[id]
	delete(m.captures, id)
	m.mu.Unlock()

	if capture != nil {
		capture.Complete(fmt.Errorf("capture for %s: %w", id, core.ErrGrantDenied))
	}
	if len(set) > 0 {
		m.logger.Debug("grants revoked", "id", id, "count", len(set))
	}
	return len(set)
}

// Grants returns the outstanding grants for id.
func (m *Manager) Grants(id core.ID) []Grant {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Grant, 0, len(m.grants[id]))
	for _, g := range m.grants[id] {
		out = append(out, g)
	}
	return out
}

// Resolve returns the grant behind tok, or core.ErrGrantDenied.
func (m *Manager) Resolve(tok Token) (Grant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	g, ok := m.tokens[tok]
	if !ok {
		return Grant{}, core.ErrGrantDenied
	}
	return g, nil
}

// Open opens the asset behind tok for reading.
func (m *Manager) Open(tok Token) (io.ReadCloser, error) {
	g, err := m.Resolve(tok)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(m.PathFor(g.ID))
	if err != nil {
		return nil, ioError("open", g.ID, err)
	}
	return f, nil
}

// Write replaces the asset behind tok with the contents of r.
// The file is swapped in atomically.
func (m *Manager) Write(tok Token, r io.Reader) (int64, error) {
	g, err := m.Resolve(tok)
	if err != nil {
		return 0, err
	}
	n, err := atomicfile.Write(m.PathFor(g.ID), r, 0644)
	if err != nil {
		return 0, ioError("write", g.ID, err)
	}
	m.logger.Debug("asset written", "id", g.ID, "principal", g.Principal, "bytes", n)
	return n, nil
}

// Read returns the asset bytes of id. A missing file is reported as core.ErrIO
// wrapping fs.ErrNotExist.
func (m *Manager) Read(id core.ID) ([]byte, error) {
	data, err := os.ReadFile(m.PathFor(id))
	if err != nil {
		return nil, ioError("read", id, err)
	}
	return data, nil
}

// Remove revokes all access to the asset of id and deletes its file and mirror copy.
func (m *Manager) Remove(ctx context.Context, id core.ID) error {
	m.RevokeAll(id)

	if err := os.Remove(m.PathFor(id)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return ioError("remove", id, err)
	}
	if m.mirror != nil {
		if err := m.mirror.Remove(ctx, id); err != nil {
			return fmt.Errorf("failed to remove mirrored asset %s: %w", id, err)
		}
	}
	return nil
}

// List returns the ids of every asset file under the root.
func (m *Manager) List() ([]core.ID, error) {
	matches, err := doublestar.Glob(os.DirFS(m.root), FilePattern)
	if err != nil {
		return nil, fmt.Errorf("failed to list assets: %w", err)
	}
	ids := make([]core.ID, 0, len(matches))
	for _, name := range matches {
		if id, ok := ParseFileName(name); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func ioError(op string, id core.ID, err error) error {
	return fmt.Errorf("%w: %s asset %s: %w", core.ErrIO, op, id, err)
}
