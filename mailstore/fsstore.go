package mailstore

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sievebox/sievecore/env"
)

// FSStore delivers messages into a Maildir tree rooted at Root. Each
// mailbox is a directory containing the standard tmp/new/cur
// subdirectories; delivery always writes to tmp/ first and renames into
// new/ only once the write has completed, so a crash mid-write never
// leaves a partial message visible to a reader (the same tmp-then-rename
// discipline the lode file writer uses for its sidecar files).
type FSStore struct {
	Root string

	mu      sync.Mutex
	known   map[string]bool
	counter uint64
}

// NewFSStore returns a store rooted at root. The root directory itself is
// not created; callers should ensure it exists (or that OpenMailbox with
// autocreate is used for every mailbox under it, including INBOX).
func NewFSStore(root string) *FSStore {
	return &FSStore{Root: root, known: make(map[string]bool)}
}

func (s *FSStore) mailboxPath(name string) string {
	safe := strings.ReplaceAll(name, "/", string(filepath.Separator))
	return filepath.Join(s.Root, safe)
}

// OpenMailbox verifies (or, with autocreate, creates) the tmp/new/cur
// layout for name. Subscription state is not modeled here: autosubscribe
// is accepted for interface compatibility but has no effect, since this
// store has no subscription list of its own.
func (s *FSStore) OpenMailbox(name string, autocreate, autosubscribe bool) error {
	if name == "" || strings.Contains(name, "..") {
		return wrapErr("open", name, ErrInvalidMailbox)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.known[name] {
		return nil
	}

	dir := s.mailboxPath(name)
	if _, err := os.Stat(dir); err != nil {
		if !os.IsNotExist(err) {
			return wrapErr("open", name, err)
		}
		if !autocreate {
			return wrapErr("open", name, ErrNoSuchMailbox)
		}
	}
	for _, sub := range []string{"tmp", "new", "cur"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return wrapErr("open", name, err)
		}
	}
	s.known[name] = true
	return nil
}

// uniqueName picks a Maildir-unique filename: <timestamp>.<counter>.<id>.
func (s *FSStore) uniqueName(msg *env.Message) string {
	s.counter++
	id := msg.ID
	if id == "" {
		id = "unknown"
	}
	return fmt.Sprintf("%d.%d.%s", time.Now().UnixNano(), s.counter, sanitizeID(id))
}

func sanitizeID(id string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', ':', '\\':
			return '_'
		default:
			return r
		}
	}, id)
}

// flagsSuffix renders Maildir's ":2,<flags>" info suffix. Keywords have no
// single-letter Maildir equivalent, so they ride along as a second,
// colon-separated segment this store alone interprets.
func flagsSuffix(flags, keywords []string) string {
	letters := make([]string, 0, len(flags))
	for _, f := range flags {
		if l, ok := maildirFlagLetter(f); ok {
			letters = append(letters, l)
		}
	}
	sort.Strings(letters)
	suffix := ":2," + strings.Join(letters, "")
	if len(keywords) > 0 {
		suffix += ";kw=" + strings.Join(keywords, ",")
	}
	return suffix
}

func maildirFlagLetter(flag string) (string, bool) {
	switch strings.ToLower(flag) {
	case "\\seen", "seen":
		return "S", true
	case "\\answered", "answered":
		return "R", true
	case "\\flagged", "flagged":
		return "F", true
	case "\\deleted", "deleted":
		return "T", true
	case "\\draft", "draft":
		return "D", true
	default:
		return "", false
	}
}

// Deliver writes msg into mailbox's new/ directory.
func (s *FSStore) Deliver(mailbox string, msg *env.Message, flags, keywords []string) error {
	dir := s.mailboxPath(mailbox)
	s.mu.Lock()
	name := s.uniqueName(msg)
	s.mu.Unlock()

	tmpPath := filepath.Join(dir, "tmp", name)
	if err := os.WriteFile(tmpPath, msg.Raw, 0o644); err != nil {
		return wrapErr("deliver", mailbox, err)
	}
	finalName := name + flagsSuffix(flags, keywords)
	finalPath := filepath.Join(dir, "new", finalName)
	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return wrapErr("deliver", mailbox, err)
	}
	return nil
}

// UpdateFlags applies flags/keywords to a copy of msg already present in
// mailbox, used for the "fileinto the mailbox the message already lives
// in" redundant-store case (spec §4.6). It scans new/ and then cur/ in
// directory order and renames the first filename carrying msg.ID into cur/
// with the new info suffix; other copies are left unchanged.
func (s *FSStore) UpdateFlags(mailbox string, msg *env.Message, flags, keywords []string) error {
	dir := s.mailboxPath(mailbox)
	want := sanitizeID(msg.ID)
	if want == "" {
		return nil
	}
	for _, sub := range []string{"new", "cur"} {
		subdir := filepath.Join(dir, sub)
		entries, err := os.ReadDir(subdir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			base := e.Name()
			if colon := strings.IndexByte(base, ':'); colon >= 0 {
				base = base[:colon]
			}
			if !strings.Contains(base, want) {
				continue
			}
			oldPath := filepath.Join(subdir, e.Name())
			stem := e.Name()
			if colon := strings.IndexByte(stem, ':'); colon >= 0 {
				stem = stem[:colon]
			}
			newPath := filepath.Join(filepath.Join(dir, "cur"), stem+flagsSuffix(flags, keywords))
			return wrapErr("update-flags", mailbox, os.Rename(oldPath, newPath))
		}
	}
	return nil
}
