// Package env holds the message and host-environment types shared by the
// interpreter and the action/result layer. It exists purely to break the
// import cycle that would otherwise appear between interp (which reads
// Message for header/address/size tests) and action (which reads ScriptEnv
// to open mailboxes): both import env, env imports neither.
package env

import "time"

// ExecStatus is the orchestrator's out-parameter struct (spec §6):
// populated with per-run flags the caller inspects after execute/test
// returns.
type ExecStatus struct {
	MessageSaved     bool
	TriedDefaultSave bool
	LastStorage      string
	KeepOriginal     bool
}

// ScriptEnv is the host-provided script environment (spec §6 "Host-provided
// callbacks"). Namespaces is nil for a dry run (sieve-test without a real
// mailstore); DuplicateCheck/DuplicateMark are either both set or both nil.
type ScriptEnv struct {
	Namespaces           any
	DefaultMailbox       string
	Username             string
	MailboxAutocreate    bool
	MailboxAutosubscribe bool
	DuplicateCheck       func(id string, length int, user string) bool
	DuplicateMark        func(id string, length int, user string, at time.Time)
	ExecStatus           *ExecStatus
}

// Message is the minimal view of the message under test the core needs:
// header/address/envelope tests read it, and it is what store/redirect
// actions hand to the host mailstore.
type Message struct {
	ID       string
	Size     int
	Raw      []byte
	Headers  map[string][]string
	Envelope Envelope
	// OriginMailbox is the mailbox the message currently lives in, used by
	// the store action's redundancy check (spec §4.6).
	OriginMailbox string
}

// Envelope carries the SMTP envelope sender/recipient, distinct from the
// message's own From/To headers.
type Envelope struct {
	From string
	To   string
}

// Header returns the first value of the named header (case-insensitive), or
// "" if absent.
func (m *Message) Header(name string) string {
	vs := m.HeaderValues(name)
	if len(vs) == 0 {
		return ""
	}
	return vs[0]
}

// HeaderValues returns every value of the named header, case-insensitively.
func (m *Message) HeaderValues(name string) []string {
	if m.Headers == nil {
		return nil
	}
	if vs, ok := m.Headers[name]; ok {
		return vs
	}
	for k, vs := range m.Headers {
		if asciiEqualFold(k, name) {
			return vs
		}
	}
	return nil
}

func asciiEqualFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}
