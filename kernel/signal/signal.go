// Package signal implements process signal state and delivery (§4.10):
// per-process pending/blocked bitmasks and a disposition table, checked on
// every syscall return, plus the sigreturn half of handler dispatch. There
// is no teacher precedent for this subsystem (gopher-os never grew one);
// its shape follows kernel/task's own pid-keyed registry and hook-wiring
// idiom, generalized from "one Task" to "one Task's signal state".
package signal

// Signal identifies one of the 31 standard signal numbers (§3's "signal
// state" note: pending/blocked bitmask, one bit per signal). Numbering
// matches the conventional Linux rv64/amd64 assignment so a user-space libc
// shim needs no translation table, the same rationale kernel/errors' Errno
// docs give for its own numbering.
type Signal uint32

const (
	SIGHUP  Signal = 1
	SIGINT  Signal = 2
	SIGQUIT Signal = 3
	SIGILL  Signal = 4
	SIGTRAP Signal = 5
	SIGABRT Signal = 6
	SIGBUS  Signal = 7
	SIGFPE  Signal = 8
	SIGKILL Signal = 9
	SIGUSR1 Signal = 10
	SIGSEGV Signal = 11
	SIGUSR2 Signal = 12
	SIGPIPE Signal = 13
	SIGALRM Signal = 14
	SIGTERM Signal = 15
	SIGCHLD Signal = 17
	SIGCONT Signal = 18
	SIGSTOP Signal = 19
	SIGTSTP Signal = 20
	SIGTTIN Signal = 21
	SIGTTOU Signal = 22
	SIGURG  Signal = 23
	SIGSYS  Signal = 31
)

// NSIG bounds the signal number space (1..NSIG-1 are valid); bit (sig-1) of
// a Pending/Blocked mask identifies sig.
const NSIG = 32

// Category is a signal's default disposition class (§4.10: "terminate /
// core-dump / stop / continue / ignore per signal number, matching the
// conventional POSIX table").
type Category uint8

const (
	CategoryTerm Category = iota
	CategoryCore
	CategoryStop
	CategoryContinue
	CategoryIgnore
)

// defaultCategories assigns each signal spec.md names a category but not a
// per-signal table for (§4.10); this is the conventional POSIX assignment,
// supplementing what spec.md leaves unstated.
var defaultCategories = map[Signal]Category{
	SIGHUP: CategoryTerm, SIGINT: CategoryTerm, SIGPIPE: CategoryTerm,
	SIGALRM: CategoryTerm, SIGTERM: CategoryTerm, SIGUSR1: CategoryTerm, SIGUSR2: CategoryTerm,

	SIGQUIT: CategoryCore, SIGILL: CategoryCore, SIGABRT: CategoryCore,
	SIGFPE: CategoryCore, SIGSEGV: CategoryCore, SIGBUS: CategoryCore,
	SIGTRAP: CategoryCore, SIGSYS: CategoryCore,

	SIGSTOP: CategoryStop, SIGTSTP: CategoryStop, SIGTTIN: CategoryStop, SIGTTOU: CategoryStop,

	SIGCONT: CategoryContinue,

	SIGCHLD: CategoryIgnore, SIGURG: CategoryIgnore,
}

// DefaultCategory returns sig's default disposition category, or
// CategoryTerm for any signal not named in the table above (the safest
// fallback: an unrecognized signal terminating rather than silently doing
// nothing matches POSIX's own default for signals without a special case).
func DefaultCategory(sig Signal) Category {
	if c, ok := defaultCategories[sig]; ok {
		return c
	}
	return CategoryTerm
}

// bit returns the Pending/Blocked mask bit for sig.
func bit(sig Signal) uint32 {
	return 1 << (uint32(sig) - 1)
}

// valid reports whether sig falls within the signal number space this
// kernel recognizes.
func valid(sig Signal) bool {
	return sig >= 1 && sig < NSIG
}
