// Package limits provides an atomically-enforced resource quota,
// trimmed from the original source's Syslimit_t (which tracked vnodes,
// futexes, ARP entries, routes, and socket counts — all VFS/network
// resources out of this kernel's scope) down to the one limit this
// kernel's process lifecycle actually enforces: the maximum number of
// simultaneously live processes.
package limits

import "sync/atomic"

/// Sysatomic_t is a numeric limit that can be atomically given and taken.
type Sysatomic_t int64

/// Taken tries to decrement the limit by n and reports whether it
/// succeeded; on failure the limit is left unchanged.
func (s *Sysatomic_t) Taken(n uint) bool {
	g := atomic.AddInt64((*int64)(s), -int64(n))
	if g >= 0 {
		return true
	}
	atomic.AddInt64((*int64)(s), int64(n))
	return false
}

/// Given increases the limit by n, e.g. when a process exits and is
/// reaped.
func (s *Sysatomic_t) Given(n uint) {
	atomic.AddInt64((*int64)(s), int64(n))
}

/// Take decrements the limit by one and reports success.
func (s *Sysatomic_t) Take() bool { return s.Taken(1) }

/// Give increments the limit by one.
func (s *Sysatomic_t) Give() { s.Given(1) }

/// Syslimit_t holds the system-wide process quota.
type Syslimit_t struct {
	Sysprocs Sysatomic_t
}

/// MkSysLimit constructs the default system-wide limits.
func MkSysLimit() *Syslimit_t {
	return &Syslimit_t{Sysprocs: 1e4}
}

/// Syslimit is the default, process-wide instance of the system limits,
/// matching the original source's singleton.
var Syslimit *Syslimit_t = MkSysLimit()
