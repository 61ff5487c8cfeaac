package bdev

import "github.com/go-bdev/bdev/internal/claim"

// ClaimRecords returns a snapshot of every active claim on b, for
// diagnostics/RPC exposure (spec §4.4.5's bdev_get_bdevs claim reporting).
func (b *Bdev) ClaimRecords() []*claim.Record {
	return b.claims.Records()
}

// HasExclWriteClaim reports whether b currently has a v1 EXCL_WRITE claim
// held, which callers use to decide whether a new OpenExt(write=true) would
// be rejected outright.
func (b *Bdev) HasExclWriteClaim() bool {
	return b.claims.HasExclWrite()
}

// ExamineClaims purges vestigial claim records — ones left behind by a
// module that has since been removed (Module == nil) — per spec §4.4.5's
// examination-time cleanup. Runtimes call this periodically or after a
// module hot-unplug.
func (b *Bdev) ExamineClaims() {
	b.claims.PurgeVestigial()
}
