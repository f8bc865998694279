/*
Package types defines the core data model shared across poolkeeper's
subsystems.

A Resource is the system's only persistent entity: a driver-managed
external thing (a VM, a virtual router, ...) tracked through an eight-value
state machine. Known scalar attributes (driver, class, status, pool,
processing, allocated, deleted) are top-level struct fields; anything
driver-specific lives in the open Data map. Filter and Search express the
Store's query language: attribute equality, set-membership over status,
and presence/absence of pool.

# State machine

	STOPPED --start--> STARTING --ok--> STARTED --stop--> STOPPING --ok--> STOPPED
	                    |                  |
	                    fail               +--wipe--> WIPING --ok--> STARTED
	                    v
	                  ERROR <--fail-- (any ...ING transition)

	STOPPED/ERROR --delete--> DELETING --ok--> DELETED (reaper removes)

ActiveStates ({STARTED, STARTING, WIPING}) is the set the balancer counts
as "available reserve" when computing a pool's deficit against its low
watermark.
*/
package types
