// Package manager owns the lifecycle of the single resident text-to-image
// pipeline. It is structured into small files by concern:
//
//   - manager.go: core Manager type, constructor, simple getters.
//   - config.go: ManagerConfig and package defaults; NewWithConfig applies defaults.
//   - types.go: State, the resource handle and its transition table, request/result types.
//   - errors.go: error kinds and helpers (IsInvalidParameter, IsResourceExhausted, ...).
//   - admission.go: the exclusive section every mutating operation runs under.
//   - timer.go: restartable idle eviction timer.
//   - session.go: per-request parameter resolution, seeding and synthesis.
//   - ensure.go: lazy load and variant switch (unload then load).
//   - generate.go: the Generate entry point.
//   - unload.go: Unload, idle eviction callback, SetIdleTimeout.
//   - status_report.go: read-only Status snapshot.
//   - sanity.go: engine reachability checks for readiness probes.
//   - events.go, eventpub_memory.go: lifecycle events.
//
// At most one pipeline is resident. Generate, Unload and the idle eviction
// callback all contend for the same one-slot channel; Status only takes a
// short read lock on the handle.
package manager
