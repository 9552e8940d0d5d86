// Package fixtures provides in-memory, deterministic reference
// implementations of each of the four adapter kinds from spec.md §4.7
// (§5.8): Resource Providers for postgres, redis, and kafka.messaging, a
// Backend Adapter that fabricates plausible outputs, and a Runtime
// Adapter that renders a YAML-ish manifest and records "applied"
// namespaces.
//
// None of this is wired into cmd/deskribe's production registration —
// operators register real drivers. fixtures exists so pkg/orchestrator's
// tests can drive the full Load→Validate→Plan→Apply→Destroy pipeline
// end-to-end without any external system, matching spec.md §8's concrete
// scenarios, the way the teacher ships providers/linux.pkg as a real (if
// simplified) pkg/engine.Provider alongside the core.
package fixtures
