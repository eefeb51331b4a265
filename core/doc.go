// Package core provides the value types shared by the dialog packages:
//
//   - Content / Part (role-based conversation messages, text and tool parts)
//   - Session (one conversation: history, pending action, missing fields and
//     the ledger of executed action fingerprints)
//   - SessionStore (pluggable registry of sessions)
//   - ModelLimiter (per-turn cap on language-model calls)
//
// Implementation concerns (storage backends, model providers, orchestration)
// live in their own packages and depend on core, never the other way round.
package core
