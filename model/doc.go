// Package model defines the provider-agnostic abstractions for talking to
// language models.
//
// Core goals:
//   - Unify streaming + non-streaming generation behind a single interface
//   - Normalize tool / function call representation (ToolDefinition)
//   - Keep request/response shapes minimal and transport independent
//   - Classify transport failures so callers can retry transient ones once
//   - Facilitate lightweight mocking for tests (MockModel)
//
// Providers (openai, anthropic, echo) implement Model in sub-packages so the
// controller stays decoupled from vendor SDKs.
package model
