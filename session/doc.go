// Package session houses concrete implementations of core.SessionStore.
// The interface and the Session struct live in core so the controller only
// depends on the contract; the wiring layer decides which store to use.
//
// Sessions are process-local by design: nothing here outlives the process.
package session
