// Package ui provides the Bubble Tea terminal interface for jamie.
//
// # Architecture Overview
//
// The root Model owns a submit form and renders the cached allowance and the
// tracked run from state.Store. Every flow decision lives in the onboarding
// machine: the UI only mirrors it. On each tick the model reads a store
// snapshot and a machine snapshot, then syncModal picks the dialog that
// matches the machine state.
//
// # Package Structure
//
//   - app.go: Model, Service interface, messages, commands and Run
//   - form.go: the on-demand run form
//   - modals.go: quota prompt, sign-in, checkout, confirmation and notices
//   - view.go: header, allowance list and job panel
//   - keys.go, help.go, theme.go: bindings, help overlay, colors
//
// # Dialog Stack
//
// Layers, top down:
//
//  1. Help overlay (f1)
//  2. Notice: errors the machine does not handle, such as a 500 on submit
//  3. Flow modal mirrored from the machine:
//     - quota prompt while the machine holds an unacted Prompt
//     - sign-in for AwaitingAuth
//     - checkout for AwaitingCheckout
//     - confirmation for Done
//  4. The submit form
//
// Closing a flow modal never decides what comes next; the following snapshot
// does. Accepting the quota prompt therefore reveals the sign-in or checkout
// step the machine was already in.
//
// # Event Flow
//
//  1. Run() starts the Bubble Tea program bound to the caller's context
//  2. tickMsg fetches store and machine snapshots every second
//  3. Service calls run inside tea.Cmds and return actionMsg/submitMsg
//  4. Results trigger an immediate snapshot so modals follow without waiting
//
// # Persistence
//
// The chosen theme, the last email used to sign in and the last feed ID are
// remembered in prefs.toml.
package ui
