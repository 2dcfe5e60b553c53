// Package ui provides the terminal views of a running node.
//
// Monitor is a Bubble Tea model that polls a node's Snapshot and shows the
// radio state, the tracked peers with their ranged distances, the computed
// position and recent activity. A chat message can be sent to the selected
// peer with "c".
//
//	err := ui.Run(ctx, node, len(cfg.Anchors))
//
// Summary renders the same state as a single line for headless runs where
// stdout is not a terminal.
//
// Logging is expected to be silent or directed away from stdout while the
// monitor runs; zap output would otherwise tear the alternate screen.
package ui
