// Package danmaku provides the scheduling and lane-layout engine for timed comment
// overlays ("danmaku") drawn on top of a video or live stream.
//
// # Reading Guide
//
// Start with these files to understand the engine:
//   - item.go: Item, Kind and TimeWindow, the immutable inputs
//   - source.go: Source producers (batch for VOD, live for streams) and NewSource
//   - engine.go: Engine lifecycle (LoadItems, Start, Pause, Stop, Submit)
//   - tick.go: per-tick work: apply drains, age visible, promote, expire pending
//   - layout.go: lane policies for transit, top-pinned and bottom-pinned items
//
// # Concurrency
//
// An external timer calls Engine.Tick at a fixed interval. Each tick issues a
// window drain against the Source on a single background slot, where a newer
// request replaces one that has not started yet, and posts the aging/promotion
// work onto a serialized runner that owns the pending queue, the visible set and
// the lane retainers. Drain results are consumed at the start of the next tick's
// work. All cell operations (display, animate, freeze, remove) are posted to a
// separate presentation runner; the serialized runner never waits on it.
//
// # Key Interfaces
//
// The engine talks to its host through small interfaces:
//   - Clock: playback position and buffering state
//   - Delegate: render gate and display notifications
//   - DataSource: item width and cell construction (prefer DequeueReusable)
//   - Renderer: places, animates and removes cells
//
// See sub-packages render/ (headless canvas), workload/ (item files and synthetic
// arrivals) and trace/ (decision recording).
package danmaku
