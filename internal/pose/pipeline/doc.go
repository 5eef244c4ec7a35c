// Package pipeline drives the per-stream frame loop.
//
// Each Stream pulls frames from a FrameSource, optionally gates them on a
// coarse detector, evaluates the landmark set against one exercise, feeds
// the session aggregator, attempts a throttled save and emits an annotated
// frame. Stages run strictly in that order for each frame. Streams are
// independent; the only shared state is the session aggregator and the
// sink, both safe for concurrent use.
//
// This package is the composition root for the pose packages: it imports
// rules, fusion, accuracy and sink, and none of those import pipeline.
package pipeline
