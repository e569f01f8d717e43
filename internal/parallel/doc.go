// Package parallel provides the fixed-size worker pool that processes the
// chunks of a partitioned payload.
//
// A [Pool] is an owned resource: callers create it, size it with
// [Pool.Initialize], and release it with [Pool.Shutdown]. Each call to
// [Pool.Dispatch] returns a one-shot future that is resolved exactly once with
// the [WorkResult] for the dispatched [WorkUnit]. Results carry the index of
// their unit; the pool makes no promise about completion order.
package parallel
