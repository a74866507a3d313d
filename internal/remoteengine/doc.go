// Package remoteengine implements engine.Engine on top of a socket.io
// connection to a compute service.
//
// Build emits EventBuild with the encoded graph and Run emits EventRun with
// the encoded input batches. Each request carries a request id; the service
// answers on "<event>:<request id>" with a Reply. Argument values travel in
// their cty JSON form next to their element type so ints and floats survive
// the trip.
package remoteengine
