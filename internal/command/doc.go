// Package command turns bus messages into plug switching.
//
// A Service owns the per-message pipeline:
//
//  1. peek the routing envelope (response_topic, command_id)
//  2. resolve the topic and payload against one directory snapshot
//  3. fan the command out through the dispatcher under one deadline
//  4. publish the aggregated result to response_topic, if one was given
//  5. record per-target outcomes (InfluxDB, Prometheus) and broadcast a
//     command.completed event to live subscribers
//
// Parse failures stop at step 2. They are logged, counted and, when a
// response topic is known, answered with a top-level error string.
package command
