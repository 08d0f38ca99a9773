/*
Package rlog provides structured logging for the cluster daemon using
zerolog.

It wraps zerolog to provide JSON-structured logging with component-scoped
loggers, a configurable level, and a small key/value helper layer so call
sites can attach fields (node_id, voters, snapshot_id) without building up
zerolog event chains by hand. All logs include timestamps and support
filtering by severity for production debugging.

Components get their own scoped Logger via WithComponent: cluster,
service, raftlog, and statemachine each log under their own component
field so operators can filter a single node's log stream by subsystem.
*/
package rlog
