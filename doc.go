// Package vmkit implements the shared substrate that lets multiple managed
// language runtimes (a JVM-like engine, a CLI/.NET-like engine, or any other
// garbage-collected front-end) coexist inside a single OS process under one
// collector.
//
// The substrate provides four pieces of infrastructure:
//
//   - a cooperative/uncooperative stop-the-world rendezvous for precise
//     tracing (see the rendezvous subpackage),
//   - a weak/soft/phantom reference subsystem with an asynchronous enqueue
//     worker (see the gcref subpackage),
//   - a finalizer subsystem with an asynchronous finalizer worker (see the
//     finalizer subpackage), and
//   - a per-process thread registry, VM registry, and instruction-pointer to
//     method map used for stack walking and security-frame lookups (this
//     package).
//
// vmkit never parses bytecode, never JITs, and never implements a language
// object model; it is driven entirely through the [VirtualMachine] and
// [collector.Collector] interfaces, which a front-end and a garbage
// collector implement respectively.
package vmkit
