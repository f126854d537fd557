// Package sim provides the epoch-pipelined simulation driver for spikesim.
//
// # Reading Guide
//
// Start with these three files to understand the simulation kernel:
//   - epoch.go: The epoch clock that splits simulated time into half-min-delay intervals
//   - merge.go: K-way merge of carried-over, pending and generator events into sorted lanes
//   - simulation.go: Construction, the update/distribute/enqueue pipeline, injection and reset
//
// # Architecture
//
// The sim package defines interfaces and the driver; implementations live in
// sub-packages:
//   - sim/cells/: Cell group implementations (leaky integrate-and-fire, spike sources)
//   - sim/cluster/: Multi-rank spike exchange over zmq
//   - sim/recorder/: Persistent spike recording to sqlite
//   - sim/trace/: Spike trace export and run summaries
//
// Sub-packages register their cell group implementations via init()
// functions (RegisterGroupFactory).
//
// # Key Interfaces
//
// The extension points are small interfaces:
//   - Recipe: query-only description of the network being simulated
//   - CellGroup: advance a set of cells through one epoch, producing spikes
//   - EventGenerator: external event sources queried per epoch interval
//   - Communicator: spike exchange and translation into per-cell event queues
//   - Distributed: rank collectives (gather, all-reduce) behind the communicator
//   - Schedule: time sequences for samplers and spike sources
package sim
