// Package constants is the single source of truth for tunable sizes and
// timing used throughout the engine.
package constants

import "time"

// Ethernet / buffer geometry.
const (
	// EtherMTU is the Ethernet payload MTU.
	EtherMTU = 1500

	// EtherMaxSize is the largest frame the buffer pool needs to hold:
	// MTU + 14 (header) + 4 (FCS) + 4 (VLAN) + 4 (QinQ), rounded up.
	EtherMaxSize = 1536

	// DeviceHeaderReserve is the headroom the device driver boundary
	// guarantees is already consumed ahead of the Ethernet header on
	// every buffer handed to FrameUnmarshal.
	DeviceHeaderReserve = 16

	// IPHeaderReserve is an IP-layer headroom figure. The send path does not
	// read it: SendHeadroom reserves 60 bytes for the IPv4 header itself.
	IPHeaderReserve = 16

	// SendHeadroom is the total headroom reserved on every buffer
	// returned by AcquireBuffer: enough for an Ethernet header, the
	// largest IPv4 header with options, and the device's own reserve,
	// so every marshal step from ARP up to IPv4 can Retreat into it
	// without reallocating.
	SendHeadroom = DeviceHeaderReserve + 14 + 60
)

// IPv4 fragmentation and retry tunables.
const (
	// IPv4MTU is the payload space available per IPv4 fragment: the
	// Ethernet MTU minus a 20-byte IPv4 header.
	IPv4MTU = EtherMTU - 20

	// IPMinimumNoFrag is the payload size (IP header not counted) at or
	// below which the sender sets the don't-fragment flag.
	IPMinimumNoFrag = 576

	// IPv4RetrySendUS is the initial retry interval for a send in flight,
	// in microseconds.
	IPv4RetrySendUS = 200_000

	// IPv4GiveupSendUS is the retry interval at or above which a send is
	// abandoned.
	IPv4GiveupSendUS = 6_400_000

	// IPv4RetryRecvUS is the initial time-to-live given to a freshly
	// created reassembly entry, in microseconds.
	IPv4RetryRecvUS = 100_000

	// IPv4GiveupRecvUS is the time-to-live at or above which a partially
	// reassembled message is dropped.
	IPv4GiveupRecvUS = 2_000_000

	// ARPWaitUS is the retry interval used while waiting on an ARP/NDP
	// resolution, in microseconds.
	ARPWaitUS = 300_000
)

// Reassembly table sharding.
const (
	// ReassemblyShardCount is the number of independently-locked
	// reassembly shards; must be a power of two.
	ReassemblyShardCount = 16

	// ReassemblyShardQueueSize is a per-shard queue capacity. Reassembly
	// shards are unbounded maps that deliver completed datagrams inline;
	// they do not read this constant.
	ReassemblyShardQueueSize = 1024
)

// Thread pool / scheduler tunables.
const (
	// DefaultWorkers is the default fixed worker count when the caller
	// does not override it.
	DefaultWorkers = 4

	// TaskQueueSize is the bounded capacity of the shared task submission
	// queue.
	TaskQueueSize = 4096

	// DelayedHeapInitialCapacity sizes the initial backing array of the
	// delayed-task min-heap.
	DelayedHeapInitialCapacity = 256
)

// ARP / NDP table sizing.
const (
	// ARPTableBuckets is the bucket count of the lock-free-flavored
	// address binding table.
	ARPTableBuckets = 64

	// ARPTableInitialFree is the number of pre-allocated freelist cells
	// seeded at table initialization, avoiding allocation on the hot
	// insert path.
	ARPTableInitialFree = 128
)

// TCP/UDP delivery sharding.
const (
	// TransportQueueCount is the number of sharded delivery queues used
	// to hand parsed TCP/UDP segments to per-connection consumers.
	TransportQueueCount = 16

	// TransportQueueSize is the bounded capacity of each delivery queue.
	TransportQueueSize = 512

	// TCPServerBuckets is a bucket count for the TCP server registry. The
	// registry keeps listening ports in a Go map and does not read this
	// constant.
	TCPServerBuckets = 64
)

// BufferPoolSlabs is a slab count for the buffer pool. The pool is backed by
// sync.Pool, does not read this constant, and reserves no buffers at
// startup.
const BufferPoolSlabs = 256

// WorkerIdleWait is an idle-wait bound for workers. The worker loop does not
// read it: an idle worker blocks on the submission semaphore or the stop
// channel with no timeout.
const WorkerIdleWait = 200 * time.Millisecond
