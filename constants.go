package netstack

import "github.com/ehrlich-b/gonetstack/internal/constants"

// Re-exported tunables for the public API.
const (
	DefaultWorkers    = constants.DefaultWorkers
	TaskQueueSize     = constants.TaskQueueSize
	EtherMTU          = constants.EtherMTU
	IPv4MTU           = constants.IPv4MTU
	IPv4RetrySendUS   = constants.IPv4RetrySendUS
	IPv4GiveupSendUS  = constants.IPv4GiveupSendUS
	IPv4RetryRecvUS   = constants.IPv4RetryRecvUS
	IPv4GiveupRecvUS  = constants.IPv4GiveupRecvUS
	ARPWaitUS         = constants.ARPWaitUS
	TransportQueueCount = constants.TransportQueueCount
	TransportQueueSize  = constants.TransportQueueSize
)
