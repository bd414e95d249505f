// Command netstack-demo wires two in-process engines together over a
// loopback device and exchanges a UDP datagram between them, to exercise
// the stack end to end without a real network interface.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	netstack "github.com/ehrlich-b/gonetstack"
	"github.com/ehrlich-b/gonetstack/backend"
	"github.com/ehrlich-b/gonetstack/internal/logging"
)

func main() {
	var (
		verbose = flag.Bool("v", false, "Verbose output")
		message = flag.String("message", "hello from netstack-demo", "UDP payload to send")
		srcPort = flag.Uint("src-port", 5000, "UDP source port")
		dstPort = flag.Uint("dst-port", 7000, "UDP destination port")
	)
	flag.Parse()

	logConfig := logging.DefaultConfig()
	if *verbose {
		logConfig.Level = logging.LevelDebug
	}
	logger := logging.NewLogger(logConfig)
	logging.SetDefault(logger)

	devA := backend.NewLoopback(1500)
	devB := backend.NewLoopback(1500)

	a, err := netstack.NewEngine(netstack.Options{
		Device: devA,
		Logger: logger,
		MAC:    netstack.MAC{0x02, 0, 0, 0, 0, 1},
		IPv4:   [4]byte{10, 0, 0, 1},
	})
	if err != nil {
		logger.Error("failed to create engine a", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	b, err := netstack.NewEngine(netstack.Options{
		Device: devB,
		Logger: logger,
		MAC:    netstack.MAC{0x02, 0, 0, 0, 0, 2},
		IPv4:   [4]byte{10, 0, 0, 2},
	})
	if err != nil {
		logger.Error("failed to create engine b", "error", err)
		os.Exit(1)
	}
	defer b.Close()

	devA.Bind(b)
	devB.Bind(a)

	logger.Info("engines bound over loopback", "a", "10.0.0.1", "b", "10.0.0.2")

	datagram := encodeUDP(uint16(*srcPort), uint16(*dstPort), []byte(*message))
	if err := a.IPv4Send([4]byte{10, 0, 0, 2}, udpProto, datagram); err != nil {
		logger.Error("send failed", "error", err)
		os.Exit(1)
	}

	deadline := time.After(2 * time.Second)
	tick := time.NewTicker(5 * time.Millisecond)
	defer tick.Stop()

	for {
		select {
		case <-tick.C:
			for i := 0; i < b.UDPQueueCount(); i++ {
				if _, sp, dp, data, ok := b.DequeueUDP(i); ok {
					fmt.Printf("b received %d bytes from port %d to port %d: %q\n", len(data), sp, dp, data)
					return
				}
			}
		case <-deadline:
			logger.Error("timed out waiting for delivery")
			os.Exit(1)
		case <-signalCh():
			logger.Info("received shutdown signal")
			return
		}
	}
}

const udpProto = 17

// encodeUDP builds a minimal UDP datagram with the checksum field left
// zero; an IPv4 receiver treats a zero checksum as the sender opting out
// of validation, so this demo payload needs no pseudo-header checksum.
func encodeUDP(srcPort, dstPort uint16, payload []byte) []byte {
	datagram := make([]byte, 8+len(payload))
	datagram[0] = byte(srcPort >> 8)
	datagram[1] = byte(srcPort)
	datagram[2] = byte(dstPort >> 8)
	datagram[3] = byte(dstPort)
	length := uint16(len(datagram))
	datagram[4] = byte(length >> 8)
	datagram[5] = byte(length)
	copy(datagram[8:], payload)
	return datagram
}

func signalCh() <-chan os.Signal {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	return ch
}
