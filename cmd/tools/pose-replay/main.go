//go:build pcap
// +build pcap

// Command pose-replay replays a packet capture of the localisation feed in
// real time, respecting the original packet timing. Payloads are written to
// stdout or forwarded to a UDP destination so a planner instance can be
// exercised against recorded drives without the vehicle.
//
// Built behind the pcap tag because it links against libpcap.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
)

var (
	pcapFile = flag.String("pcap", "", "Capture file to replay (required)")
	udpPort  = flag.Int("port", 5005, "UDP port carrying the feed in the capture")
	forward  = flag.String("forward", "", "UDP destination (host:port), empty writes payloads to stdout")
	speed    = flag.Float64("speed", 1.0, "Replay speed multiplier (1.0 = real time)")
)

func main() {
	flag.Parse()

	if *pcapFile == "" {
		flag.Usage()
		os.Exit(2)
	}
	if *speed <= 0 {
		*speed = 1.0
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var conn *net.UDPConn
	if *forward != "" {
		addr, err := net.ResolveUDPAddr("udp", *forward)
		if err != nil {
			log.Fatalf("failed to resolve forward address: %v", err)
		}
		conn, err = net.DialUDP("udp", nil, addr)
		if err != nil {
			log.Fatalf("failed to dial forward address: %v", err)
		}
		defer conn.Close()
	}

	if err := replay(ctx, conn); err != nil && err != context.Canceled {
		log.Fatalf("replay failed: %v", err)
	}
}

func replay(ctx context.Context, conn *net.UDPConn) error {
	handle, err := pcap.OpenOffline(*pcapFile)
	if err != nil {
		return fmt.Errorf("failed to open capture %s: %w", *pcapFile, err)
	}
	defer handle.Close()

	filterStr := fmt.Sprintf("udp port %d", *udpPort)
	if err := handle.SetBPFFilter(filterStr); err != nil {
		return fmt.Errorf("failed to set BPF filter %q: %w", filterStr, err)
	}
	log.Printf("replay: BPF filter set: %s (speed: %.1fx)", filterStr, *speed)

	packetSource := gopacket.NewPacketSource(handle, handle.LinkType())
	packetCount := 0
	startTime := time.Now()

	var lastPacketTime time.Time

	for {
		select {
		case <-ctx.Done():
			log.Printf("replay stopping due to context cancellation (processed %d packets)", packetCount)
			return ctx.Err()
		case packet := <-packetSource.Packets():
			if packet == nil {
				elapsed := time.Since(startTime)
				log.Printf("replay complete: %d packets in %v", packetCount, elapsed)
				return nil
			}

			packetCount++
			captureTime := packet.Metadata().Timestamp

			if !lastPacketTime.IsZero() {
				delay := captureTime.Sub(lastPacketTime)
				scaledDelay := time.Duration(float64(delay) / *speed)
				if scaledDelay > 0 {
					select {
					case <-ctx.Done():
						return ctx.Err()
					case <-time.After(scaledDelay):
					}
				}
			}
			lastPacketTime = captureTime

			udpLayer := packet.Layer(layers.LayerTypeUDP)
			if udpLayer == nil {
				continue
			}
			udp, ok := udpLayer.(*layers.UDP)
			if !ok {
				continue
			}
			payload := udp.Payload
			if len(payload) == 0 {
				continue
			}

			if conn != nil {
				if _, err := conn.Write(payload); err != nil {
					log.Printf("failed to forward packet %d: %v", packetCount, err)
				}
			} else {
				os.Stdout.Write(payload)
			}

			if packetCount%1000 == 0 {
				elapsed := time.Since(startTime)
				log.Printf("replay progress: %d packets in %v (%.0f pkt/s)",
					packetCount, elapsed, float64(packetCount)/elapsed.Seconds())
			}
		}
	}
}
