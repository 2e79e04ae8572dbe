package simulator

import (
	"fmt"
	"math/rand"
	"time"

	"netsight/internal/models"
)

// TimestampLayout renders event timestamps in UTC with microsecond precision.
const TimestampLayout = "2006-01-02T15:04:05.000000Z"

var (
	protocols  = []string{"HTTP", "HTTPS", "TCP", "UDP", "DNS", "ARP"}
	alertTypes = []string{"SYN_FLOOD", "ARP_SPOOFING", "DNS_POISONING"}
	severities = []string{"low", "medium", "high", "critical"}
)

// intn returns a uniform integer in [lo, hi].
func intn(rng *rand.Rand, lo, hi int) int {
	return lo + rng.Intn(hi-lo+1)
}

func pick(rng *rand.Rand, values []string) string {
	return values[rng.Intn(len(values))]
}

func eventID(rng *rand.Rand) string {
	return fmt.Sprintf("%d", intn(rng, 1000, 9999))
}

func hostIP(rng *rand.Rand) string {
	return fmt.Sprintf("192.168.1.%d", intn(rng, 1, 254))
}

// NewPacket fabricates one packet with uniformly random fields.
func NewPacket(rng *rand.Rand, now time.Time) models.Packet {
	return models.Packet{
		ID:            eventID(rng),
		Timestamp:     now.UTC().Format(TimestampLayout),
		SourceIP:      hostIP(rng),
		DestinationIP: hostIP(rng),
		Protocol:      pick(rng, protocols),
		Size:          intn(rng, 64, 1500),
		Port:          intn(rng, 1000, 9000),
	}
}

// NewAlert derives an alert from the packet that triggered it.
func NewAlert(rng *rand.Rand, now time.Time, p models.Packet) models.Alert {
	return models.Alert{
		ID:          eventID(rng),
		Type:        pick(rng, alertTypes),
		Severity:    pick(rng, severities),
		Timestamp:   now.UTC().Format(TimestampLayout),
		Description: "Suspicious activity from " + p.SourceIP,
		InvolvedIPs: []string{p.SourceIP, p.DestinationIP},
		Details:     models.AlertDetails{Port: p.Port},
	}
}

// NewStats builds a snapshot from the running counters plus two display values.
func NewStats(rng *rand.Rand, totalPackets, totalAlerts int) models.Stats {
	return models.Stats{
		TotalPackets:      totalPackets,
		PacketsPerSecond:  intn(rng, 50, 120),
		TotalAlerts:       totalAlerts,
		ActiveConnections: intn(rng, 10, 30),
	}
}
