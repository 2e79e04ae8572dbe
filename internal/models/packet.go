package models

// Packet is one synthetic packet emitted per simulator tick.
type Packet struct {
	ID            string `json:"id"`
	Timestamp     string `json:"timestamp"`
	SourceIP      string `json:"sourceIp"`
	DestinationIP string `json:"destinationIp"`
	Protocol      string `json:"protocol"`
	Size          int    `json:"size"`
	Port          int    `json:"port"`
}

// Alert is derived from the packet of the tick that raised it.
type Alert struct {
	ID          string       `json:"id"`
	Type        string       `json:"type"`
	Severity    string       `json:"severity"`
	Timestamp   string       `json:"timestamp"`
	Description string       `json:"description"`
	InvolvedIPs []string     `json:"involvedIps"`
	Details     AlertDetails `json:"details"`
}

// AlertDetails holds alert-specific context.
type AlertDetails struct {
	Port int `json:"port"`
}

// Stats is the per-tick counter snapshot. PacketsPerSecond and
// ActiveConnections are display values and are not derived from the counters.
type Stats struct {
	TotalPackets      int `json:"totalPackets"`
	PacketsPerSecond  int `json:"packetsPerSecond"`
	TotalAlerts       int `json:"totalAlerts"`
	ActiveConnections int `json:"activeConnections"`
}
