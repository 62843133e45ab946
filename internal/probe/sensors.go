package probe

// #region imports
import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// #endregion

// #region host-battery

// HostBattery reads charge level from the first battery under
// /sys/class/power_supply. Machines without one report an error and the
// probe falls back to its default.
type HostBattery struct {
	Root string // defaults to /sys/class/power_supply
}

func (h HostBattery) Level() (float32, error) {
	root := h.Root
	if root == "" {
		root = "/sys/class/power_supply"
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return 0, err
	}
	for _, e := range entries {
		raw, err := os.ReadFile(filepath.Join(root, e.Name(), "capacity"))
		if err != nil {
			continue
		}
		pct, err := strconv.Atoi(strings.TrimSpace(string(raw)))
		if err != nil {
			continue
		}
		return float32(pct) / 100, nil
	}
	return 0, fmt.Errorf("no battery under %s", root)
}

// #endregion

// #region host-thermal

// HostThermal maps the hottest thermal zone to the pressure ladder.
type HostThermal struct {
	Root string // defaults to /sys/class/thermal
}

func (h HostThermal) State() (ThermalState, error) {
	root := h.Root
	if root == "" {
		root = "/sys/class/thermal"
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return "", err
	}
	maxMilli := -1
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), "thermal_zone") {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(root, e.Name(), "temp"))
		if err != nil {
			continue
		}
		milli, err := strconv.Atoi(strings.TrimSpace(string(raw)))
		if err != nil {
			continue
		}
		if milli > maxMilli {
			maxMilli = milli
		}
	}
	if maxMilli < 0 {
		return "", fmt.Errorf("no readable thermal zones under %s", root)
	}
	switch celsius := maxMilli / 1000; {
	case celsius >= 95:
		return ThermalCritical, nil
	case celsius >= 80:
		return ThermalSerious, nil
	case celsius >= 65:
		return ThermalFair, nil
	default:
		return ThermalNominal, nil
	}
}

// #endregion

// #region dial-network

// DialNetwork classifies connectivity by timing a TCP dial to the cloud
// endpoint. Slow handshakes count as poor, failures as offline.
type DialNetwork struct {
	Addr          string        // host:port of the cloud endpoint
	Timeout       time.Duration // defaults to 2s
	PoorThreshold time.Duration // defaults to 750ms
}

func (d DialNetwork) Quality() (NetworkQuality, error) {
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	poor := d.PoorThreshold
	if poor <= 0 {
		poor = 750 * time.Millisecond
	}

	start := time.Now()
	conn, err := net.DialTimeout("tcp", d.Addr, timeout)
	if err != nil {
		return NetworkOffline, nil
	}
	conn.Close()
	if time.Since(start) > poor {
		return NetworkPoor, nil
	}
	return NetworkGood, nil
}

// #endregion
