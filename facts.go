package ovsenv

import (
	"net"
	"os"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// Facts contain several identification strings that collectively identify the
// host a running agent reports for.
type Facts struct {
	MachineID     string   `json:"machine_id"`
	BootID        string   `json:"boot_id"`
	KernelRelease string   `json:"kernel_release"`
	IPAddresses   []string `json:"ip_addresses"`
	MACAddresses  []string `json:"mac_addresses"`
	FQDN          string   `json:"fqdn"`
}

// FactsFromMap creates a Facts struct from the key-value pairs in a map.
func FactsFromMap(m map[string]interface{}) (*Facts, error) {
	var facts Facts

	if val, ok := m["machine_id"]; ok {
		switch val := val.(type) {
		case string:
			facts.MachineID = val
		default:
			return nil, &InvalidValueTypeError{key: "machine_id", val: val}
		}
	}

	if val, ok := m["boot_id"]; ok {
		switch val := val.(type) {
		case string:
			facts.BootID = val
		default:
			return nil, &InvalidValueTypeError{key: "boot_id", val: val}
		}
	}

	if val, ok := m["kernel_release"]; ok {
		switch val := val.(type) {
		case string:
			facts.KernelRelease = val
		default:
			return nil, &InvalidValueTypeError{key: "kernel_release", val: val}
		}
	}

	if val, ok := m["ip_addresses"]; ok {
		switch val := val.(type) {
		case []string:
			facts.IPAddresses = val
		case []interface{}:
			// Arrays decoded from JSON arrive as []interface{}.
			for _, v := range val {
				s, ok := v.(string)
				if !ok {
					return nil, &InvalidValueTypeError{key: "ip_addresses", val: v}
				}
				facts.IPAddresses = append(facts.IPAddresses, s)
			}
		default:
			return nil, &InvalidValueTypeError{key: "ip_addresses", val: val}
		}
	}

	if val, ok := m["mac_addresses"]; ok {
		switch val := val.(type) {
		case []string:
			facts.MACAddresses = val
		case []interface{}:
			for _, v := range val {
				s, ok := v.(string)
				if !ok {
					return nil, &InvalidValueTypeError{key: "mac_addresses", val: v}
				}
				facts.MACAddresses = append(facts.MACAddresses, s)
			}
		default:
			return nil, &InvalidValueTypeError{key: "mac_addresses", val: val}
		}
	}

	if val, ok := m["fqdn"]; ok {
		switch val := val.(type) {
		case string:
			facts.FQDN = val
		default:
			return nil, &InvalidValueTypeError{key: "fqdn", val: val}
		}
	}

	return &facts, nil
}

// GetFacts attempts to construct a Facts struct by collecting data from the
// localhost.
func GetFacts() (*Facts, error) {
	var facts Facts
	var err error

	machineID, err := readFile("/etc/machine-id")
	if err != nil {
		return nil, err
	}
	facts.MachineID, err = toUUIDv4(machineID)
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat("/proc/sys/kernel/random/boot_id"); !os.IsNotExist(err) {
		bootID, err := readFile("/proc/sys/kernel/random/boot_id")
		if err != nil {
			return nil, err
		}
		facts.BootID = bootID
	}

	if _, err := os.Stat("/proc/sys/kernel/osrelease"); !os.IsNotExist(err) {
		kernelRelease, err := readFile("/proc/sys/kernel/osrelease")
		if err != nil {
			return nil, err
		}
		facts.KernelRelease = kernelRelease
	}

	facts.IPAddresses, err = collectIPAddresses()
	if err != nil {
		return nil, err
	}

	facts.MACAddresses, err = collectMACAddresses()
	if err != nil {
		return nil, err
	}

	facts.FQDN, err = os.Hostname()
	if err != nil {
		return nil, err
	}

	return &facts, nil
}

// readFile reads the contents of filename into a string, trims whitespace,
// and returns the result.
func readFile(filename string) (string, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// collectIPAddresses iterates over network interfaces and collects IP
// addresses.
func collectIPAddresses() ([]string, error) {
	addresses := make([]string, 0)
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback == net.FlagLoopback {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			return nil, err
		}
		for _, addr := range addrs {
			switch addr := addr.(type) {
			case *net.IPNet:
				if addr.IP.To4() == nil {
					continue
				}
				addresses = append(addresses, addr.IP.String())
			}
		}
	}

	return addresses, nil
}

// collectMACAddresses iterates over network interfaces and collects hardware
// addresses.
func collectMACAddresses() ([]string, error) {
	addresses := make([]string, 0)
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	sort.Slice(ifaces, func(i, j int) bool {
		return ifaces[i].Name < ifaces[j].Name
	})
	for _, iface := range ifaces {
		addr := iface.HardwareAddr.String()
		if addr == "" {
			addr = "00:00:00:00:00:00"
		}
		addresses = append(addresses, addr)
	}
	return addresses, nil
}

// toUUIDv4 parses id as a UUID and returns the "dashed" notation string format.
func toUUIDv4(id string) (string, error) {
	UUID, err := uuid.Parse(id)
	if err != nil {
		return "", err
	}
	return UUID.String(), nil
}
