package main

import (
	"fmt"
	"os"
	"time"

	systemd "github.com/coreos/go-systemd/v22/dbus"
	"github.com/ovsenv/ovsenv"
	"github.com/ovsenv/ovsenv/client"
)

func getStatus() (string, error) {
	var status string

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}
	status += fmt.Sprintf("Environment status for %s:\n\n", hostname)

	unitName := ovsenv.ShortName + "d.service"

	conn, err := systemd.NewSystemConnection()
	if err != nil {
		status += fmt.Sprintf("⛔️ error: cannot check the %v unit: %v\n", unitName, err)
	} else {
		defer conn.Close()

		properties, err := conn.GetUnitProperties(unitName)
		if err != nil {
			status += fmt.Sprintf("⛔️ error: cannot check the %v unit: %v\n", unitName, err)
		} else {
			activeState := properties["ActiveState"]
			if activeState.(string) == "active" {
				status += fmt.Sprintln("✅ The agent service is active.")
			} else {
				status += fmt.Sprintln("❌ The agent service is inactive.")
			}
		}
	}

	agent, err := client.Dial()
	if err != nil {
		status += fmt.Sprintln("❌ The agent is not reachable on the bus.")
		return status, nil
	}
	defer agent.Close()

	if _, err := agent.Directories(); err != nil {
		status += fmt.Sprintln("❌ The agent is not reachable on the bus.")
		return status, nil
	}
	status += fmt.Sprintln("✅ The agent is reachable on the bus.")

	snapshot, err := agent.Inventory()
	if err != nil {
		status += fmt.Sprintln("❌ No scan has completed yet.")
		return status, nil
	}

	alive := 0
	for _, service := range snapshot.Services {
		if service.Alive {
			alive++
		}
	}
	status += fmt.Sprintf("\nLast scan at %v found %v services (%v running), %v databases and %v sockets.\n",
		snapshot.Taken.Format(time.RFC3339), len(snapshot.Services), alive, len(snapshot.Databases), len(snapshot.Sockets))

	for _, service := range snapshot.Services {
		if service.Alive {
			status += fmt.Sprintf("✅ %v is running (pid %v).\n", service.Name, service.Pid)
		} else {
			status += fmt.Sprintf("❌ %v is not running.\n", service.Name)
		}
	}

	return status, nil
}
