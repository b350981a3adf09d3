package main

import (
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"git.sr.ht/~spc/go-log"
	"github.com/google/uuid"
	"github.com/hashicorp/go-memdb"
	"github.com/ovsenv/ovsenv"
	"github.com/ovsenv/ovsenv/internal/bus"
	"github.com/ovsenv/ovsenv/internal/inventory"
	"github.com/ovsenv/ovsenv/internal/journal"
	"github.com/ovsenv/ovsenv/internal/metrics"
	"github.com/ovsenv/ovsenv/internal/transport"
	"github.com/ovsenv/ovsenv/ipc"
	"golang.org/x/crypto/openpgp"
)

// agent ties the scan pipeline to its consumers. Scans are serialized behind
// a mutex; the most recent snapshot is retained for bus queries and report
// requests.
type agent struct {
	dirs      ovsenv.Dirs
	scanner   *inventory.Scanner
	db        *memdb.MemDB
	journal   *journal.Journal
	bus       *bus.Server
	transport transport.Transporter
	keyring   openpgp.KeyRing
	clientID  string

	scanMu        sync.Mutex
	latest        atomic.Pointer[ovsenv.Snapshot]
	connected     atomic.Bool
	everConnected atomic.Bool
	quiescing     atomic.Bool
}

// performScan runs one scan, stores the resulting snapshot and routes the
// events derived from it. trigger names what caused the scan and becomes the
// subject of the scan event.
func (a *agent) performScan(trigger string) (*ovsenv.Snapshot, error) {
	a.scanMu.Lock()
	defer a.scanMu.Unlock()

	started := time.Now()
	snap, err := a.scanner.Scan()
	if err != nil {
		return nil, fmt.Errorf("cannot scan directories: %w", err)
	}

	events, err := ovsenv.ReplaceSnapshot(a.db, snap)
	if err != nil {
		return nil, fmt.Errorf("cannot store snapshot: %w", err)
	}
	a.latest.Store(snap)

	metrics.ObserveScan(time.Since(started))
	metrics.UpdateSnapshot(snap)

	events = append(events, ovsenv.EnvironmentEvent{
		MessageID: uuid.New().String(),
		Sent:      snap.Taken,
		Name:      ovsenv.EventNameScan,
		Subject:   trigger,
		Data: map[string]string{
			"services":  strconv.Itoa(len(snap.Services)),
			"databases": strconv.Itoa(len(snap.Databases)),
			"sockets":   strconv.Itoa(len(snap.Sockets)),
		},
	})
	a.routeEvents(events)

	return snap, nil
}

// routeEvents delivers events to the journal, the bus, the metrics registry
// and the server. Delivery failures are logged, never fatal; a consumer that
// cannot accept an event does not hold up the others.
func (a *agent) routeEvents(events []ovsenv.EnvironmentEvent) {
	metrics.ObserveEvents(events)

	for _, event := range events {
		log.Debugf("observed event %v: %v", event.Name, event.Subject)

		if a.journal != nil {
			if err := a.journal.AddEntry(event); err != nil {
				log.Errorf("cannot add journal entry: %v", err)
			}
		}
		if err := a.bus.EmitEnvironmentEvent(event); err != nil {
			log.Errorf("cannot emit event on bus: %v", err)
		}
		a.publishEvent(event, "")
	}
}

// handleTransportEvent reacts to connection state changes reported by the
// transport.
func (a *agent) handleTransportEvent(e transport.TransporterEvent) {
	switch e {
	case transport.TransporterEventConnected:
		a.connected.Store(true)
		a.quiescing.Store(false)
		if a.everConnected.Swap(true) {
			log.Info("transport reconnected")
			if err := a.bus.EmitEvent(ipc.EventCodeConnectionRestored, ""); err != nil {
				log.Errorf("cannot emit event on bus: %v", err)
			}
		}
		go a.publishConnectionStatus(ovsenv.ConnectionStateOnline)
	case transport.TransporterEventDisconnected:
		a.connected.Store(false)
		if a.quiescing.Load() {
			return
		}
		log.Warn("transport disconnected")
		if err := a.bus.EmitEvent(ipc.EventCodeUnexpectedDisconnect, ""); err != nil {
			log.Errorf("cannot emit event on bus: %v", err)
		}
	}
}
