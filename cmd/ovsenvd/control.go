package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"git.sr.ht/~spc/go-log"
	"github.com/google/uuid"
	"github.com/ovsenv/ovsenv"
	"github.com/ovsenv/ovsenv/ipc"
	"golang.org/x/crypto/openpgp"
)

// detectProtocolFromURL returns the transport protocol to use along with the
// first server URL naming a supported scheme. URLs that cannot be parsed or
// that carry an unsupported scheme are skipped.
func detectProtocolFromURL(serverURLs []string) (string, string, error) {
	for _, serverURL := range serverURLs {
		u, err := url.Parse(serverURL)
		if err != nil {
			log.Debugf("cannot parse server URL '%v': %v", serverURL, err)
			continue
		}
		switch u.Scheme {
		case "http", "https":
			return "http", serverURL, nil
		case "mqtt", "mqtts":
			return "mqtt", serverURL, nil
		}
	}
	return "", "", fmt.Errorf("cannot detect protocol: no supported scheme in %v", serverURLs)
}

// receive is the transport RxHandlerFunc. addr identifies the channel the
// message arrived on.
func (a *agent) receive(addr string, metadata map[string]interface{}, data []byte) error {
	switch addr {
	case "control":
		var message ovsenv.Control
		if err := json.Unmarshal(data, &message); err != nil {
			return fmt.Errorf("cannot unmarshal control message: %w", err)
		}
		if err := a.handleControlMessage(&message, data); err != nil {
			return fmt.Errorf("cannot process control message: %w", err)
		}
	default:
		return fmt.Errorf("unsupported destination type: %v", addr)
	}
	return nil
}

// handleControlMessage unpacks a control message and acts accordingly. raw is
// the complete message as received, needed to recover fields the partial
// decode discards.
func (a *agent) handleControlMessage(msg *ovsenv.Control, raw []byte) error {
	switch msg.Type {
	case ovsenv.MessageTypeCommand:
		var cmd ovsenv.Command
		if err := json.Unmarshal(raw, &cmd); err != nil {
			return fmt.Errorf("cannot unmarshal command message: %w", err)
		}
		return a.handleCommand(&cmd)
	default:
		return fmt.Errorf("unsupported control message: %v", msg.Type)
	}
}

// verifyCommand checks the detached signature of a command against the
// configured keyring. Commands are accepted without a signature only when no
// keyring is configured.
func (a *agent) verifyCommand(cmd *ovsenv.Command) error {
	if a.keyring == nil {
		return nil
	}
	if cmd.Signature == "" {
		return fmt.Errorf("cannot verify command %v: message is not signed", cmd.MessageID)
	}

	// The signature covers the exact content bytes the server signed, so the
	// content is verified before it is decoded.
	signedBytes := bytes.NewReader(cmd.Content)
	if _, err := openpgp.CheckArmoredDetachedSignature(a.keyring, signedBytes, strings.NewReader(cmd.Signature)); err != nil {
		return fmt.Errorf("cannot verify command %v: %w", cmd.MessageID, err)
	}
	return nil
}

// handleCommand verifies and executes a command received on the control
// channel.
func (a *agent) handleCommand(cmd *ovsenv.Command) error {
	log.Debugf("received message %v", cmd.MessageID)
	log.Tracef("command: %+v", cmd)

	if err := a.verifyCommand(cmd); err != nil {
		return err
	}

	var content ovsenv.CommandContent
	if err := json.Unmarshal(cmd.Content, &content); err != nil {
		return fmt.Errorf("cannot unmarshal command content: %w", err)
	}

	switch content.Command {
	case ovsenv.CommandNamePing:
		a.publishEvent(ovsenv.EnvironmentEvent{
			MessageID: uuid.New().String(),
			Sent:      time.Now(),
			Name:      ovsenv.EventNamePong,
		}, cmd.MessageID)
	case ovsenv.CommandNameRescan:
		snap, err := a.performScan("command")
		if err != nil {
			return fmt.Errorf("cannot rescan: %w", err)
		}
		if err := a.publishReport(snap, cmd.MessageID); err != nil {
			return err
		}
	case ovsenv.CommandNameReport:
		snap := a.latest.Load()
		if snap == nil {
			return fmt.Errorf("cannot publish report: no scan has completed yet")
		}
		if err := a.publishReport(snap, cmd.MessageID); err != nil {
			return err
		}
	case ovsenv.CommandNameDisconnect:
		log.Info("disconnecting...")
		a.quiescing.Store(true)
		if err := a.bus.EmitEvent(ipc.EventCodeReceivedDisconnect, ""); err != nil {
			log.Errorf("cannot emit event on bus: %v", err)
		}
		a.publishEvent(ovsenv.EnvironmentEvent{
			MessageID: uuid.New().String(),
			Sent:      time.Now(),
			Name:      ovsenv.EventNameDisconnect,
		}, cmd.MessageID)
		a.transport.Disconnect(500)
	case ovsenv.CommandNameReconnect:
		log.Info("reconnecting...")
		a.quiescing.Store(true)
		a.transport.Disconnect(500)
		delay, err := strconv.ParseInt(content.Arguments["delay"], 10, 64)
		if err != nil {
			return fmt.Errorf("cannot parse delay argument: %w", err)
		}
		time.Sleep(time.Duration(delay) * time.Second)
		if err := a.transport.Connect(); err != nil {
			return fmt.Errorf("cannot reconnect: %w", err)
		}
	default:
		return fmt.Errorf("unknown command: %v", content.Command)
	}
	return nil
}
