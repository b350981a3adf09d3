package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"git.sr.ht/~spc/go-log"
	"github.com/google/uuid"
	"github.com/ovsenv/ovsenv"
	"github.com/ovsenv/ovsenv/internal/config"
	"github.com/ovsenv/ovsenv/internal/tags"
)

// getFacts returns the facts to report, either collected from the host or
// read from a facts file when one is configured.
func getFacts(path string) (*ovsenv.Facts, error) {
	if path == "" {
		return ovsenv.GetFacts()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read facts file: %w", err)
	}
	var values map[string]interface{}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("cannot unmarshal facts file: %w", err)
	}
	facts, err := ovsenv.FactsFromMap(values)
	if err != nil {
		return nil, fmt.Errorf("cannot convert facts: %w", err)
	}
	return facts, nil
}

// readTags loads tags from the configured tags file, falling back to the
// default location. Tags are read at publish time so that edits take effect
// without a restart; a missing file is not an error.
func readTags() map[string]string {
	tagsFilePath := config.DefaultConfig.TagsFile
	if tagsFilePath == "" {
		tagsFilePath = filepath.Join(ovsenv.SysconfDir, ovsenv.LongName, "tags.toml")
	}

	if _, err := os.Stat(tagsFilePath); os.IsNotExist(err) {
		return nil
	}

	f, err := os.Open(tagsFilePath)
	if err != nil {
		log.Errorf("cannot load tags: %v", err)
		return nil
	}
	defer f.Close()

	tagMap, err := tags.ReadTags(f)
	if err != nil {
		log.Errorf("cannot load tags: %v", err)
		return nil
	}
	return tagMap
}

// publishConnectionStatus publishes a connection-status message on the
// control channel.
func (a *agent) publishConnectionStatus(state ovsenv.ConnectionState) {
	if a.transport == nil || !a.connected.Load() {
		return
	}

	facts, err := getFacts(config.DefaultConfig.FactsFile)
	if err != nil {
		log.Errorf("cannot get facts: %v", err)
		return
	}

	msg := ovsenv.ConnectionStatus{
		Type:      ovsenv.MessageTypeConnectionStatus,
		MessageID: uuid.New().String(),
		Version:   1,
		Sent:      time.Now(),
	}
	msg.Content.Facts = *facts
	msg.Content.Dirs = a.dirs
	msg.Content.State = state
	msg.Content.Tags = readTags()

	data, err := json.Marshal(msg)
	if err != nil {
		log.Errorf("cannot marshal message: %v", err)
		return
	}
	if _, _, _, err := a.transport.Tx("control", nil, data); err != nil {
		log.Errorf("cannot publish connection status: %v", err)
		return
	}
	log.Debugf("published connection status: %v", state)
	log.Tracef("message: %+v", msg)
}

// publishEvent publishes an event message on the control channel. Events are
// dropped while the transport is not connected.
func (a *agent) publishEvent(event ovsenv.EnvironmentEvent, responseTo string) {
	if a.transport == nil || !a.connected.Load() {
		log.Tracef("transport not connected; dropping event %v", event.Name)
		return
	}

	msg := ovsenv.Event{
		Type:       ovsenv.MessageTypeEvent,
		MessageID:  uuid.New().String(),
		ResponseTo: responseTo,
		Version:    1,
		Sent:       time.Now(),
		Content:    event,
	}

	data, err := json.Marshal(msg)
	if err != nil {
		log.Errorf("cannot marshal message: %v", err)
		return
	}
	if _, _, _, err := a.transport.Tx("control", nil, data); err != nil {
		log.Errorf("cannot publish event: %v", err)
		return
	}
	log.Debugf("published message %v", msg.MessageID)
	log.Tracef("message: %+v", msg)
}

// publishReport publishes snap as a report message on the data channel.
func (a *agent) publishReport(snap *ovsenv.Snapshot, responseTo string) error {
	msg := ovsenv.Report{
		Type:       ovsenv.MessageTypeReport,
		MessageID:  uuid.New().String(),
		ResponseTo: responseTo,
		Version:    1,
		Sent:       time.Now(),
		Content:    *snap,
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("cannot marshal message: %w", err)
	}
	code, _, body, err := a.transport.Tx("data", nil, data)
	if err != nil {
		return fmt.Errorf("cannot publish report: %w", err)
	}
	log.Debugf("published message %v: response code %v", msg.MessageID, code)
	log.Tracef("response: %v", string(body))
	return nil
}
