package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"text/template"
	"time"

	"github.com/google/uuid"
	"github.com/ovsenv/ovsenv"
	"github.com/urfave/cli/v2"
)

// generateMessage marshals a control message of the given type built from
// content.
func generateMessage(messageType string, responseTo string, content []byte, version int) ([]byte, error) {
	msg, err := generateControlMessage(ovsenv.MessageType(messageType), responseTo, version, content)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}
	return data, nil
}

// generateControlMessage creates a control message of the appropriate type by
// switching on the value of messageType.
func generateControlMessage(messageType ovsenv.MessageType, responseTo string, version int, content []byte) (*ovsenv.Control, error) {
	switch messageType {
	case ovsenv.MessageTypeCommand:
		msg, err := generateCommandMessage(messageType, responseTo, version, content)
		if err != nil {
			return nil, fmt.Errorf("cannot generate command message: %v", err)
		}
		data, err := json.Marshal(msg)
		if err != nil {
			return nil, fmt.Errorf("cannot marshal command message: %v", err)
		}
		var ctrl ovsenv.Control
		if err := json.Unmarshal(data, &ctrl); err != nil {
			return nil, fmt.Errorf("cannot unmarshal control message: %v", err)
		}
		return &ctrl, nil
	case ovsenv.MessageTypeEvent:
		msg, err := generateEventMessage(messageType, responseTo, version, content)
		if err != nil {
			return nil, fmt.Errorf("cannot generate event message: %v", err)
		}
		data, err := json.Marshal(msg)
		if err != nil {
			return nil, fmt.Errorf("cannot marshal event message: %v", err)
		}
		var ctrl ovsenv.Control
		if err := json.Unmarshal(data, &ctrl); err != nil {
			return nil, fmt.Errorf("cannot unmarshal control message: %v", err)
		}
		return &ctrl, nil
	default:
		return nil, fmt.Errorf("unsupported message type: %v", messageType)
	}
}

// generateCommandMessage validates bytes as command content and wraps them in
// a command message. The content is kept as the exact bytes given so a
// detached signature computed over them stays valid.
func generateCommandMessage(messageType ovsenv.MessageType, responseTo string, version int, content []byte) (*ovsenv.Command, error) {
	msg := ovsenv.Command{
		Type:       messageType,
		MessageID:  uuid.New().String(),
		ResponseTo: responseTo,
		Version:    version,
		Sent:       time.Now(),
	}

	var cc ovsenv.CommandContent
	if err := json.Unmarshal(content, &cc); err != nil {
		return nil, fmt.Errorf("cannot unmarshal content: %v", err)
	}
	msg.Content = content

	return &msg, nil
}

// generateEventMessage unmarshals bytes into an event message.
func generateEventMessage(messageType ovsenv.MessageType, responseTo string, version int, content []byte) (*ovsenv.Event, error) {
	msg := ovsenv.Event{
		Type:       messageType,
		MessageID:  uuid.New().String(),
		ResponseTo: responseTo,
		Version:    version,
		Sent:       time.Now(),
	}

	if err := json.Unmarshal(content, &msg.Content); err != nil {
		return nil, fmt.Errorf("cannot unmarshal content: %v", err)
	}

	return &msg, nil
}

func serviceFilesAction(c *cli.Context) error {
	params := struct {
		Name    string
		Program string
		User    string
	}{
		Name:    ovsenv.ShortName + "d",
		Program: c.String("program"),
		User:    c.String("user"),
	}

	files := []struct {
		name     string
		template string
	}{
		{"com.ovsenv.Environment1.service", DBusServiceTemplate},
		{"com.ovsenv.Environment1.conf", DBusPolicyConfigTemplate},
		{params.Name + ".service", SystemdServiceTemplate},
	}

	for _, file := range files {
		t, err := template.New(file.name).Parse(file.template)
		if err != nil {
			return cli.Exit(fmt.Errorf("cannot parse template: %w", err), 1)
		}

		path := filepath.Join(c.String("dir"), file.name)
		f, err := os.Create(path)
		if err != nil {
			return cli.Exit(fmt.Errorf("cannot create file: %w", err), 1)
		}
		if err := t.Execute(f, params); err != nil {
			_ = f.Close()
			return cli.Exit(fmt.Errorf("cannot render template: %w", err), 1)
		}
		if err := f.Close(); err != nil {
			return cli.Exit(fmt.Errorf("cannot close file: %w", err), 1)
		}

		fmt.Printf("wrote %v\n", path)
	}

	return nil
}
