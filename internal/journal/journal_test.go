package journal

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/ovsenv/ovsenv"
)

var placeholderEventEntry = ovsenv.EnvironmentEvent{
	MessageID: "test-id",
	Sent:      time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC),
	Name:      ovsenv.EventNameServiceUp,
	Subject:   "ovs-vswitchd",
	Data:      map[string]string{"pid": "100"},
}

func TestOpen(t *testing.T) {
	tests := []struct {
		description string
		input       string
	}{
		{
			description: "create journal",
			input:       "file::memory:?cache=shared",
		},
	}

	for _, test := range tests {
		t.Run(test.description, func(t *testing.T) {
			got, err := Open(test.input)

			if err != nil {
				t.Fatal(err)
			}
			if got == nil {
				t.Errorf("journal is null")
			}
		})
	}
}

func TestGetEntries(t *testing.T) {
	tests := []struct {
		description string
		entries     []ovsenv.EnvironmentEvent
		input       Filter
		want        []map[string]string
		wantError   error
	}{
		{
			description: "get journal entries - unfiltered empty",
			entries:     []ovsenv.EnvironmentEvent{},
			input: Filter{
				Persistent: true,
			},
			wantError: &errorJournal{fmt.Errorf("no journal entries found")},
		},
		{
			description: "get journal entries - unfiltered results",
			entries: []ovsenv.EnvironmentEvent{
				placeholderEventEntry,
			},
			input: Filter{
				Persistent: true,
			},
			want: []map[string]string{
				0: {
					"message_id": "test-id",
					"sent":       "2000-01-01 00:00:00 +0000 UTC",
					"event":      "service-up",
					"subject":    "ovs-vswitchd",
					"data":       "{\"pid\":\"100\"}",
				},
			},
		},
		{
			description: "get journal entries - filtered empty",
			entries: []ovsenv.EnvironmentEvent{
				placeholderEventEntry,
			},
			input: Filter{
				Persistent: true,
				MessageID:  "test-invalid-filtered-message-id",
			},
			wantError: &errorJournal{fmt.Errorf("no journal entries found")},
		},
		{
			description: "get journal entries - filtered results",
			entries: []ovsenv.EnvironmentEvent{
				placeholderEventEntry,
				{
					MessageID: "test-filtered-message-id",
					Sent:      time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC),
					Name:      ovsenv.EventNameServiceUp,
					Subject:   "ovs-vswitchd",
					Data:      map[string]string{"pid": "100"},
				},
			},
			input: Filter{
				Persistent: true,
				MessageID:  "test-filtered-message-id",
			},
			want: []map[string]string{
				0: {
					"message_id": "test-filtered-message-id",
					"sent":       "2000-01-01 00:00:00 +0000 UTC",
					"event":      "service-up",
					"subject":    "ovs-vswitchd",
					"data":       "{\"pid\":\"100\"}",
				},
			},
		},
		{
			description: "get journal entries - filtered by event",
			entries: []ovsenv.EnvironmentEvent{
				{
					MessageID: "test-down-id",
					Sent:      time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC),
					Name:      ovsenv.EventNameServiceDown,
					Subject:   "ovsdb-server",
					Data:      map[string]string{"pid": "99"},
				},
			},
			input: Filter{
				Persistent: true,
				Event:      "service-down",
			},
			want: []map[string]string{
				0: {
					"message_id": "test-down-id",
					"sent":       "2000-01-01 00:00:00 +0000 UTC",
					"event":      "service-down",
					"subject":    "ovsdb-server",
					"data":       "{\"pid\":\"99\"}",
				},
			},
		},
	}
	for _, test := range tests {
		t.Run(test.description, func(t *testing.T) {
			// Create a journal to test with:
			journal, err := Open("file::memory:?cache=shared")
			if err != nil {
				t.Fatal(err)
			}

			// Add entries from test input data:
			for _, entry := range test.entries {
				if err := journal.AddEntry(entry); err != nil {
					t.Fatal(err)
				}
			}

			// Get entries from the journal:
			got, err := journal.GetEntries(test.input)
			if test.wantError != nil {
				if !cmp.Equal(err, test.wantError, cmpopts.EquateErrors()) {
					t.Errorf("%#v != %#v", err, test.wantError)
				}
			} else {
				if err != nil {
					t.Fatal(err)
				}
				if !cmp.Equal(got, test.want) {
					t.Errorf("%#v != %#v", got, test.want)
				}
			}
		})
	}
}

func TestAddEntry(t *testing.T) {
	tests := []struct {
		description string
		input       ovsenv.EnvironmentEvent
		wantError   error
	}{
		{
			description: "create journal entry",
			input:       placeholderEventEntry,
		},
	}

	for _, test := range tests {
		t.Run(test.description, func(t *testing.T) {
			journal, err := Open("file::memory:?cache=shared")
			if err != nil {
				t.Fatal(err)
			}

			err = journal.AddEntry(test.input)
			if test.wantError != nil {
				if !cmp.Equal(err, test.wantError, cmpopts.EquateErrors()) {
					t.Errorf("%#v != %#v", err, test.wantError)
				}
			} else {
				if err != nil {
					t.Fatal(err)
				}
			}
		})
	}
}

func TestGetEntriesReleasesConnection(t *testing.T) {
	journal, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer journal.Close()

	// With a single connection, a query left open blocks every later call.
	journal.database.SetMaxOpenConns(1)

	if err := journal.AddEntry(placeholderEventEntry); err != nil {
		t.Fatal(err)
	}

	// An entry with malformed data makes GetEntries return mid-iteration
	// when field truncation is requested.
	_, err = journal.database.Exec(
		`INSERT INTO journal (message_id, sent, event, subject, data) values (?,?,?,?,?)`,
		"malformed-id", time.Now().UTC(), "service-up", "ovs-vswitchd", "not-json",
	)
	if err != nil {
		t.Fatal(err)
	}

	_, err = journal.GetEntries(Filter{
		Persistent:     true,
		TruncateFields: map[string]int{"pid": 2},
	})
	if err == nil {
		t.Fatal("expected error from malformed journal entry")
	}

	if got := journal.database.Stats().InUse; got != 0 {
		t.Errorf("connections still in use after failed query: %v", got)
	}

	got, err := journal.GetEntries(Filter{Persistent: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Errorf("%#v != %#v", len(got), 2)
	}
}

func TestBuildDynamicGetEntriesQuery(t *testing.T) {
	tests := []struct {
		description string
		input       struct {
			filter        Filter
			initializedAt time.Time
		}
		want string
	}{
		{
			description: "build dynamic get entries sql query - unfiltered",
			input: struct {
				filter        Filter
				initializedAt time.Time
			}{
				filter: Filter{
					Persistent: true,
				},
				initializedAt: time.Now(),
			},
			want: "SELECT * FROM journal " +
				"ORDER BY sent",
		},
		{
			description: "build dynamic get entries sql query - filtered",
			input: struct {
				filter        Filter
				initializedAt time.Time
			}{
				filter: Filter{
					Persistent: true,
					MessageID:  "filtered-id",
					Event:      "database-changed",
					Subject:    "/etc/openvswitch/conf.db",
					Since:      "01-01-1970",
					Until:      "01-01-2000",
				},
				initializedAt: time.Now(),
			},
			want: "SELECT * FROM journal " +
				"INTERSECT SELECT * FROM journal WHERE message_id='filtered-id' " +
				"INTERSECT SELECT * FROM journal WHERE event='database-changed' " +
				"INTERSECT SELECT * FROM journal WHERE subject='/etc/openvswitch/conf.db' " +
				"INTERSECT SELECT * FROM journal WHERE sent>='01-01-1970' " +
				"INTERSECT SELECT * FROM journal WHERE sent<='01-01-2000' " +
				"ORDER BY sent",
		},
	}

	for _, test := range tests {
		t.Run(test.description, func(t *testing.T) {
			query, err := buildDynamicGetEntriesQuery(test.input.filter, test.input.initializedAt)
			if err != nil {
				t.Fatal(err)
			}
			if !cmp.Equal(query, test.want) {
				t.Errorf("%#v != %#v", query, test.want)
			}
		})
	}
}
