// Package journal stores observed environment events in a SQLite database,
// preserving them across agent sessions.
package journal

import (
	"bytes"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"reflect"
	"text/template"
	"time"

	"git.sr.ht/~spc/go-log"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3"
	"github.com/ovsenv/ovsenv"
)

//go:embed migrations/*.sql
var embeddedMigrationData embed.FS

// Journal is a data structure representing the collection of environment
// events observed by the agent. It also stores the date time of when the
// journal was initialized to distinguish events of the active session from
// events persisted by earlier sessions.
type Journal struct {
	database      *sql.DB
	initializedAt time.Time
	lastUpdated   time.Time
}

// Filter is a data structure representing the filtering options that are
// used when journal entries are retrieved.
type Filter struct {
	Persistent     bool           `json:"persistent"`
	MessageID      string         `json:"message_id"`
	Event          string         `json:"event"`
	Subject        string         `json:"subject"`
	Since          string         `json:"since"`
	Until          string         `json:"until"`
	TruncateFields map[string]int `json:"truncate_fields"`
}

type errorJournal struct {
	err error
}

func (e *errorJournal) Error() string {
	return fmt.Sprintf("%v", e.err)
}

func (e *errorJournal) Is(o error) bool {
	return reflect.TypeOf(e) == reflect.TypeOf(o)
}

// Open initializes a journal sqlite database consisting of a persistent
// table that maintains event entries across sessions.
func Open(databaseFilePath string) (*Journal, error) {
	db, err := sql.Open("sqlite3", databaseFilePath)
	if err != nil {
		return nil, fmt.Errorf("database object not created: %w", err)
	}
	if err = migrateJournalDB(db, databaseFilePath); err != nil {
		return nil, fmt.Errorf("database migration error: %w", err)
	}

	initTime := time.Now().UTC()
	journal := Journal{database: db, initializedAt: initTime, lastUpdated: initTime}
	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("journal database not connected: %w", err)
	}

	return &journal, nil
}

// Close closes the journal database.
func (j *Journal) Close() error {
	return j.database.Close()
}

// migrateJournalDB handles the migration of the journal database and ensures
// the schema is up to date on each session start.
func migrateJournalDB(db *sql.DB, databaseFilePath string) error {
	databaseDriver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("database driver not initialized: %w", err)
	}
	migrationDriver, err := iofs.New(embeddedMigrationData, "migrations")
	if err != nil {
		return fmt.Errorf("embedded migration data not found: %w", err)
	}
	migration, err := migrate.NewWithInstance(
		"iofs",
		migrationDriver,
		databaseFilePath,
		databaseDriver,
	)
	if err != nil {
		return fmt.Errorf("database migration not initialized: %w", err)
	}
	if err = migration.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("database migration failed: %w", err)
	}
	return nil
}

// AddEntry adds a new event entry to the persistent table in the database.
func (j *Journal) AddEntry(entry ovsenv.EnvironmentEvent) error {
	const insertEntryTemplate string = `INSERT INTO journal (
		message_id, sent, event, subject, data)
		values (?,?,?,?,?)`

	insertAction, err := j.database.Prepare(insertEntryTemplate)
	if err != nil {
		return fmt.Errorf(
			"cannot prepare statement for 'journal' table: %w",
			err,
		)
	}
	defer insertAction.Close()

	// JSON-encode the event data to make it compatible for database insertion.
	encodedEventData, err := json.Marshal(entry.Data)
	if err != nil {
		return fmt.Errorf(
			"cannot encode event data for 'journal' table: %w",
			err,
		)
	}

	persistentResult, err := insertAction.Exec(
		entry.MessageID,
		entry.Sent,
		string(entry.Name),
		entry.Subject,
		string(encodedEventData),
	)
	if err != nil {
		return fmt.Errorf(
			"could not insert journal entry into 'journal' table: %w",
			err,
		)
	}

	entryID, err := persistentResult.LastInsertId()
	if err != nil {
		return fmt.Errorf(
			"could not select last insert ID '%v' for 'journal' table: %w",
			entryID,
			err,
		)
	}
	j.lastUpdated = time.Now().UTC()

	log.Debugf("new journal entry (id: %v) added: '%v'", entryID, entry.MessageID)

	return nil
}

// GetEntries retrieves a list of all the entries in the journal database
// that meet the criteria of the provided filter.
func (j *Journal) GetEntries(filter Filter) ([]map[string]string, error) {
	entries := []map[string]string{}
	queryString, err := buildDynamicGetEntriesQuery(filter, j.initializedAt)
	if err != nil {
		return nil, fmt.Errorf("cannot build dynamic sql query: %w", err)
	}

	preparedQuery, err := j.database.Prepare(queryString)
	if err != nil {
		return nil, fmt.Errorf("cannot prepare query to retrieve journal entries: %w", err)
	}
	defer preparedQuery.Close()

	rows, err := preparedQuery.Query()
	if err != nil {
		return nil, fmt.Errorf("cannot execute query to retrieve journal entries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var rowID int
		var messageID string
		var sent time.Time
		var event string
		var subject string
		var eventData string

		err := rows.Scan(
			&rowID,
			&messageID,
			&sent,
			&event,
			&subject,
			&eventData,
		)
		if err != nil {
			return nil, fmt.Errorf("cannot scan journal entry columns: %w", err)
		}

		// Truncate data fields
		if len(filter.TruncateFields) > 0 {
			err := truncateEventDataFields(&eventData, filter.TruncateFields)
			if err != nil {
				return nil, fmt.Errorf("cannot truncate data field: %w", err)
			}
		}

		// Convert the entry properties into a string format and append to the list of entries.
		newEntry := map[string]string{
			"message_id": messageID,
			"sent":       sent.String(),
			"event":      event,
			"subject":    subject,
			"data":       eventData,
		}
		entries = append(entries, newEntry)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("cannot iterate queried journal entries: %w", err)
	}

	if len(entries) == 0 {
		return nil, &errorJournal{fmt.Errorf("no journal entries found")}
	}

	return entries, nil
}

// truncateEventDataFields is a utility method that truncates journal event
// data fields by the lengths specified in the journal filter. This process
// requires unmarshalling the event data, extracting the specified field (if
// any), and truncating the content of the field to the maximum length.
func truncateEventDataFields(eventData *string, truncateOpts map[string]int) error {
	var data map[string]string
	err := json.Unmarshal([]byte(*eventData), &data)
	if err != nil {
		return fmt.Errorf("cannot unmarshal event data: %w", err)
	}

	for field, length := range truncateOpts {
		fieldContent, ok := data[field]
		if !ok {
			log.Debugf("cannot find specified field to truncate: %v", field)
			continue
		}
		if len(fieldContent) >= length && length >= 0 {
			data[field] = fmt.Sprintf("%+v...", data[field][:length])
		}
	}

	truncatedEventData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf(
			"cannot marshal event data after truncating data: %w",
			err,
		)
	}
	*eventData = string(truncatedEventData)
	return nil
}

// buildDynamicGetEntriesQuery is a utility method that builds the dynamic
// sql query required to filter journal entries from the journal database
// when they are retrieved in the 'GetEntries' method.
func buildDynamicGetEntriesQuery(filter Filter, initializedAt time.Time) (string, error) {
	queryTemplate := template.New("dynamicGetEntriesQuery")
	queryTemplateParse, err := queryTemplate.Parse(
		`SELECT * FROM journal ` +
			`{{if .MessageID}}INTERSECT SELECT * FROM journal WHERE message_id='{{.MessageID}}' {{end}}` +
			`{{if .Event}}INTERSECT SELECT * FROM journal WHERE event='{{.Event}}' {{end}}` +
			`{{if .Subject}}INTERSECT SELECT * FROM journal WHERE subject='{{.Subject}}' {{end}}` +
			`{{if .Since}}INTERSECT SELECT * FROM journal WHERE sent>='{{.Since}}' {{end}}` +
			`{{if .Until}}INTERSECT SELECT * FROM journal WHERE sent<='{{.Until}}' {{end}}` +
			`{{if not .Persistent}}INTERSECT SELECT * FROM journal WHERE sent>='{{.InitializedAt}}' {{end}}` +
			`ORDER BY sent`,
	)
	if err != nil {
		return "", fmt.Errorf("cannot parse query template parameters: %w", err)
	}

	var compiledQuery bytes.Buffer
	err = queryTemplateParse.Execute(&compiledQuery,
		struct {
			InitializedAt string
			Persistent    bool
			MessageID     string
			Event         string
			Subject       string
			Since         string
			Until         string
		}{
			initializedAt.String(), filter.Persistent,
			filter.MessageID, filter.Event, filter.Subject, filter.Since, filter.Until,
		})
	if err != nil {
		return "", fmt.Errorf("cannot compile query template: %w", err)
	}
	return compiledQuery.String(), nil
}
