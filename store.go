package ovsenv

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/google/uuid"
	"github.com/hashicorp/go-memdb"
)

const (
	tableNameService  string = "service"
	tableNameDatabase string = "database"
	tableNameSocket   string = "socket"
	indexNameID       string = "id"
	indexNamePid      string = "pid"
)

// NewDatastore creates a new MemDB initialized with the application schema.
func NewDatastore() (*memdb.MemDB, error) {
	schema := &memdb.DBSchema{
		Tables: map[string]*memdb.TableSchema{
			tableNameService: {
				Name: tableNameService,
				Indexes: map[string]*memdb.IndexSchema{
					indexNameID: {
						Name:    indexNameID,
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "Name"},
					},
					indexNamePid: {
						Name:    indexNamePid,
						Unique:  false,
						Indexer: &memdb.IntFieldIndex{Field: "Pid"},
					},
				},
			},
			tableNameDatabase: {
				Name: tableNameDatabase,
				Indexes: map[string]*memdb.IndexSchema{
					indexNameID: {
						Name:    indexNameID,
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "Path"},
					},
				},
			},
			tableNameSocket: {
				Name: tableNameSocket,
				Indexes: map[string]*memdb.IndexSchema{
					indexNameID: {
						Name:    indexNameID,
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "Path"},
					},
				},
			},
		},
	}

	db, err := memdb.NewMemDB(schema)
	if err != nil {
		return nil, err
	}

	return db, nil
}

// ReplaceSnapshot stores the records of snap in db, replacing the records
// left there by the previous snapshot, and derives an event for every
// difference between the two. Derived events carry snap's timestamp.
func ReplaceSnapshot(db *memdb.MemDB, snap *Snapshot) ([]EnvironmentEvent, error) {
	txn := db.Txn(true)
	defer txn.Abort()

	var events []EnvironmentEvent

	newEvent := func(name EventName, subject string, data map[string]string) {
		events = append(events, EnvironmentEvent{
			MessageID: uuid.New().String(),
			Sent:      snap.Taken,
			Name:      name,
			Subject:   subject,
			Data:      data,
		})
	}

	previousServices := make(map[string]Service)
	it, err := txn.Get(tableNameService, indexNameID)
	if err != nil {
		return nil, fmt.Errorf("cannot read service table: %w", err)
	}
	for obj := it.Next(); obj != nil; obj = it.Next() {
		service := obj.(Service)
		previousServices[service.Name] = service
	}

	seenServices := make(map[string]bool)
	for _, service := range snap.Services {
		seenServices[service.Name] = true
		previous, ok := previousServices[service.Name]
		switch {
		case !ok:
			name := EventNameServiceDown
			if service.Alive {
				name = EventNameServiceUp
			}
			newEvent(name, service.Name, map[string]string{
				"pid":     strconv.Itoa(service.Pid),
				"pidfile": service.PidFile,
			})
		case previous.Alive != service.Alive:
			name := EventNameServiceDown
			if service.Alive {
				name = EventNameServiceUp
			}
			newEvent(name, service.Name, map[string]string{
				"pid":     strconv.Itoa(service.Pid),
				"pidfile": service.PidFile,
			})
		case previous.Pid != service.Pid:
			// A new pid under the same name is a restart.
			newEvent(EventNameServiceUp, service.Name, map[string]string{
				"pid":          strconv.Itoa(service.Pid),
				"previous_pid": strconv.Itoa(previous.Pid),
				"pidfile":      service.PidFile,
			})
		}
	}
	for _, name := range sortedKeys(previousServices) {
		if !seenServices[name] {
			newEvent(EventNameServiceDown, name, map[string]string{
				"pid": strconv.Itoa(previousServices[name].Pid),
			})
		}
	}

	previousDatabases := make(map[string]Database)
	it, err = txn.Get(tableNameDatabase, indexNameID)
	if err != nil {
		return nil, fmt.Errorf("cannot read database table: %w", err)
	}
	for obj := it.Next(); obj != nil; obj = it.Next() {
		database := obj.(Database)
		previousDatabases[database.Path] = database
	}

	seenDatabases := make(map[string]bool)
	for _, database := range snap.Databases {
		seenDatabases[database.Path] = true
		previous, ok := previousDatabases[database.Path]
		switch {
		case !ok:
			newEvent(EventNameDatabaseAdded, database.Path, map[string]string{
				"size_bytes": strconv.FormatInt(database.Size, 10),
			})
		case previous.Size != database.Size || !previous.Modified.Equal(database.Modified):
			newEvent(EventNameDatabaseChanged, database.Path, map[string]string{
				"size_bytes":          strconv.FormatInt(database.Size, 10),
				"previous_size_bytes": strconv.FormatInt(previous.Size, 10),
			})
		}
	}
	for _, path := range sortedKeys(previousDatabases) {
		if !seenDatabases[path] {
			newEvent(EventNameDatabaseRemoved, path, nil)
		}
	}

	previousSockets := make(map[string]Socket)
	it, err = txn.Get(tableNameSocket, indexNameID)
	if err != nil {
		return nil, fmt.Errorf("cannot read socket table: %w", err)
	}
	for obj := it.Next(); obj != nil; obj = it.Next() {
		socket := obj.(Socket)
		previousSockets[socket.Path] = socket
	}

	seenSockets := make(map[string]bool)
	for _, socket := range snap.Sockets {
		seenSockets[socket.Path] = true
		if _, ok := previousSockets[socket.Path]; !ok {
			newEvent(EventNameSocketAdded, socket.Path, nil)
		}
	}
	for _, path := range sortedKeys(previousSockets) {
		if !seenSockets[path] {
			newEvent(EventNameSocketRemoved, path, nil)
		}
	}

	for _, table := range []string{tableNameService, tableNameDatabase, tableNameSocket} {
		if _, err := txn.DeleteAll(table, indexNameID); err != nil {
			return nil, fmt.Errorf("cannot clear %v table: %w", table, err)
		}
	}
	for _, service := range snap.Services {
		if err := txn.Insert(tableNameService, service); err != nil {
			return nil, fmt.Errorf("cannot insert service record: %w", err)
		}
	}
	for _, database := range snap.Databases {
		if err := txn.Insert(tableNameDatabase, database); err != nil {
			return nil, fmt.Errorf("cannot insert database record: %w", err)
		}
	}
	for _, socket := range snap.Sockets {
		if err := txn.Insert(tableNameSocket, socket); err != nil {
			return nil, fmt.Errorf("cannot insert socket record: %w", err)
		}
	}

	txn.Commit()

	return events, nil
}

// QueryService returns the stored service record under name, or nil if the
// last snapshot did not contain one.
func QueryService(db *memdb.MemDB, name string) (*Service, error) {
	txn := db.Txn(false)
	defer txn.Abort()

	obj, err := txn.First(tableNameService, indexNameID, name)
	if err != nil {
		return nil, fmt.Errorf("cannot query service table: %w", err)
	}
	if obj == nil {
		return nil, nil
	}
	service := obj.(Service)
	return &service, nil
}

// QueryServices returns all stored service records, ordered by name.
func QueryServices(db *memdb.MemDB) ([]Service, error) {
	txn := db.Txn(false)
	defer txn.Abort()

	it, err := txn.Get(tableNameService, indexNameID)
	if err != nil {
		return nil, fmt.Errorf("cannot query service table: %w", err)
	}

	var services []Service
	for obj := it.Next(); obj != nil; obj = it.Next() {
		services = append(services, obj.(Service))
	}
	return services, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
