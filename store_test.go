package ovsenv

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestReplaceSnapshot(t *testing.T) {
	t0 := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	t1 := t0.Add(5 * time.Minute)

	dirs := Dirs{
		RunDir: "/run/openvswitch",
		DbDir:  "/etc/openvswitch",
	}

	tests := []struct {
		description string
		snapshots   []*Snapshot
		want        [][]EnvironmentEvent
	}{
		{
			description: "initial snapshot emits appearance events",
			snapshots: []*Snapshot{
				{
					Taken: t0,
					Dirs:  dirs,
					Services: []Service{
						{Name: "ovs-vswitchd", Pid: 100, PidFile: "/run/openvswitch/ovs-vswitchd.pid", Alive: true},
						{Name: "ovsdb-server", Pid: 99, PidFile: "/run/openvswitch/ovsdb-server.pid", Alive: true},
					},
					Databases: []Database{
						{Path: "/etc/openvswitch/conf.db", Size: 1024, Modified: t0},
					},
					Sockets: []Socket{
						{Path: "/run/openvswitch/db.sock"},
					},
				},
			},
			want: [][]EnvironmentEvent{
				{
					{
						Sent:    t0,
						Name:    EventNameServiceUp,
						Subject: "ovs-vswitchd",
						Data:    map[string]string{"pid": "100", "pidfile": "/run/openvswitch/ovs-vswitchd.pid"},
					},
					{
						Sent:    t0,
						Name:    EventNameServiceUp,
						Subject: "ovsdb-server",
						Data:    map[string]string{"pid": "99", "pidfile": "/run/openvswitch/ovsdb-server.pid"},
					},
					{
						Sent:    t0,
						Name:    EventNameDatabaseAdded,
						Subject: "/etc/openvswitch/conf.db",
						Data:    map[string]string{"size_bytes": "1024"},
					},
					{
						Sent:    t0,
						Name:    EventNameSocketAdded,
						Subject: "/run/openvswitch/db.sock",
					},
				},
			},
		},
		{
			description: "unchanged snapshot emits no events",
			snapshots: []*Snapshot{
				{
					Taken: t0,
					Dirs:  dirs,
					Services: []Service{
						{Name: "ovs-vswitchd", Pid: 100, Alive: true},
					},
				},
				{
					Taken: t1,
					Dirs:  dirs,
					Services: []Service{
						{Name: "ovs-vswitchd", Pid: 100, Alive: true},
					},
				},
			},
			want: [][]EnvironmentEvent{
				{
					{
						Sent:    t0,
						Name:    EventNameServiceUp,
						Subject: "ovs-vswitchd",
						Data:    map[string]string{"pid": "100", "pidfile": ""},
					},
				},
				{},
			},
		},
		{
			description: "service restart emits service-up with previous pid",
			snapshots: []*Snapshot{
				{
					Taken: t0,
					Dirs:  dirs,
					Services: []Service{
						{Name: "ovs-vswitchd", Pid: 100, Alive: true},
					},
				},
				{
					Taken: t1,
					Dirs:  dirs,
					Services: []Service{
						{Name: "ovs-vswitchd", Pid: 200, Alive: true},
					},
				},
			},
			want: [][]EnvironmentEvent{
				{
					{
						Sent:    t0,
						Name:    EventNameServiceUp,
						Subject: "ovs-vswitchd",
						Data:    map[string]string{"pid": "100", "pidfile": ""},
					},
				},
				{
					{
						Sent:    t1,
						Name:    EventNameServiceUp,
						Subject: "ovs-vswitchd",
						Data:    map[string]string{"pid": "200", "previous_pid": "100", "pidfile": ""},
					},
				},
			},
		},
		{
			description: "dead process emits service-down",
			snapshots: []*Snapshot{
				{
					Taken: t0,
					Dirs:  dirs,
					Services: []Service{
						{Name: "ovs-vswitchd", Pid: 100, Alive: true},
					},
				},
				{
					Taken: t1,
					Dirs:  dirs,
					Services: []Service{
						{Name: "ovs-vswitchd", Pid: 100, Alive: false},
					},
				},
			},
			want: [][]EnvironmentEvent{
				{
					{
						Sent:    t0,
						Name:    EventNameServiceUp,
						Subject: "ovs-vswitchd",
						Data:    map[string]string{"pid": "100", "pidfile": ""},
					},
				},
				{
					{
						Sent:    t1,
						Name:    EventNameServiceDown,
						Subject: "ovs-vswitchd",
						Data:    map[string]string{"pid": "100", "pidfile": ""},
					},
				},
			},
		},
		{
			description: "database growth emits database-changed",
			snapshots: []*Snapshot{
				{
					Taken: t0,
					Dirs:  dirs,
					Databases: []Database{
						{Path: "/etc/openvswitch/conf.db", Size: 1024, Modified: t0},
					},
				},
				{
					Taken: t1,
					Dirs:  dirs,
					Databases: []Database{
						{Path: "/etc/openvswitch/conf.db", Size: 2048, Modified: t1},
					},
				},
			},
			want: [][]EnvironmentEvent{
				{
					{
						Sent:    t0,
						Name:    EventNameDatabaseAdded,
						Subject: "/etc/openvswitch/conf.db",
						Data:    map[string]string{"size_bytes": "1024"},
					},
				},
				{
					{
						Sent:    t1,
						Name:    EventNameDatabaseChanged,
						Subject: "/etc/openvswitch/conf.db",
						Data:    map[string]string{"size_bytes": "2048", "previous_size_bytes": "1024"},
					},
				},
			},
		},
		{
			description: "empty snapshot emits removal events",
			snapshots: []*Snapshot{
				{
					Taken: t0,
					Dirs:  dirs,
					Services: []Service{
						{Name: "ovs-vswitchd", Pid: 100, Alive: true},
					},
					Databases: []Database{
						{Path: "/etc/openvswitch/conf.db", Size: 1024, Modified: t0},
					},
					Sockets: []Socket{
						{Path: "/run/openvswitch/db.sock"},
					},
				},
				{
					Taken: t1,
					Dirs:  dirs,
				},
			},
			want: [][]EnvironmentEvent{
				{
					{
						Sent:    t0,
						Name:    EventNameServiceUp,
						Subject: "ovs-vswitchd",
						Data:    map[string]string{"pid": "100", "pidfile": ""},
					},
					{
						Sent:    t0,
						Name:    EventNameDatabaseAdded,
						Subject: "/etc/openvswitch/conf.db",
						Data:    map[string]string{"size_bytes": "1024"},
					},
					{
						Sent:    t0,
						Name:    EventNameSocketAdded,
						Subject: "/run/openvswitch/db.sock",
					},
				},
				{
					{
						Sent:    t1,
						Name:    EventNameServiceDown,
						Subject: "ovs-vswitchd",
						Data:    map[string]string{"pid": "100"},
					},
					{
						Sent:    t1,
						Name:    EventNameDatabaseRemoved,
						Subject: "/etc/openvswitch/conf.db",
					},
					{
						Sent:    t1,
						Name:    EventNameSocketRemoved,
						Subject: "/run/openvswitch/db.sock",
					},
				},
			},
		},
	}

	opts := []cmp.Option{
		cmpopts.IgnoreFields(EnvironmentEvent{}, "MessageID"),
		cmpopts.EquateEmpty(),
	}

	for _, test := range tests {
		t.Run(test.description, func(t *testing.T) {
			db, err := NewDatastore()
			if err != nil {
				t.Fatal(err)
			}

			for i, snap := range test.snapshots {
				got, err := ReplaceSnapshot(db, snap)
				if err != nil {
					t.Fatal(err)
				}
				if !cmp.Equal(got, test.want[i], opts...) {
					t.Errorf("snapshot %v: %v", i, cmp.Diff(test.want[i], got, opts...))
				}
			}
		})
	}
}

func TestQueryService(t *testing.T) {
	db, err := NewDatastore()
	if err != nil {
		t.Fatal(err)
	}

	snap := Snapshot{
		Taken: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		Services: []Service{
			{Name: "ovsdb-server", Pid: 99, Alive: true},
			{Name: "ovs-vswitchd", Pid: 100, Alive: true},
		},
	}
	if _, err := ReplaceSnapshot(db, &snap); err != nil {
		t.Fatal(err)
	}

	t.Run("found", func(t *testing.T) {
		got, err := QueryService(db, "ovs-vswitchd")
		if err != nil {
			t.Fatal(err)
		}
		want := &Service{Name: "ovs-vswitchd", Pid: 100, Alive: true}
		if !cmp.Equal(got, want) {
			t.Errorf("%v", cmp.Diff(want, got))
		}
	})

	t.Run("missing", func(t *testing.T) {
		got, err := QueryService(db, "ovs-testcontroller")
		if err != nil {
			t.Fatal(err)
		}
		if got != nil {
			t.Errorf("%v != nil", got)
		}
	})

	t.Run("all", func(t *testing.T) {
		got, err := QueryServices(db)
		if err != nil {
			t.Fatal(err)
		}
		want := []Service{
			{Name: "ovs-vswitchd", Pid: 100, Alive: true},
			{Name: "ovsdb-server", Pid: 99, Alive: true},
		}
		if !cmp.Equal(got, want) {
			t.Errorf("%v", cmp.Diff(want, got))
		}
	})
}
