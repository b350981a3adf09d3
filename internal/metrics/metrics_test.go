package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/ovsenv/ovsenv"
)

func TestUpdateSnapshot(t *testing.T) {
	UpdateSnapshot(&ovsenv.Snapshot{
		Services: []ovsenv.Service{
			{Name: "ovs-vswitchd", Pid: 101, Alive: true},
			{Name: "ovsdb-server", Pid: 102, Alive: false},
		},
		Databases: []ovsenv.Database{
			{Path: "/var/lib/test/conf.db", Size: 4096},
		},
	})

	if got := testutil.ToFloat64(serviceUp.WithLabelValues("ovs-vswitchd")); got != 1 {
		t.Errorf("%#v != %#v", got, float64(1))
	}
	if got := testutil.ToFloat64(serviceUp.WithLabelValues("ovsdb-server")); got != 0 {
		t.Errorf("%#v != %#v", got, float64(0))
	}
	if got := testutil.ToFloat64(databaseSizeBytes.WithLabelValues("/var/lib/test/conf.db")); got != 4096 {
		t.Errorf("%#v != %#v", got, float64(4096))
	}

	// A snapshot without a previously seen service or database sweeps its
	// gauge away.
	UpdateSnapshot(&ovsenv.Snapshot{
		Services: []ovsenv.Service{
			{Name: "ovs-vswitchd", Pid: 101, Alive: true},
		},
	})

	if got := testutil.CollectAndCount(serviceUp); got != 1 {
		t.Errorf("%#v != %#v", got, 1)
	}
	if got := testutil.CollectAndCount(databaseSizeBytes); got != 0 {
		t.Errorf("%#v != %#v", got, 0)
	}
}

func TestObserveEvents(t *testing.T) {
	before := testutil.ToFloat64(eventsTotal.WithLabelValues(string(ovsenv.EventNameServiceUp)))

	ObserveEvents([]ovsenv.EnvironmentEvent{
		{Name: ovsenv.EventNameServiceUp, Subject: "ovs-vswitchd"},
		{Name: ovsenv.EventNameServiceUp, Subject: "ovsdb-server"},
		{Name: ovsenv.EventNameSocketAdded, Subject: "/run/test/db.sock"},
	})

	after := testutil.ToFloat64(eventsTotal.WithLabelValues(string(ovsenv.EventNameServiceUp)))
	if after-before != 2 {
		t.Errorf("%#v != %#v", after-before, float64(2))
	}
}
