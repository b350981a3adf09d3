package bus

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/ovsenv/ovsenv"
	"github.com/ovsenv/ovsenv/ipc"
)

func TestEventCodeFor(t *testing.T) {
	tests := []struct {
		description string
		input       ovsenv.EventName
		want        ipc.EventCode
	}{
		{
			description: "scan completion",
			input:       ovsenv.EventNameScan,
			want:        ipc.EventCodeScanCompleted,
		},
		{
			description: "service up",
			input:       ovsenv.EventNameServiceUp,
			want:        ipc.EventCodeServiceUp,
		},
		{
			description: "database changed",
			input:       ovsenv.EventNameDatabaseChanged,
			want:        ipc.EventCodeDatabaseChanged,
		},
		{
			description: "socket removed",
			input:       ovsenv.EventNameSocketRemoved,
			want:        ipc.EventCodeSocketRemoved,
		},
		{
			description: "server-bound events have no bus representation",
			input:       ovsenv.EventNamePong,
			want:        0,
		},
	}

	for _, test := range tests {
		t.Run(test.description, func(t *testing.T) {
			got := eventCodeFor(test.input)

			if !cmp.Equal(got, test.want) {
				t.Errorf("%#v != %#v", got, test.want)
			}
		})
	}
}
