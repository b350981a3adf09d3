package ovsenv

import (
	"os"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// clearDirsEnvironment unsets all directory environment variables for the
// duration of the test, restoring original values during cleanup.
func clearDirsEnvironment(t *testing.T) {
	t.Helper()

	for _, key := range []string{
		EnvPackageDataDir,
		EnvRunDir,
		EnvLogDir,
		EnvBinDir,
		EnvDbDir,
		EnvSysconfDir,
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestDirsFromEnvironment(t *testing.T) {
	tests := []struct {
		description string
		env         map[string]string
		want        Dirs
	}{
		{
			description: "defaults when environment is empty",
			env:         map[string]string{},
			want: Dirs{
				PackageDataDir: DefaultPackageDataDir,
				RunDir:         DefaultRunDir,
				LogDir:         DefaultLogDir,
				BinDir:         DefaultBinDir,
				DbDir:          DefaultDbDir,
			},
		},
		{
			description: "environment overrides defaults",
			env: map[string]string{
				EnvPackageDataDir: "/opt/ovs/share/openvswitch",
				EnvRunDir:         "/opt/ovs/var/run/openvswitch",
				EnvLogDir:         "/opt/ovs/var/log/openvswitch",
				EnvBinDir:         "/opt/ovs/bin",
				EnvDbDir:          "/opt/ovs/etc/openvswitch",
			},
			want: Dirs{
				PackageDataDir: "/opt/ovs/share/openvswitch",
				RunDir:         "/opt/ovs/var/run/openvswitch",
				LogDir:         "/opt/ovs/var/log/openvswitch",
				BinDir:         "/opt/ovs/bin",
				DbDir:          "/opt/ovs/etc/openvswitch",
			},
		},
		{
			description: "empty string overrides pass through",
			env: map[string]string{
				EnvPackageDataDir: "",
				EnvRunDir:         "",
				EnvLogDir:         "",
				EnvBinDir:         "",
			},
			want: Dirs{
				PackageDataDir: "",
				RunDir:         "",
				LogDir:         "",
				BinDir:         "",
				DbDir:          DefaultDbDir,
			},
		},
		{
			description: "database directory derived from sysconfdir",
			env: map[string]string{
				EnvSysconfDir: "/etc",
			},
			want: Dirs{
				PackageDataDir: DefaultPackageDataDir,
				RunDir:         DefaultRunDir,
				LogDir:         DefaultLogDir,
				BinDir:         DefaultBinDir,
				DbDir:          "/etc/openvswitch",
			},
		},
		{
			description: "explicit database directory wins over sysconfdir",
			env: map[string]string{
				EnvDbDir:      "/var/lib/openvswitch",
				EnvSysconfDir: "/etc",
			},
			want: Dirs{
				PackageDataDir: DefaultPackageDataDir,
				RunDir:         DefaultRunDir,
				LogDir:         DefaultLogDir,
				BinDir:         DefaultBinDir,
				DbDir:          "/var/lib/openvswitch",
			},
		},
		{
			description: "empty database directory falls through to sysconfdir",
			env: map[string]string{
				EnvDbDir:      "",
				EnvSysconfDir: "/srv/etc",
			},
			want: Dirs{
				PackageDataDir: DefaultPackageDataDir,
				RunDir:         DefaultRunDir,
				LogDir:         DefaultLogDir,
				BinDir:         DefaultBinDir,
				DbDir:          "/srv/etc/openvswitch",
			},
		},
		{
			description: "empty sysconfdir falls through to default",
			env: map[string]string{
				EnvDbDir:      "",
				EnvSysconfDir: "",
			},
			want: Dirs{
				PackageDataDir: DefaultPackageDataDir,
				RunDir:         DefaultRunDir,
				LogDir:         DefaultLogDir,
				BinDir:         DefaultBinDir,
				DbDir:          DefaultDbDir,
			},
		},
		{
			description: "sysconfdir value is not path cleaned",
			env: map[string]string{
				EnvSysconfDir: "/etc/",
			},
			want: Dirs{
				PackageDataDir: DefaultPackageDataDir,
				RunDir:         DefaultRunDir,
				LogDir:         DefaultLogDir,
				BinDir:         DefaultBinDir,
				DbDir:          "/etc//openvswitch",
			},
		},
		{
			description: "sysconfdir leaves other directories alone",
			env: map[string]string{
				EnvSysconfDir: "/etc",
				EnvRunDir:     "/run/openvswitch",
			},
			want: Dirs{
				PackageDataDir: DefaultPackageDataDir,
				RunDir:         "/run/openvswitch",
				LogDir:         DefaultLogDir,
				BinDir:         DefaultBinDir,
				DbDir:          "/etc/openvswitch",
			},
		},
	}

	for _, test := range tests {
		t.Run(test.description, func(t *testing.T) {
			clearDirsEnvironment(t)
			for k, v := range test.env {
				t.Setenv(k, v)
			}

			got := DirsFromEnvironment()

			if !cmp.Equal(got, test.want) {
				t.Errorf("%v", cmp.Diff(test.want, got))
			}
		})
	}
}

func TestDirsFromEnvironmentStable(t *testing.T) {
	clearDirsEnvironment(t)
	t.Setenv(EnvSysconfDir, "/etc")

	first := DirsFromEnvironment()
	second := DirsFromEnvironment()

	if !cmp.Equal(first, second) {
		t.Errorf("%v", cmp.Diff(first, second))
	}
}
