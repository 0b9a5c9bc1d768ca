package flagx

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterArgs(t *testing.T) {
	configFlags := []string{"-c", "-config"}

	cases := map[string]struct {
		args    []string
		allowed []string
		want    []string
	}{
		"separate value": {
			args:    []string{"-c", "server.json", "-a", ":3000"},
			allowed: configFlags,
			want:    []string{"-c", "server.json"},
		},
		"equals form": {
			args:    []string{"-config=server.json", "-store", "s3"},
			allowed: configFlags,
			want:    []string{"-config=server.json"},
		},
		"equals form keeps dash value": {
			args:    []string{"-config=-odd.json"},
			allowed: configFlags,
			want:    []string{"-config=-odd.json"},
		},
		"dangling flag": {
			args:    []string{"-c"},
			allowed: configFlags,
			want:    []string{"-c"},
		},
		"next flag is not a value": {
			args:    []string{"-c", "-config=alt.json"},
			allowed: configFlags,
			want:    []string{"-c", "-config=alt.json"},
		},
		"server flags kept in order": {
			args:    []string{"-c", "x.json", "-a", ":4000", "-master-token", "m", "-l", "debug"},
			allowed: []string{"-a", "-master-token"},
			want:    []string{"-a", ":4000", "-master-token", "m"},
		},
		"repeated flag": {
			args:    []string{"-t", "one", "-t", "two"},
			allowed: []string{"-t"},
			want:    []string{"-t", "one", "-t", "two"},
		},
		"nothing allowed matches": {
			args:    []string{"-x", "1", "positional"},
			allowed: configFlags,
			want:    []string{},
		},
		"no args": {
			args:    nil,
			allowed: configFlags,
			want:    []string{},
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, FilterArgs(tc.args, tc.allowed))
		})
	}
}

func TestConfigFileFlag(t *testing.T) {
	orig := os.Args
	t.Cleanup(func() { os.Args = orig })

	cases := []struct {
		name string
		args []string
		env  string
		want string
	}{
		{"short flag", []string{"-c", "/srv/chinbo.json"}, "", "/srv/chinbo.json"},
		{"long flag", []string{"-config", "/srv/chinbo.json"}, "", "/srv/chinbo.json"},
		{"last flag wins", []string{"-c", "a.json", "-config", "b.json"}, "", "b.json"},
		{"unrelated flags", []string{"-a", ":3000"}, "", ""},
		{"environment fallback", nil, "/etc/chinbo/server.json", "/etc/chinbo/server.json"},
		{"flag beats environment", []string{"-c", "local.json"}, "/etc/chinbo/server.json", "local.json"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(ConfigFileEnv, tc.env)
			os.Args = append([]string{"chinbo-server"}, tc.args...)
			assert.Equal(t, tc.want, ConfigFileFlag())
		})
	}
}
