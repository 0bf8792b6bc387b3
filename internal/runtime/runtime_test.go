package runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLaunchSpecCloneIsIndependent(t *testing.T) {
	spec := LaunchSpec{
		Command: "python",
		Args:    []string{"app.py"},
		Env:     map[string]string{"PORT": "5000"},
	}

	dup := spec.Clone()
	dup.Args[0] = "other.py"
	dup.Env["PORT"] = "6000"

	assert.Equal(t, "app.py", spec.Args[0])
	assert.Equal(t, "5000", spec.Env["PORT"])
}

func TestLaunchSpecCommandLine(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		spec LaunchSpec
		want string
	}{
		"bare command": {
			spec: LaunchSpec{Command: "server"},
			want: "server",
		},
		"plain args": {
			spec: LaunchSpec{Command: "python", Args: []string{"app.py", "--port", "5000"}},
			want: "python app.py --port 5000",
		},
		"quoted args": {
			spec: LaunchSpec{Command: "sh", Args: []string{"-c", "sleep 10", ""}},
			want: `sh -c "sleep 10" ""`,
		},
	}

	for name, tc := range tests {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, tc.spec.CommandLine())
		})
	}
}
