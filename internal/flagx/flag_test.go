package flagx

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		allowed []string
		want    []string
	}{
		{
			name:    "separate value",
			args:    []string{"-u", "https://x.supabase.co", "-k", "anon"},
			allowed: []string{"-u"},
			want:    []string{"-u", "https://x.supabase.co"},
		},
		{
			name:    "equals form",
			args:    []string{"-config=alt.json", "-u", "x"},
			allowed: []string{"-c", "-config"},
			want:    []string{"-config=alt.json"},
		},
		{
			name:    "order preserved",
			args:    []string{"-config=first.json", "-c", "second.json", "-x", "1"},
			allowed: []string{"-c", "-config"},
			want:    []string{"-config=first.json", "-c", "second.json"},
		},
		{
			name:    "unknown flags ignored",
			args:    []string{"-x", "1", "--y=2", "positional"},
			allowed: []string{"-c"},
			want:    []string{},
		},
		{
			name:    "trailing flag without value",
			args:    []string{"-c"},
			allowed: []string{"-c"},
			want:    []string{"-c"},
		},
		{
			name:    "value that looks like a flag is not consumed",
			args:    []string{"-c", "-k"},
			allowed: []string{"-c"},
			want:    []string{"-c"},
		},
		{
			name:    "positional value with equals is not a flag",
			args:    []string{"a=b", "-c", "x"},
			allowed: []string{"-c"},
			want:    []string{"-c", "x"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FilterArgs(tt.args, tt.allowed))
		})
	}
}

func withArgs(t *testing.T, args ...string) {
	t.Helper()
	orig := os.Args
	t.Cleanup(func() { os.Args = orig })
	os.Args = append([]string{"testbin"}, args...)
}

func TestJsonConfigFlags(t *testing.T) {
	withArgs(t, "-u", "x", "-config", "cfg.json")
	assert.Equal(t, "cfg.json", JsonConfigFlags())

	withArgs(t, "-c=short.json")
	assert.Equal(t, "short.json", JsonConfigFlags())

	withArgs(t, "-u", "x")
	assert.Equal(t, "", JsonConfigFlags())
}

func TestEnvFileFlags(t *testing.T) {
	withArgs(t, "-e", ".env.local", "-c", "cfg.json")
	assert.Equal(t, ".env.local", EnvFileFlags())

	withArgs(t)
	assert.Equal(t, "", EnvFileFlags())
}
