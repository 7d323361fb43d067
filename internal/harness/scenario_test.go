package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalScenario = `
name: minimal
description: "one completion"
start: "2026-10-18"
setup:
  - action: create
    args: { name: Read }
flow:
  - invoke: complete
    args: { habit: habit-1 }
    expect:
      case: ok
assertions:
  - type: journal_count
    kind: habit.completed
    count: 1
`

func TestParseScenario_Minimal(t *testing.T) {
	s, err := ParseScenario([]byte(minimalScenario))
	require.NoError(t, err)

	assert.Equal(t, "minimal", s.Name)
	assert.Equal(t, "2026-10-18", s.Start)
	require.Len(t, s.Setup, 1)
	assert.Equal(t, "create", s.Setup[0].Action)
	assert.Equal(t, "Read", s.Setup[0].Args["name"])
	require.Len(t, s.Flow, 1)
	require.NotNil(t, s.Flow[0].Expect)
	assert.Equal(t, CaseOK, s.Flow[0].Expect.Case)
	require.Len(t, s.Assertions, 1)
	assert.Equal(t, 1, s.Assertions[0].Count)
}

func TestParseScenario_UnknownFieldRejected(t *testing.T) {
	_, err := ParseScenario([]byte(minimalScenario + "assertion: []\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "missing name",
			yaml: `
description: d
start: "2026-10-18"
flow: [{invoke: rollover}]
assertions: [{type: journal_count, kind: rollover.ran}]
`,
			want: "name is required",
		},
		{
			name: "bad start",
			yaml: `
name: n
description: d
start: "18/10/2026"
flow: [{invoke: rollover}]
assertions: [{type: journal_count, kind: rollover.ran}]
`,
			want: "start",
		},
		{
			name: "bad time",
			yaml: `
name: n
description: d
start: "2026-10-18"
time: "25:00"
flow: [{invoke: rollover}]
assertions: [{type: journal_count, kind: rollover.ran}]
`,
			want: "must be HH:MM",
		},
		{
			name: "empty flow",
			yaml: `
name: n
description: d
start: "2026-10-18"
flow: []
assertions: [{type: journal_count, kind: rollover.ran}]
`,
			want: "flow list is required",
		},
		{
			name: "unknown action",
			yaml: `
name: n
description: d
start: "2026-10-18"
flow: [{invoke: teleport}]
assertions: [{type: journal_count, kind: rollover.ran}]
`,
			want: `unknown action "teleport"`,
		},
		{
			name: "expect without case",
			yaml: `
name: n
description: d
start: "2026-10-18"
flow: [{invoke: rollover, expect: {result: {ran: true}}}]
assertions: [{type: journal_count, kind: rollover.ran}]
`,
			want: "case is required",
		},
		{
			name: "unknown assertion type",
			yaml: `
name: n
description: d
start: "2026-10-18"
flow: [{invoke: rollover}]
assertions: [{type: trace_contains}]
`,
			want: `unknown assertion type "trace_contains"`,
		},
		{
			name: "final_state without expect",
			yaml: `
name: n
description: d
start: "2026-10-18"
flow: [{invoke: rollover}]
assertions: [{type: final_state, state: stats}]
`,
			want: "expect is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadScenarioWithBasePath_ResolvesRules(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rules.cue"), []byte("achievements: []\n"), 0o644))
	path := filepath.Join(dir, "s.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimalScenario+"rules: rules.cue\n"), 0o644))

	s, err := LoadScenarioWithBasePath(path, dir)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "rules.cue"), s.Rules)
}

func TestLoadScenario_MissingRules(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "s.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimalScenario+"rules: nowhere.cue\n"), 0o644))

	_, err := LoadScenarioWithBasePath(path, dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rules file not found")
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}
