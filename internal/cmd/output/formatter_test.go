package output

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ervinkurbegovic/jamfsync/internal/cmd/globals"
	"github.com/ervinkurbegovic/jamfsync/pkg/applier"
	"github.com/ervinkurbegovic/jamfsync/pkg/directory"
	"github.com/ervinkurbegovic/jamfsync/pkg/errors"
	"github.com/ervinkurbegovic/jamfsync/pkg/mapping"
	"github.com/ervinkurbegovic/jamfsync/pkg/plan"
	"github.com/ervinkurbegovic/jamfsync/pkg/session"
)

func TestParseFormat(t *testing.T) {
	for _, s := range []string{"table", "JSON", "yaml", "wide", ""} {
		_, err := ParseFormat(s)
		assert.NoError(t, err, s)
	}
	_, err := ParseFormat("xml")
	assert.True(t, errors.IsValidationError(err))
}

func TestDetectFormatExplicit(t *testing.T) {
	assert.Equal(t, FormatYAML, DetectFormat("YAML"))
}

func sampleResult() *session.Result {
	people := plan.New(directory.EntityPerson)
	people.Add(plan.Item{Action: plan.ActionCreate, Entity: directory.EntityPerson, IdentityKey: "alice@school.de"})
	return &session.Result{
		PassID: "p-1",
		State:  session.StateIdle,
		People: people,
		Report: &applier.Report{Created: 1},
	}
}

func TestFormatResult(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, FormatResult(&buf, sampleResult(), &globals.Flags{Output: "table"}))
	out := buf.String()
	assert.Contains(t, out, "alice@school.de")
	assert.Contains(t, out, "created")

	buf.Reset()
	require.NoError(t, FormatResult(&buf, sampleResult(), &globals.Flags{Output: "json"}))
	assert.Contains(t, buf.String(), `"pass_id": "p-1"`)

	buf.Reset()
	require.NoError(t, FormatResult(&buf, sampleResult(), &globals.Flags{Output: "yaml"}))
	assert.Contains(t, buf.String(), "pass_id: p-1")
}

func TestFormatEntries(t *testing.T) {
	entries := []mapping.Entry{{IdentityKey: "alice@school.de", EntityType: directory.EntityPerson, MirrorID: "7"}}

	var buf bytes.Buffer
	require.NoError(t, FormatEntries(&buf, entries, &globals.Flags{}))
	assert.Contains(t, buf.String(), "alice@school.de")

	buf.Reset()
	require.NoError(t, FormatEntries(&buf, entries, &globals.Flags{Output: "json"}))
	assert.Contains(t, buf.String(), `"mirror_id": "7"`)
}

func TestFormatSnapshot(t *testing.T) {
	snap := &directory.Snapshot{
		People: []directory.Person{{IdentityKey: "alice@school.de", MirrorID: "7", Origin: directory.OriginSystemGenerated}},
		Groups: []directory.Group{{Name: "5a", MirrorID: "c-1", StudentIDs: []string{"7"}}},
	}

	var buf bytes.Buffer
	require.NoError(t, FormatSnapshot(&buf, snap, &globals.Flags{}))
	assert.Contains(t, buf.String(), "alice@school.de")
	assert.Contains(t, buf.String(), "c-1")

	buf.Reset()
	require.NoError(t, FormatSnapshot(&buf, &directory.Snapshot{Groups: snap.Groups}, &globals.Flags{}))
	assert.NotContains(t, buf.String(), "alice@school.de")

	buf.Reset()
	require.NoError(t, FormatSnapshot(&buf, snap, &globals.Flags{Output: "json"}))
	assert.Contains(t, buf.String(), `"identity_key": "alice@school.de"`)
}

func TestTableFormatterReflection(t *testing.T) {
	type row struct {
		Name    string    `json:"name"`
		Seen    time.Time `json:"last_seen"`
		Ignored string    `json:"-"`
		hidden  string
	}

	var buf bytes.Buffer
	f := &TableFormatter{}
	require.NoError(t, f.Format(&buf, []row{{Name: "alice", Ignored: "x", hidden: "y"}}))
	out := strings.ToUpper(buf.String())
	assert.Contains(t, out, "LAST SEEN")
	assert.Contains(t, out, "ALICE")
	assert.NotContains(t, out, "IGNORED")

	buf.Reset()
	require.NoError(t, f.Format(&buf, &row{Name: "bob"}))
	assert.Contains(t, buf.String(), "bob")
}
