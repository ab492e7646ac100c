package cli

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/ballotkeeper/internal/config"
	"github.com/dmitrijs2005/ballotkeeper/internal/store"
	"github.com/dmitrijs2005/ballotkeeper/internal/store/memstore"
)

// keepOpen lets one memstore outlive the App of a single invocation.
type keepOpen struct{ store.Engine }

func (keepOpen) Close() error { return nil }

type harness struct {
	t      *testing.T
	engine store.Engine
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{t: t, engine: keepOpen{memstore.New()}}

	oldOpen, oldTerm := openEngine, isTerminal
	openEngine = func(context.Context, *config.Config) (store.Engine, error) { return h.engine, nil }
	isTerminal = func(int) bool { return false }
	t.Cleanup(func() { openEngine, isTerminal = oldOpen, oldTerm })
	return h
}

func (h *harness) run(stdin string, args ...string) (code int, stdout, stderr string) {
	h.t.Helper()
	var out, errOut bytes.Buffer
	code = Execute(context.Background(), append([]string{"--engine", "memory"}, args...), strings.NewReader(stdin), &out, &errOut)
	return code, out.String(), errOut.String()
}

func (h *harness) mustRun(args ...string) string {
	h.t.Helper()
	code, out, errOut := h.run("", args...)
	require.Equal(h.t, 0, code, "stderr: %s", errOut)
	return strings.TrimSpace(out)
}

func TestVotingFlow(t *testing.T) {
	h := newHarness(t)

	ana := h.mustRun("student", "add", "--given", "Ana", "--family", "Rojas", "--external-id", "12345", "--course", "4A")
	beto := h.mustRun("student", "add", "--given", "Beto", "--family", "Soto", "--course", "4B")
	azul := h.mustRun("candidate", "add", "Lista Azul", "--list", "A")
	assert.True(t, strings.HasPrefix(ana, "student_12345_"), ana)
	assert.True(t, strings.HasPrefix(azul, "candidate_lista-azul_"), azul)

	h.mustRun("vote", "cast", ana, azul)
	h.mustRun("absent", beto)

	code, _, errOut := h.run("", "vote", "cast", ana, azul)
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "already voted")

	code, _, errOut = h.run("", "absent", ana)
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "already voted")

	status := h.mustRun("status")
	assert.Contains(t, status, "students 2, voted 1, absent 1, pending 0, participation 50.0%")
	assert.Contains(t, status, "Lista Azul")

	list := h.mustRun("student", "list", "--status", "voted")
	assert.Contains(t, list, ana)
	assert.NotContains(t, list, beto)

	out := h.mustRun("sync")
	assert.Contains(t, out, "0 students updated")
}

func TestErrorsAreDescribed(t *testing.T) {
	h := newHarness(t)

	code, _, errOut := h.run("", "student", "get", "student_nobody")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "Nothing matched")

	code, _, errOut = h.run("", "student", "add", "--given", "Ana")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "The data is invalid")

	code, _, errOut = h.run("", "--engine", "mongo", "student", "list")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "invalid engine")
}

func TestImportStudents(t *testing.T) {
	h := newHarness(t)
	file := filepath.Join(t.TempDir(), "roll.json")
	require.NoError(t, os.WriteFile(file, []byte(`[
		{"givenNames":"Ana","familyNames":"Rojas","course":"4A"},
		{"givenNames":"Beto"},
		{"givenNames":"Carla","familyNames":"Diaz","course":"4A"}
	]`), 0o600))

	out := h.mustRun("import", "students", file)
	assert.Contains(t, out, "imported 2 of 3 students")
	assert.Contains(t, out, "#1:")

	list := h.mustRun("student", "list", "--course", "4a", "--json")
	assert.Contains(t, list, "Rojas")
	assert.Contains(t, list, "Diaz")
}

func TestElectionSettings(t *testing.T) {
	h := newHarness(t)

	h.mustRun("election", "set", "2024", "Student Council", "--allow-blank=false")
	out := h.mustRun("election", "show")
	assert.Contains(t, out, `"title": "Student Council"`)
	assert.Contains(t, out, `"allowBlankVote": false`)

	s := h.mustRun("student", "add", "--given", "Ana", "--family", "Rojas")
	code, _, errOut := h.run("", "vote", "cast", s, "blank")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "blank votes are not allowed")
}

func TestSessions(t *testing.T) {
	h := newHarness(t)

	id := h.mustRun("session", "open", "Morning")
	assert.Contains(t, h.mustRun("status"), "open session: Morning")

	out := h.mustRun("session", "close", id)
	assert.Contains(t, out, id+" closed at")
	assert.NotContains(t, h.mustRun("status"), "open session")

	code, _, _ := h.run("", "session", "close", id)
	assert.Equal(t, 1, code)
}

func TestBackupEncryptedRoundTrip(t *testing.T) {
	h := newHarness(t)
	h.mustRun("student", "add", "--given", "Ana", "--family", "Rojas")
	file := filepath.Join(t.TempDir(), "backups", "full.json")

	code, out, errOut := h.run("s3cret\ns3cret\n", "backup", "export", file, "--encrypt")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "1 documents")

	code, _, errOut = h.run("s3cret\nother\n", "backup", "export", file, "--encrypt")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "do not match")

	// restore into an empty store
	h.engine = keepOpen{memstore.New()}
	code, out, errOut = h.run("s3cret\n", "backup", "import", file)
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "students: 1")
	assert.Contains(t, h.mustRun("student", "list"), "Rojas")

	code, _, errOut = h.run("wrong\n", "backup", "import", file)
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "The data is invalid")
}

func TestBackupPresignNeedsS3(t *testing.T) {
	h := newHarness(t)
	code, _, errOut := h.run("", "backup", "presign", filepath.Join(t.TempDir(), "b.json"))
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "only s3://")
}

func TestVersionDoesNotOpenStore(t *testing.T) {
	h := newHarness(t)
	openEngine = func(context.Context, *config.Config) (store.Engine, error) {
		return nil, errors.New("store must not be opened")
	}
	code, out, errOut := h.run("", "version")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "Build version:")
}

func TestShellSharesCache(t *testing.T) {
	h := newHarness(t)
	script := strings.Join([]string{
		`student add --given Ana --family "Rojas Soto"`,
		"student list",
		"student list",
		"student get nobody",
		"cache stats",
		"exit",
		"student list",
	}, "\n")

	code, out, errOut := h.run(script, "shell")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "Ana Rojas Soto")
	assert.Contains(t, out, `"hits": 1`)
	assert.Contains(t, out, "Bye!")
	assert.Contains(t, errOut, "Nothing matched", "errors do not end the shell")
}

func TestSQLiteEnginePersists(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "data", "votes.db")
	run := func(args ...string) string {
		t.Helper()
		var out, errOut bytes.Buffer
		code := Execute(context.Background(), append([]string{"--engine", "sqlite", "--dsn", dsn}, args...),
			strings.NewReader(""), &out, &errOut)
		require.Equal(t, 0, code, errOut.String())
		return out.String()
	}

	run("student", "add", "--given", "Ana", "--family", "Rojas")
	assert.Contains(t, run("student", "list"), "Ana Rojas")
}

func TestSplitArgs(t *testing.T) {
	tests := []struct {
		line string
		want []string
		err  bool
	}{
		{line: "student list", want: []string{"student", "list"}},
		{line: `  election set 2024 "Student Council" `, want: []string{"election", "set", "2024", "Student Council"}},
		{line: `candidate add 'Lista "Azul"'`, want: []string{"candidate", "add", `Lista "Azul"`}},
		{line: `vote cast a ""`, want: []string{"vote", "cast", "a", ""}},
		{line: "", want: nil},
		{line: `student add "Ana`, err: true},
	}
	for _, tt := range tests {
		got, err := splitArgs(tt.line)
		if tt.err {
			assert.Error(t, err, tt.line)
			continue
		}
		require.NoError(t, err, tt.line)
		assert.Equal(t, tt.want, got, tt.line)
	}
}

func TestGetPassphrase_Terminal(t *testing.T) {
	oldTerm, oldRead := isTerminal, readPassword
	t.Cleanup(func() { isTerminal, readPassword = oldTerm, oldRead })
	isTerminal = func(int) bool { return true }
	readPassword = func(int) ([]byte, error) { return []byte("hunter2"), nil }

	var out bytes.Buffer
	got, err := GetPassphrase(bufio.NewReader(strings.NewReader("")), "Backup passphrase", &out)
	require.NoError(t, err)
	assert.Equal(t, []byte("hunter2"), got)
	assert.Equal(t, "Backup passphrase: \n", out.String())

	readPassword = func(int) ([]byte, error) { return nil, errors.New("boom") }
	_, err = GetPassphrase(bufio.NewReader(strings.NewReader("")), "Backup passphrase", &out)
	assert.Error(t, err)
}

func TestGetSimpleText(t *testing.T) {
	var out bytes.Buffer
	got, err := GetSimpleText(bufio.NewReader(strings.NewReader("lastline")), "Name?", &out)
	require.NoError(t, err)
	assert.Equal(t, "lastline", got)
	assert.Equal(t, "Name?\n> ", out.String())
}
