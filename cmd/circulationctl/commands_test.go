package main

import (
	"bytes"
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kevinaaaquil/circulation/secret"
	"github.com/kevinaaaquil/circulation/sqlstore"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func sqliteEnv(t *testing.T) {
	t.Setenv("STORE_DRIVER", "sqlite3")
	t.Setenv("SQL_DSN", sqlstore.SQLiteDSN(filepath.Join(t.TempDir(), "ctl.db")))
	t.Setenv("JWT_SECRET", "ctl-test-secret")
	t.Setenv("AUTH_EMAIL", "root@example.org")
	t.Setenv("AUTH_PASSWORD", "rootpw")
	t.Setenv("SMTP_PASSWORD", "")
	t.Setenv("SECRET_KEY", "")
}

func TestReadBooks(t *testing.T) {
	books, err := readBooks(strings.NewReader("title,author,isbn,copies,branch\nDune,Herbert,,3,north\n\"Emma\", Austen, 123, 1\n"))
	require.NoError(t, err)
	require.Len(t, books, 2)
	assert.Equal(t, "Dune", books[0].Title)
	assert.Equal(t, 3, books[0].TotalCopies)
	assert.Equal(t, "north", books[0].BranchID)
	assert.Equal(t, "123", books[1].ISBN)
	assert.Empty(t, books[1].BranchID)

	_, err = readBooks(strings.NewReader("Dune,Herbert\n"))
	assert.ErrorContains(t, err, "line 1")
	_, err = readBooks(strings.NewReader("Dune,Herbert,,many\n"))
	assert.ErrorContains(t, err, "copies")
}

func TestMigrateSeedToken(t *testing.T) {
	sqliteEnv(t)

	out, err := execute(t, "", "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "schema ready (sqlite3)")
	assert.Contains(t, out, "created admin root@example.org")

	out, err = execute(t, "", "migrate")
	require.NoError(t, err)
	assert.NotContains(t, out, "created admin")

	seed := filepath.Join(t.TempDir(), "books.csv")
	require.NoError(t, os.WriteFile(seed, []byte("Dune,Herbert,,2,north\n"), 0o600))
	out, err = execute(t, "", "seed", seed)
	require.NoError(t, err)
	assert.Contains(t, out, "\t2\tDune")

	out, err = execute(t, "", "token", "ROOT@example.org")
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(out), "."), 3)

	_, err = execute(t, "", "token", "nobody@example.org")
	assert.Error(t, err)
}

func TestSeal(t *testing.T) {
	t.Setenv("SECRET_KEY", "")
	_, err := execute(t, "hunter2\n", "seal")
	assert.ErrorContains(t, err, "SECRET_KEY")

	key := bytes.Repeat([]byte{7}, secret.KeySize)
	t.Setenv("SECRET_KEY", base64.StdEncoding.EncodeToString(key))

	out, err := execute(t, "hunter2\n", "seal")
	require.NoError(t, err)
	sealed := strings.TrimSpace(out)
	assert.True(t, secret.IsSealed(sealed))
	plain, err := secret.Open(sealed, key)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", plain)

	_, err = execute(t, "\n", "seal")
	assert.EqualError(t, err, "empty secret")
}
