package importer

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tobischo/gokeepasslib/v3"
	w "github.com/tobischo/gokeepasslib/v3/wrappers"
)

const kdbxPassword = "kdbx-master"

func kpEntry(values map[string]string) gokeepasslib.Entry {
	e := gokeepasslib.NewEntry()
	for _, key := range []string{"Title", "UserName", "Password", "URL", "Notes", "PIN"} {
		v, ok := values[key]
		if !ok {
			continue
		}
		e.Values = append(e.Values, gokeepasslib.ValueData{
			Key:   key,
			Value: gokeepasslib.V{Content: v, Protected: w.NewBoolWrapper(key == "Password")},
		})
	}
	return e
}

// buildKDBX encodes a database shaped like a typical KeePass file:
// Root
// ├── Router (entry)
// ├── Email
// │   ├── Gmail (entry)
// │   └── Work
// │       └── Outlook (entry)
// └── Recycle Bin
//     └── Deleted (entry)
func buildKDBX(t *testing.T) []byte {
	t.Helper()
	db := gokeepasslib.NewDatabase()
	db.Credentials = gokeepasslib.NewPasswordCredentials(kdbxPassword)
	db.Content.Meta.DatabaseName = "Test DB"

	work := gokeepasslib.NewGroup()
	work.Name = "Work"
	work.Entries = append(work.Entries, kpEntry(map[string]string{
		"Title": "Outlook", "UserName": "me@corp.example", "Password": "corp-pass",
	}))

	email := gokeepasslib.NewGroup()
	email.Name = "Email"
	email.Entries = append(email.Entries, kpEntry(map[string]string{
		"Title": "Gmail", "UserName": "me@gmail.example", "Password": "gm-pass",
		"URL": "https://mail.google.com", "Notes": "recovery phone set", "PIN": "4321",
	}))
	email.Groups = append(email.Groups, work)

	bin := gokeepasslib.NewGroup()
	bin.Name = "Recycle Bin"
	bin.Entries = append(bin.Entries, kpEntry(map[string]string{"Title": "Deleted", "Password": "gone"}))

	root := gokeepasslib.NewGroup()
	root.Name = "Root"
	root.Entries = append(root.Entries, kpEntry(map[string]string{"Title": "Router", "UserName": "admin", "Password": "r0uter"}))
	root.Groups = append(root.Groups, email, bin)

	db.Content.Root = &gokeepasslib.RootData{Groups: []gokeepasslib.Group{root}}
	require.NoError(t, db.LockProtectedEntries())

	var buf bytes.Buffer
	require.NoError(t, gokeepasslib.NewEncoder(&buf).Encode(db))
	return buf.Bytes()
}

func TestKeePassParser_Source(t *testing.T) {
	assert.Equal(t, SourceKeePass, (&KeePassParser{}).Source())
}

func TestKeePassParser_Parse(t *testing.T) {
	data := buildKDBX(t)

	result, err := (&KeePassParser{}).Parse(data, ParseOptions{Password: kdbxPassword})
	require.NoError(t, err)
	require.Len(t, result.Secrets, 3)

	byName := make(map[string]*ImportedSecret)
	for _, s := range result.Secrets {
		byName[s.Name] = s
	}
	require.NotContains(t, byName, "Deleted")

	router := byName["Router"]
	require.NotNil(t, router)
	assert.Equal(t, "", router.Folder)
	assert.Equal(t, "admin", router.Key)
	assert.Equal(t, "r0uter", router.Value)

	gmail := byName["Gmail"]
	require.NotNil(t, gmail)
	assert.Equal(t, "Email", gmail.Folder)
	assert.Equal(t, "gm-pass", gmail.Value)
	assert.Equal(t, "https://mail.google.com", gmail.URL)
	assert.Equal(t, "recovery phone set\nPIN: 4321", gmail.Notes)

	outlook := byName["Outlook"]
	require.NotNil(t, outlook)
	assert.Equal(t, "Email/Work", outlook.Folder)
	assert.Equal(t, "corp-pass", outlook.Value)
}

func TestKeePassParser_Errors(t *testing.T) {
	data := buildKDBX(t)

	_, err := (&KeePassParser{}).Parse(data, ParseOptions{})
	assert.ErrorIs(t, err, ErrPasswordRequired)

	_, err = (&KeePassParser{}).Parse(data, ParseOptions{Password: "wrong"})
	assert.Error(t, err)

	_, err = (&KeePassParser{}).Parse([]byte("not a kdbx file"), ParseOptions{Password: kdbxPassword})
	assert.Error(t, err)
}
