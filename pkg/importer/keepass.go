package importer

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/tobischo/gokeepasslib/v3"
)

// ErrPasswordRequired is returned when an encrypted export is parsed
// without a password.
var ErrPasswordRequired = errors.New("import password required")

// KeePassParser parses KeePass KDBX databases. The root group's entries go
// to the default folder; entries of nested groups go to a folder named by
// the group path below the root ("Email/Work").
type KeePassParser struct{}

// KeePass standard entry fields.
const (
	kpFieldTitle    = "Title"
	kpFieldUserName = "UserName"
	kpFieldPassword = "Password"
	kpFieldURL      = "URL"
	kpFieldNotes    = "Notes"
)

const kpRecycleBin = "Recycle Bin"

// Source returns the source type for this parser.
func (p *KeePassParser) Source() Source {
	return SourceKeePass
}

// Parse decrypts data with opts.Password and flattens every group.
func (p *KeePassParser) Parse(data []byte, opts ParseOptions) (*ImportResult, error) {
	if opts.Password == "" {
		return nil, ErrPasswordRequired
	}

	db := gokeepasslib.NewDatabase()
	db.Credentials = gokeepasslib.NewPasswordCredentials(opts.Password)
	if err := gokeepasslib.NewDecoder(bytes.NewReader(data)).Decode(db); err != nil {
		return nil, fmt.Errorf("failed to open KeePass database: %w", err)
	}
	if err := db.UnlockProtectedEntries(); err != nil {
		return nil, fmt.Errorf("failed to unlock KeePass protected fields: %w", err)
	}

	result := newResult()
	if db.Content == nil || db.Content.Root == nil {
		return result, nil
	}

	counter := 1
	for _, root := range db.Content.Root.Groups {
		p.walk(result, root, "", &counter)
	}
	return result, nil
}

func (p *KeePassParser) walk(result *ImportResult, g gokeepasslib.Group, path string, counter *int) {
	for i := range g.Entries {
		p.addEntry(result, &g.Entries[i], path, counter)
	}
	for _, child := range g.Groups {
		if child.Name == kpRecycleBin {
			continue
		}
		childPath := strings.TrimSpace(child.Name)
		if path != "" {
			childPath = path + "/" + childPath
		}
		p.walk(result, child, childPath, counter)
	}
}

func (p *KeePassParser) addEntry(result *ImportResult, e *gokeepasslib.Entry, folder string, counter *int) {
	title := e.GetTitle()

	var notes noteBuilder
	notes.text(e.GetContent(kpFieldNotes))
	for _, v := range e.Values {
		switch v.Key {
		case kpFieldTitle, kpFieldUserName, kpFieldPassword, kpFieldURL, kpFieldNotes:
			continue
		}
		notes.field(v.Key, v.Value.Content)
	}
	if n := len(e.Binaries); n > 0 {
		result.Warnings = append(result.Warnings, fmt.Sprintf("%s: %d attachment(s) not imported", title, n))
	}

	result.add(&ImportedSecret{
		Name:   title,
		Key:    e.GetContent(kpFieldUserName),
		Value:  e.GetPassword(),
		Notes:  notes.String(),
		Folder: folder,
		URL:    e.GetContent(kpFieldURL),
	}, title, counter)
}
