package importer

import (
	"encoding/json"
	"fmt"
	"strings"
)

// BitwardenParser parses Bitwarden JSON export files (unencrypted).
type BitwardenParser struct{}

// Bitwarden item types.
const (
	bitwardenTypeLogin      = 1
	bitwardenTypeSecureNote = 2
	bitwardenTypeCard       = 3
	bitwardenTypeIdentity   = 4
)

// Bitwarden custom field types.
const (
	bitwardenFieldText    = 0
	bitwardenFieldHidden  = 1
	bitwardenFieldBoolean = 2
)

type bitwardenExport struct {
	Encrypted   bool                  `json:"encrypted"`
	Items       []bitwardenItem       `json:"items"`
	Folders     []bitwardenFolder     `json:"folders"`
	Collections []bitwardenCollection `json:"collections"`
}

type bitwardenFolder struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type bitwardenCollection struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type bitwardenItem struct {
	Type          int                    `json:"type"`
	Name          string                 `json:"name"`
	Notes         string                 `json:"notes"`
	FolderID      *string                `json:"folderId"`
	CollectionIDs []string               `json:"collectionIds"`
	Login         *bitwardenLogin        `json:"login"`
	Card          *bitwardenCard         `json:"card"`
	Identity      *bitwardenIdentity     `json:"identity"`
	Fields        []bitwardenCustomField `json:"fields"`
}

type bitwardenLogin struct {
	URIs     []bitwardenURI `json:"uris"`
	Username string         `json:"username"`
	Password string         `json:"password"`
	TOTP     string         `json:"totp"`
}

type bitwardenURI struct {
	URI string `json:"uri"`
}

type bitwardenCard struct {
	CardholderName string `json:"cardholderName"`
	Number         string `json:"number"`
	ExpMonth       string `json:"expMonth"`
	ExpYear        string `json:"expYear"`
	Code           string `json:"code"`
	Brand          string `json:"brand"`
}

type bitwardenIdentity struct {
	Title      string `json:"title"`
	FirstName  string `json:"firstName"`
	MiddleName string `json:"middleName"`
	LastName   string `json:"lastName"`
	Username   string `json:"username"`
	Company    string `json:"company"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Address1   string `json:"address1"`
	Address2   string `json:"address2"`
	Address3   string `json:"address3"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
	SSN        string `json:"ssn"`
	Passport   string `json:"passportNumber"`
	License    string `json:"licenseNumber"`
}

type bitwardenCustomField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
	Type  int    `json:"type"`
}

// Source returns the source type for this parser.
func (p *BitwardenParser) Source() Source {
	return SourceBitwarden
}

// Parse parses Bitwarden JSON data. Folders (or, for organisation exports,
// the first collection) become vault folders.
func (p *BitwardenParser) Parse(data []byte, _ ParseOptions) (*ImportResult, error) {
	var export bitwardenExport
	if err := json.Unmarshal(data, &export); err != nil {
		return nil, fmt.Errorf("failed to parse Bitwarden JSON: %w", err)
	}
	if export.Encrypted {
		return nil, fmt.Errorf("encrypted Bitwarden exports are not supported; export as unencrypted JSON")
	}

	folderNames := make(map[string]string, len(export.Folders)+len(export.Collections))
	for _, f := range export.Folders {
		folderNames[f.ID] = f.Name
	}
	for _, c := range export.Collections {
		folderNames[c.ID] = c.Name
	}

	result := newResult()
	counter := 1
	for i := range export.Items {
		item := &export.Items[i]

		s, err := p.parseItem(item)
		if err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("item %d (%s): %v", i+1, item.Name, err))
			result.skip(item.Name, err.Error())
			continue
		}

		if item.FolderID != nil {
			s.Folder = folderNames[*item.FolderID]
		}
		if s.Folder == "" {
			for _, id := range item.CollectionIDs {
				if name := folderNames[id]; name != "" {
					s.Folder = name
					break
				}
			}
		}
		result.add(s, item.Name, &counter)
	}
	return result, nil
}

func (p *BitwardenParser) parseItem(item *bitwardenItem) (*ImportedSecret, error) {
	s := &ImportedSecret{Name: item.Name}
	var notes noteBuilder
	notes.text(item.Notes)

	switch item.Type {
	case bitwardenTypeLogin:
		if login := item.Login; login != nil {
			s.Key = login.Username
			s.Value = login.Password
			notes.field("TOTP", login.TOTP)
			for i, uri := range login.URIs {
				if i == 0 {
					s.URL = uri.URI
					continue
				}
				notes.field(fmt.Sprintf("URL %d", i+1), uri.URI)
			}
		}
	case bitwardenTypeSecureNote:
		// notes only
	case bitwardenTypeCard:
		if card := item.Card; card != nil {
			s.Key = card.CardholderName
			s.Value = card.Number
			notes.field("Brand", card.Brand)
			if card.ExpMonth != "" || card.ExpYear != "" {
				notes.field("Expires", strings.Trim(card.ExpMonth+"/"+card.ExpYear, "/"))
			}
			notes.field("Security code", card.Code)
		}
	case bitwardenTypeIdentity:
		if id := item.Identity; id != nil {
			s.Key = id.Username
			full := strings.Join(strings.Fields(strings.Join([]string{id.Title, id.FirstName, id.MiddleName, id.LastName}, " ")), " ")
			notes.field("Name", full)
			notes.field("Company", id.Company)
			notes.field("Email", id.Email)
			notes.field("Phone", id.Phone)
			notes.field("Address", strings.Join(nonEmpty(id.Address1, id.Address2, id.Address3, id.City, id.State, id.PostalCode, id.Country), ", "))
			notes.field("SSN", id.SSN)
			notes.field("Passport", id.Passport)
			notes.field("License", id.License)
		}
	default:
		return nil, fmt.Errorf("unsupported item type: %d", item.Type)
	}

	for _, cf := range item.Fields {
		label := strings.TrimSpace(cf.Name)
		if label == "" {
			label = "Field"
		}
		switch cf.Type {
		case bitwardenFieldText, bitwardenFieldHidden, bitwardenFieldBoolean:
			notes.field(label, cf.Value)
		}
	}

	s.Notes = notes.String()
	return s, nil
}

func nonEmpty(values ...string) []string {
	out := values[:0:0]
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
