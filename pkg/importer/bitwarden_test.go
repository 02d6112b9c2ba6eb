package importer

import (
	"strings"
	"testing"
)

func TestBitwardenParser_Source(t *testing.T) {
	p := &BitwardenParser{}
	if p.Source() != SourceBitwarden {
		t.Errorf("Source() = %q, want %q", p.Source(), SourceBitwarden)
	}
}

const bitwardenExportJSON = `{
  "encrypted": false,
  "folders": [{"id": "f1", "name": "Social"}],
  "collections": [{"id": "c1", "name": "Team"}],
  "items": [
    {
      "type": 1, "name": "Twitter", "notes": "personal", "folderId": "f1",
      "login": {
        "username": "jdoe", "password": "tw-pass", "totp": "SEED",
        "uris": [{"uri": "https://twitter.com"}, {"uri": "https://x.com"}]
      },
      "fields": [{"name": "recovery", "value": "code-1", "type": 1}]
    },
    {"type": 2, "name": "Wifi", "notes": "ssid: home\npsk: abc", "folderId": null, "collectionIds": ["c1"]},
    {
      "type": 3, "name": "Visa", "folderId": null,
      "card": {"cardholderName": "J Doe", "number": "4111111111111111", "expMonth": "1", "expYear": "2030", "code": "123", "brand": "Visa"}
    },
    {
      "type": 4, "name": "Me", "folderId": null,
      "identity": {"firstName": "John", "lastName": "Doe", "email": "j@example.com", "city": "Oslo", "country": "NO"}
    },
    {"type": 9, "name": "Future type"},
    {"type": 1, "name": "Empty login", "login": {}}
  ]
}`

func TestBitwardenParser_Parse(t *testing.T) {
	result, err := (&BitwardenParser{}).Parse([]byte(bitwardenExportJSON), ParseOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(result.Secrets) != 4 {
		t.Fatalf("got %d secrets, want 4", len(result.Secrets))
	}
	if len(result.Skipped) != 2 {
		t.Errorf("got %d skipped, want 2: %v", len(result.Skipped), result.Skipped)
	}
	if len(result.Warnings) != 1 {
		t.Errorf("got %d warnings, want 1: %v", len(result.Warnings), result.Warnings)
	}

	login := result.Secrets[0]
	if login.Key != "jdoe" || login.Value != "tw-pass" || login.Folder != "Social" || login.URL != "https://twitter.com" {
		t.Errorf("login = %+v", login)
	}
	for _, want := range []string{"personal", "TOTP: SEED", "URL 2: https://x.com", "recovery: code-1"} {
		if !strings.Contains(login.Notes, want) {
			t.Errorf("login notes missing %q: %q", want, login.Notes)
		}
	}

	note := result.Secrets[1]
	if note.Value != "" || note.Folder != "Team" || !strings.Contains(note.Notes, "psk: abc") {
		t.Errorf("secure note = %+v", note)
	}

	card := result.Secrets[2]
	if card.Value != "4111111111111111" || card.Key != "J Doe" {
		t.Errorf("card = %+v", card)
	}
	if !strings.Contains(card.Notes, "Expires: 1/2030") || !strings.Contains(card.Notes, "Security code: 123") {
		t.Errorf("card notes = %q", card.Notes)
	}

	identity := result.Secrets[3]
	if !strings.Contains(identity.Notes, "Name: John Doe") || !strings.Contains(identity.Notes, "Address: Oslo, NO") {
		t.Errorf("identity notes = %q", identity.Notes)
	}
}

func TestBitwardenParser_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"invalid json", `{"items": [`},
		{"encrypted export", `{"encrypted": true, "items": []}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := (&BitwardenParser{}).Parse([]byte(tt.data), ParseOptions{}); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}
