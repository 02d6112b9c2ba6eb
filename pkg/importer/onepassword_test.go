package importer

import "testing"

func TestOnePasswordParser_Source(t *testing.T) {
	p := &OnePasswordParser{}
	if p.Source() != Source1Password {
		t.Errorf("Source() = %q, want %q", p.Source(), Source1Password)
	}
}

func TestOnePasswordParser_Parse(t *testing.T) {
	tests := []struct {
		name         string
		csvData      string
		wantSecrets  int
		wantWarnings int
		wantError    bool
		checkFirst   func(t *testing.T, s *ImportedSecret)
	}{
		{
			name: "login with tags and otp",
			csvData: `Title,Website,Username,Password,OTPAuth,Favorite,Archived,Tags,Notes
AWS Console,https://aws.amazon.com,admin,hunter2,otpauth://totp/aws?secret=ABC,false,false,"Cloud, Prod",Root account`,
			wantSecrets: 1,
			checkFirst: func(t *testing.T, s *ImportedSecret) {
				if s.Name != "AWS Console" || s.Key != "admin" || s.Value != "hunter2" {
					t.Errorf("got %+v", s)
				}
				if s.Folder != "Cloud" {
					t.Errorf("Folder = %q, want Cloud", s.Folder)
				}
				want := "Root account\nOTP: otpauth://totp/aws?secret=ABC\nTags: Prod"
				if s.Notes != want {
					t.Errorf("Notes = %q, want %q", s.Notes, want)
				}
			},
		},
		{
			name: "case-insensitive header",
			csvData: `title,website,username,password,otpauth,favorite,archived,tags,notes
Mail,,me@example.com,pw,,false,false,,`,
			wantSecrets: 1,
		},
		{
			name: "archived item warns",
			csvData: `Title,Website,Username,Password,OTPAuth,Favorite,Archived,Tags,Notes
Old,,u,p,,false,true,,`,
			wantSecrets:  1,
			wantWarnings: 1,
		},
		{
			name: "untitled items numbered",
			csvData: `Title,Website,Username,Password,OTPAuth,Favorite,Archived,Tags,Notes
,,u,p,,false,false,,`,
			wantSecrets: 1,
			checkFirst: func(t *testing.T, s *ImportedSecret) {
				if s.Name != "Imported item 1" {
					t.Errorf("Name = %q", s.Name)
				}
			},
		},
		{
			name:      "missing title column",
			csvData:   "Website,Username\nhttps://a.com,u",
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := (&OnePasswordParser{}).Parse([]byte(tt.csvData), ParseOptions{})
			if tt.wantError {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(result.Secrets) != tt.wantSecrets {
				t.Errorf("got %d secrets, want %d", len(result.Secrets), tt.wantSecrets)
			}
			if len(result.Warnings) != tt.wantWarnings {
				t.Errorf("got %d warnings, want %d: %v", len(result.Warnings), tt.wantWarnings, result.Warnings)
			}
			if tt.checkFirst != nil && len(result.Secrets) > 0 {
				tt.checkFirst(t, result.Secrets[0])
			}
		})
	}
}
