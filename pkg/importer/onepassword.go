package importer

import "strings"

// OnePasswordParser parses 1Password CSV export files:
// Title,Website,Username,Password,OTPAuth,Favorite,Archived,Tags,Notes
type OnePasswordParser struct{}

// 1Password CSV column names.
const (
	op1ColTitle    = "Title"
	op1ColWebsite  = "Website"
	op1ColUsername = "Username"
	op1ColPassword = "Password"
	op1ColOTPAuth  = "OTPAuth"
	op1ColArchived = "Archived"
	op1ColTags     = "Tags"
	op1ColNotes    = "Notes"
)

// Source returns the source type for this parser.
func (p *OnePasswordParser) Source() Source {
	return Source1Password
}

// Parse parses 1Password CSV data. The first tag becomes the folder;
// archived items are imported with a warning.
func (p *OnePasswordParser) Parse(data []byte, _ ParseOptions) (*ImportResult, error) {
	table, err := newCSVTable(data, op1ColTitle)
	if err != nil {
		return nil, err
	}

	result := newResult()
	counter := 1
	table.each(result, func(get func(string) string) {
		title := get(op1ColTitle)

		var folder string
		var extraTags []string
		for _, t := range strings.Split(get(op1ColTags), ",") {
			if t = strings.TrimSpace(t); t == "" {
				continue
			}
			if folder == "" {
				folder = t
			} else {
				extraTags = append(extraTags, t)
			}
		}

		var notes noteBuilder
		notes.text(get(op1ColNotes))
		notes.field("OTP", get(op1ColOTPAuth))
		notes.field("Tags", strings.Join(extraTags, ", "))

		if strings.EqualFold(get(op1ColArchived), "true") {
			result.Warnings = append(result.Warnings, "archived item imported: "+title)
		}

		result.add(&ImportedSecret{
			Name:   title,
			Key:    get(op1ColUsername),
			Value:  get(op1ColPassword),
			Notes:  notes.String(),
			Folder: folder,
			URL:    get(op1ColWebsite),
		}, title, &counter)
	})
	return result, nil
}
