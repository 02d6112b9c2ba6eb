package importer

// LastPassParser parses LastPass CSV export files:
// url,username,password,totp,extra,name,grouping,fav
type LastPassParser struct{}

// LastPass CSV column names.
const (
	lpColURL      = "url"
	lpColUsername = "username"
	lpColPassword = "password"
	lpColTOTP     = "totp"
	lpColExtra    = "extra"
	lpColName     = "name"
	lpColGrouping = "grouping"
)

// lastPassSecureNoteURL marks secure notes in LastPass exports.
const lastPassSecureNoteURL = "http://sn"

// Source returns the source type for this parser.
func (p *LastPassParser) Source() Source {
	return SourceLastPass
}

// Parse parses LastPass CSV data. LastPass HTML-encodes some characters,
// so every cell is decoded.
func (p *LastPassParser) Parse(data []byte, _ ParseOptions) (*ImportResult, error) {
	table, err := newCSVTable(data, lpColName)
	if err != nil {
		return nil, err
	}

	result := newResult()
	counter := 1
	table.each(result, func(raw func(string) string) {
		get := func(col string) string { return DecodeHTMLEntities(raw(col)) }

		name := get(lpColName)
		url := get(lpColURL)
		if url == lastPassSecureNoteURL {
			url = ""
		}

		var notes noteBuilder
		notes.text(get(lpColExtra))
		notes.field("TOTP", get(lpColTOTP))

		result.add(&ImportedSecret{
			Name:   name,
			Key:    get(lpColUsername),
			Value:  get(lpColPassword),
			Notes:  notes.String(),
			Folder: get(lpColGrouping),
			URL:    url,
		}, name, &counter)
	})
	return result, nil
}
