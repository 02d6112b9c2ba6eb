package vault

import "fmt"

// Payload version constants
const (
	// Version0 is a payload written before the version field existed.
	Version0 uint32 = 0
	// Version1 adds the version field and requires at least one folder.
	Version1 uint32 = 1
)

// migration upgrades a payload from one version to the next.
type migration struct {
	from  uint32
	apply func(v *Vault)
}

var migrations = []migration{
	{from: Version0, apply: migrateV0ToV1},
}

// migrate upgrades v in memory to CurrentVersion and reports whether
// anything changed. The file on disk is only rewritten by the next Save.
func migrate(v *Vault) (bool, error) {
	if v.Version > CurrentVersion {
		return false, fmt.Errorf("%w: %d (newest supported is %d)", ErrUnsupportedVersion, v.Version, CurrentVersion)
	}

	if v.Folders == nil {
		v.Folders = []Folder{}
	}
	if v.Secrets == nil {
		v.Secrets = []Secret{}
	}

	migrated := false
	for _, m := range migrations {
		if v.Version != m.from {
			continue
		}
		m.apply(v)
		v.Version = m.from + 1
		migrated = true
	}
	return migrated, nil
}

// migrateV0ToV1 seeds folders when none exist, re-homes secrets whose folder
// is missing, and makes folder order dense.
func migrateV0ToV1(v *Vault) {
	if len(v.Folders) == 0 {
		v.Folders = defaultFolders()
	}
	v.renumberFolders()

	known := make(map[string]bool, len(v.Folders))
	for _, f := range v.Folders {
		known[f.ID] = true
	}
	for i := range v.Secrets {
		if !known[v.Secrets[i].FolderID] {
			v.Secrets[i].FolderID = v.Folders[0].ID
		}
	}
}
