package models

// Entity is a canonical record the laboratory database holds for a sample,
// library or study.
type Entity struct {
	Type            EntityType `json:"type"`
	InternalID      string     `json:"internal_id"`
	Name            string     `json:"name,omitempty"`
	AccessionNumber string     `json:"accession_number,omitempty"`
	// Kind distinguishes library records (library, well, multiplexed_library).
	Kind string `json:"kind,omitempty"`
}

// Replica is one stored copy of a data object.
type Replica struct {
	Number   int    `json:"number" yaml:"number"`
	Resource string `json:"resource" yaml:"resource"`
	Checksum string `json:"checksum" yaml:"checksum"`
	Valid    bool   `json:"valid" yaml:"valid"`
}

// Access levels a storage ACL entry may grant.
const (
	AccessNull  = "null"
	AccessRead  = "read"
	AccessWrite = "write"
	AccessOwn   = "own"
)

// AccessControl is one entry of a data object's access control list.
type AccessControl struct {
	Owner string `json:"owner" yaml:"owner"`
	Zone  string `json:"zone" yaml:"zone"`
	Level string `json:"level" yaml:"level"`
}

// String renders the entry as owner#zone:level.
func (a AccessControl) String() string {
	return a.Owner + "#" + a.Zone + ":" + a.Level
}
