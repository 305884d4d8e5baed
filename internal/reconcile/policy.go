package reconcile

import (
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/metacheck/internal/models"
)

// Containment selects which directions identifier containment is checked in.
type Containment string

const (
	// ContainHeaderInStorage checks header ⊆ storage only.
	ContainHeaderInStorage Containment = "header_in_storage"
	// ContainSymmetric additionally checks storage ⊆ header.
	ContainSymmetric Containment = "symmetric"
)

// DefaultAccessGroupPattern matches per-study access groups.
const DefaultAccessGroupPattern = `^ss_\d+$`

// Policy holds the reconciliation choices that vary between deployments.
type Policy struct {
	Containment          Containment     `yaml:"containment" toml:"containment"`
	UnrecognizedSeverity models.Severity `yaml:"unrecognized_severity" toml:"unrecognized_severity"`
	MinReplicas          int             `yaml:"min_replicas" toml:"min_replicas"`
	AccessGroupPattern   string          `yaml:"access_group_pattern" toml:"access_group_pattern"`
	ValidZones           []string        `yaml:"valid_zones" toml:"valid_zones"`
	ValidPermissions     []string        `yaml:"valid_permissions" toml:"valid_permissions"`
}

// DefaultPolicy returns the policy used when none is configured.
func DefaultPolicy() Policy {
	return Policy{
		Containment:          ContainHeaderInStorage,
		UnrecognizedSeverity: models.SeverityWarning,
		MinReplicas:          1,
		AccessGroupPattern:   DefaultAccessGroupPattern,
		ValidPermissions:     []string{models.AccessNull, models.AccessRead, models.AccessWrite, models.AccessOwn},
	}
}

// Validate validates the policy.
func (p *Policy) Validate() error {
	return validation.ValidateStruct(p,
		validation.Field(&p.Containment, validation.In(ContainHeaderInStorage, ContainSymmetric)),
		validation.Field(&p.UnrecognizedSeverity, validation.In(models.SeverityWarning, models.SeverityError)),
		validation.Field(&p.MinReplicas, validation.Min(0)),
		validation.Field(&p.AccessGroupPattern, validation.By(func(v interface{}) error {
			_, err := regexp.Compile(v.(string))
			return err
		})),
	)
}
