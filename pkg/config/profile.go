package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/gemimi2525-star/super-platform-sub002/pkg/firewall"
	"github.com/gemimi2525-star/super-platform-sub002/pkg/manifest"
	"github.com/gemimi2525-star/super-platform-sub002/pkg/spaces"
)

// Profile is the declarative governance surface: which capabilities exist,
// how spaces are guarded, and what each app scope may call.
type Profile struct {
	Manifests []manifest.Manifest  `yaml:"manifests"`
	Spaces    []spaces.SpacePolicy `yaml:"spaces"`
	Scopes    []firewall.Scope     `yaml:"scopes"`
}

// ParseProfile decodes a YAML profile document.
func ParseProfile(data []byte) (*Profile, error) {
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("config: parse profile: %w", err)
	}
	return &p, nil
}

// LoadProfile reads and decodes a YAML profile file.
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read profile %s: %w", path, err)
	}
	return ParseProfile(data)
}

// BuildRegistry constructs the manifest registry from the profile. The
// registry runs its consistency gate during construction; invalid manifests
// are excluded and reported through the registry's validation result.
func (p *Profile) BuildRegistry() *manifest.Registry {
	return manifest.NewRegistry(p.Manifests)
}

// Apply registers space policies and firewall scopes into the given
// collaborators. Nil targets are skipped, so a caller can apply just the
// parts it owns.
func (p *Profile) Apply(ev *spaces.Evaluator, fw *firewall.Firewall) error {
	if ev != nil {
		for _, sp := range p.Spaces {
			if err := ev.Register(sp); err != nil {
				return fmt.Errorf("config: register space %s: %w", sp.SpaceID, err)
			}
		}
	}
	if fw != nil {
		for _, sc := range p.Scopes {
			fw.RegisterScope(sc)
		}
	}
	return nil
}
