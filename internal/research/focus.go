package research

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Focus steers the research prompt toward the topics the BD team currently
// cares about. Optional; a nil Focus produces the default prompt.
type Focus struct {
	// Emphasis lists topics the synthesis should prioritize (e.g.
	// "small-business set-aside history", "8(a) certifications").
	Emphasis []string `yaml:"emphasis"`

	// Questions are extra free-form questions appended to the prompt.
	Questions []string `yaml:"questions"`

	// Agencies narrows attention to specific agencies when set.
	Agencies []string `yaml:"agencies"`
}

// LoadFocus reads a research focus file. The YAML has a top-level
// "research" key.
func LoadFocus(path string) (*Focus, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "research: read focus %s", path)
	}

	var wrapper struct {
		Research Focus `yaml:"research"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "research: parse focus")
	}

	return &wrapper.Research, nil
}
