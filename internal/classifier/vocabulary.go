package classifier

import "fmt"

// Vocabulary is an ordered list of activity-class labels matching the
// class-index encoding baked into a model artifact. Agreement between
// the model's output classes and the vocabulary is an external
// configuration contract; it is not validated at scoring time.
type Vocabulary []string

// Label decodes a raw class index to its label string.
func (v Vocabulary) Label(index int) (string, error) {
	if index < 0 || index >= len(v) {
		return "", fmt.Errorf("class index %d outside vocabulary of %d labels", index, len(v))
	}
	return v[index], nil
}

// Index encodes a label back to its class index, or -1 if unknown.
func (v Vocabulary) Index(label string) int {
	for i, l := range v {
		if l == label {
			return i
		}
	}
	return -1
}

// Outcome identifies which pretrained model variant (and therefore
// which label vocabulary) a batch run uses.
type Outcome struct {
	// Name is the configuration key for the variant.
	Name string

	// ModelFile is the artifact filename under the model directory.
	ModelFile string

	// Labels is the vocabulary in class-index order.
	Labels Vocabulary
}

// Outcomes are the supported model variants. NVM is non-volitional
// movement, SED sedentary time, TPA total physical activity, LPA light
// and MVPA moderate-to-vigorous physical activity.
var Outcomes = map[string]Outcome{
	"tpa": {
		Name:      "tpa",
		ModelFile: "nvm_sed_tpa_5s.model",
		Labels:    Vocabulary{"NVM", "SED", "TPA"},
	},
	"lpa_mvpa": {
		Name:      "lpa_mvpa",
		ModelFile: "nvm_sed_lpa_mvpa_5s.model",
		Labels:    Vocabulary{"NVM", "SED", "LPA", "MVPA"},
	},
}

// OutcomeByName resolves a configured outcome variant.
func OutcomeByName(name string) (Outcome, error) {
	outcome, ok := Outcomes[name]
	if !ok {
		return Outcome{}, fmt.Errorf("unknown outcome %q", name)
	}
	return outcome, nil
}
