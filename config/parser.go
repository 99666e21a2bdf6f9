package config

import (
	"os"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ParseFile loads a desired-state document from disk and validates it.
func ParseFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "error reading desired state file %s", path)
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "%s", path)
	}
	return doc, nil
}

// Parse unmarshals and validates a desired-state document.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "error parsing desired state")
	}
	if err := validate.Struct(&doc); err != nil {
		return nil, errors.Wrap(err, "invalid desired state")
	}
	for i := range doc.Resources {
		res := &doc.Resources[i]
		if res.State == "" {
			res.State = "present"
		}
		if err := res.checkSpecMatchesKind(); err != nil {
			return nil, errors.Wrapf(err, "resource %d", i)
		}
	}
	return &doc, nil
}

// checkSpecMatchesKind enforces that exactly the spec block named by kind
// is populated.
func (r *Resource) checkSpecMatchesKind() error {
	specs := map[string]bool{
		"grant":      r.Grant != nil,
		"tablespace": r.Tablespace != nil,
		"user":       r.User != nil,
		"role":       r.Role != nil,
		"directory":  r.Directory != nil,
		"pdb":        r.PDB != nil,
	}
	if !specs[r.Kind] {
		return errors.Newf("kind %q requires a %q block", r.Kind, r.Kind)
	}
	for kind, set := range specs {
		if set && kind != r.Kind {
			return errors.Newf("kind %q must not carry a %q block", r.Kind, kind)
		}
	}
	return nil
}
