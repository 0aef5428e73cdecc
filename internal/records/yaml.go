package records

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/helixir/referee-finder/internal/domain"
)

// yamlRecord mirrors the Airtable field names so exported tables can be
// dropped into a file unchanged.
type yamlRecord struct {
	ID       string `yaml:"id"`
	Title    string `yaml:"title"`
	DOI      string `yaml:"doi"`
	Concepts string `yaml:"updated_concepts"`
	Status   string `yaml:"status"`
}

type yamlFile struct {
	Views map[string][]yamlRecord `yaml:"views"`
}

// FileSource reads records from a YAML file of the form
//
//	views:
//	  Proposals:
//	    - id: rec1
//	      title: ...
//	      doi: ...
//	      updated_concepts: "Concepts: ...; Methods: ..."
//	      status: Selected
type FileSource struct {
	path string
}

// NewFileSource creates a FileSource reading path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Name implements Source.
func (s *FileSource) Name() string {
	return "yaml"
}

// List implements Source. A view missing from the file yields no records.
func (s *FileSource) List(ctx context.Context, view string) ([]domain.PreprintRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read records file: %w", err)
	}

	var file yamlFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, domain.NewParseError("yaml", s.path, err)
	}

	raw := file.Views[view]
	out := make([]domain.PreprintRecord, 0, len(raw))
	for i, r := range raw {
		id := r.ID
		if id == "" {
			id = fmt.Sprintf("%s-%d", view, i+1)
		}
		out = append(out, domain.NewPreprintRecord(id, r.Title, r.DOI, r.Concepts, r.Status))
	}
	return out, nil
}
