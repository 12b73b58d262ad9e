package inference

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ayusman/mudra/internal/apperr"
)

// LoadVocabulary reads the ordered label list. The file is a YAML (or
// JSON) sequence of strings, either at the top level or under "labels".
func LoadVocabulary(path string) ([]string, error) {
	const op = "inference.LoadVocabulary"

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStartup, op, "read vocabulary", err)
	}

	labels, err := parseVocabulary(data)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStartup, op, "parse vocabulary "+path, err)
	}
	return labels, nil
}

func parseVocabulary(data []byte) ([]string, error) {
	var labels []string
	if err := yaml.Unmarshal(data, &labels); err != nil {
		var doc struct {
			Labels []string `yaml:"labels"`
		}
		if err2 := yaml.Unmarshal(data, &doc); err2 != nil {
			return nil, err
		}
		labels = doc.Labels
	}

	if len(labels) == 0 {
		return nil, fmt.Errorf("vocabulary is empty")
	}
	for i, l := range labels {
		if strings.TrimSpace(l) == "" {
			return nil, fmt.Errorf("label %d is blank", i)
		}
	}
	return labels, nil
}
