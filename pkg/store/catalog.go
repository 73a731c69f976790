package store

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vango-go/vai-interview/pkg/core/interview"
)

// Catalog is a file-backed InterviewSource.
//
//	interviews:
//	  - id: backend-screen
//	    title: Backend screen
//	    questions:
//	      - id: q1
//	        prompt: Tell me about a system you designed.
//	        reference_answer: ...
//	        time_limit: 120s
type Catalog struct {
	interviews map[string]interview.Interview
}

type catalogFile struct {
	Interviews []interview.Interview `yaml:"interviews"`
}

// LoadCatalog reads a YAML catalog from disk.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes and validates a YAML catalog.
func ParseCatalog(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	c := &Catalog{interviews: make(map[string]interview.Interview, len(f.Interviews))}
	for i, iv := range f.Interviews {
		iv.ID = strings.TrimSpace(iv.ID)
		if iv.ID == "" {
			return nil, fmt.Errorf("catalog interview %d: id is required", i)
		}
		if _, dup := c.interviews[iv.ID]; dup {
			return nil, fmt.Errorf("catalog interview %q: duplicate id", iv.ID)
		}
		if len(iv.Questions) == 0 {
			return nil, fmt.Errorf("catalog interview %q: at least one question is required", iv.ID)
		}
		seen := make(map[string]struct{}, len(iv.Questions))
		for j := range iv.Questions {
			q := &iv.Questions[j]
			q.ID = strings.TrimSpace(q.ID)
			if q.ID == "" {
				q.ID = fmt.Sprintf("q%d", j+1)
			}
			if _, dup := seen[q.ID]; dup {
				return nil, fmt.Errorf("catalog interview %q: duplicate question id %q", iv.ID, q.ID)
			}
			seen[q.ID] = struct{}{}
			if strings.TrimSpace(q.Prompt) == "" {
				return nil, fmt.Errorf("catalog interview %q question %q: prompt is required", iv.ID, q.ID)
			}
			if q.TimeLimit < 0 {
				return nil, fmt.Errorf("catalog interview %q question %q: time_limit must be >= 0", iv.ID, q.ID)
			}
		}
		c.interviews[iv.ID] = iv
	}
	return c, nil
}

// LoadInterview implements InterviewSource.
func (c *Catalog) LoadInterview(_ context.Context, interviewID string) (interview.Interview, error) {
	if c == nil {
		return interview.Interview{}, ErrInterviewNotFound
	}
	iv, ok := c.interviews[interviewID]
	if !ok {
		return interview.Interview{}, fmt.Errorf("%w: %s", ErrInterviewNotFound, interviewID)
	}
	qs := make([]interview.Question, len(iv.Questions))
	copy(qs, iv.Questions)
	iv.Questions = qs
	return iv, nil
}

// Len returns the number of interviews in the catalog.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.interviews)
}
