// Package checklist loads the quality requirement definitions and groups
// them by criteria tag for presentation. Grouping never affects batching —
// the quality pipeline always processes the ungrouped flat list.
package checklist

import (
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/vpat-cli/internal/criteria"
	"github.com/sells-group/vpat-cli/internal/model"
)

// file is the YAML shape of a checklist definition file.
type file struct {
	Requirements []model.Requirement `yaml:"requirements"`
}

// Load reads requirement definitions from a YAML file. Requirements missing
// an id or question are a configuration error.
func Load(path string) ([]model.Requirement, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "checklist: read file")
	}

	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrap(err, "checklist: parse yaml")
	}
	if len(f.Requirements) == 0 {
		return nil, eris.Errorf("checklist: %s defines no requirements", path)
	}

	seen := make(map[string]bool, len(f.Requirements))
	for i, req := range f.Requirements {
		if strings.TrimSpace(req.ReqID) == "" {
			return nil, eris.Errorf("checklist: requirement %d has no id", i)
		}
		if strings.TrimSpace(req.Question) == "" {
			return nil, eris.Errorf("checklist: requirement %s has no question", req.ReqID)
		}
		if seen[req.ReqID] {
			return nil, eris.Errorf("checklist: duplicate requirement id %s", req.ReqID)
		}
		seen[req.ReqID] = true
	}

	return f.Requirements, nil
}

// Group partitions requirements by numeric criteria tag, sorted ascending.
// Requirements whose criteria name yields no tag (or tag zero) form group 0.
// Within a group, requirement order follows the input.
func Group(reqs []model.Requirement) []model.RequirementGroup {
	byTag := make(map[int][]model.Requirement)
	for _, req := range reqs {
		tag := CriteriaTag(req.CriteriaName)
		byTag[tag] = append(byTag[tag], req)
	}

	tags := make([]int, 0, len(byTag))
	for tag := range byTag {
		tags = append(tags, tag)
	}
	sort.Ints(tags)

	groups := make([]model.RequirementGroup, 0, len(tags))
	for _, tag := range tags {
		groups = append(groups, model.RequirementGroup{
			CriteriaNum:  tag,
			Requirements: byTag[tag],
		})
	}
	return groups
}

// CriteriaTag extracts the numeric criteria tag from a criteria name: the
// leading segment of the dotted key ("1.4.3 Contrast" → 1), or a bare
// leading integer when the name carries no dotted key. Returns 0 when
// neither applies.
func CriteriaTag(name string) int {
	if key, ok := criteria.Normalize(name); ok {
		head, _, _ := strings.Cut(key, ".")
		if n, err := strconv.Atoi(head); err == nil {
			return n
		}
	}

	fields := strings.Fields(name)
	if len(fields) > 0 {
		if n, err := strconv.Atoi(strings.TrimRight(fields[0], ".:")); err == nil {
			return n
		}
	}
	return 0
}
