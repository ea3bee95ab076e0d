package task

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// taskFile is the on-disk document shape: either a single task or a list
// under the tasks key.
type taskFile struct {
	Tasks []Task `yaml:"tasks"`
	Task  `yaml:",inline"`
}

// LoadFromFile reads one YAML task file. Every loaded task is validated.
func LoadFromFile(path string) ([]Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("task: read %s: %w", path, err)
	}

	var doc taskFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("task: parse %s: %w", path, err)
	}

	tasks := doc.Tasks
	if len(tasks) == 0 && strings.TrimSpace(doc.Task.ID) != "" {
		tasks = []Task{doc.Task}
	}
	if len(tasks) == 0 {
		return nil, fmt.Errorf("task: %s: no tasks defined", path)
	}

	for i := range tasks {
		if err := tasks[i].Validate(); err != nil {
			return nil, fmt.Errorf("task: %s: %w", path, err)
		}
	}
	return tasks, nil
}

// LoadFromDir loads every .yaml/.yml file in dir whose task ids match
// pattern ("" or "*" matches all). Duplicate ids across files are an error.
func LoadFromDir(dir, pattern string) ([]Task, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("task: read dir %s: %w", dir, err)
	}

	var all []Task
	seen := map[string]string{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		path := filepath.Join(dir, e.Name())
		tasks, err := LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		for _, t := range tasks {
			if prev, dup := seen[t.ID]; dup {
				return nil, fmt.Errorf("task: duplicate id %q in %s (already defined in %s)", t.ID, path, prev)
			}
			seen[t.ID] = path
			all = append(all, t)
		}
	}

	filtered := all[:0]
	for _, t := range all {
		ok, err := matchPattern(pattern, t.ID)
		if err != nil {
			return nil, err
		}
		if ok {
			filtered = append(filtered, t)
		}
	}
	sort.Slice(filtered, func(i, j int) bool { return filtered[i].ID < filtered[j].ID })

	if len(filtered) == 0 {
		return nil, fmt.Errorf("task: no tasks in %s match %q", dir, pattern)
	}
	return filtered, nil
}

func matchPattern(pattern, id string) (bool, error) {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" || pattern == "*" {
		return true, nil
	}
	ok, err := filepath.Match(pattern, id)
	if err != nil {
		return false, fmt.Errorf("task: bad pattern %q: %w", pattern, err)
	}
	return ok, nil
}
