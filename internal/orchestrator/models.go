package orchestrator

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/wp-labs/wp-motor/internal/oml"
)

// compiledModel pairs a parsed OML model with its ObjModel evaluator.
type compiledModel struct {
	model *oml.Model
	obj   *oml.ObjModel
}

// ModelSet is the engine's loaded collection of OML rewrite models, matched
// against a rule name by the model's own `rule:` header (§6.1 model
// selection).
type ModelSet struct {
	models []compiledModel
}

// LoadModelSet reads the `models.oml` path (§6.4). A directory is read as
// one model per `*.oml` file; a single file is split on lines containing
// exactly `===` (the same top-level multi-definition convention
// internal/wpl's rule files use) so one file can declare several models.
func LoadModelSet(path_ string, warn func(string), forward func(channel string, payload []byte) error) (*ModelSet, error) {
	info, err := os.Stat(path_)
	if err != nil {
		return nil, fmt.Errorf("load model set %s: %w", path_, err)
	}
	var sources []string
	if info.IsDir() {
		files, err := filepath.Glob(filepath.Join(path_, "*.oml"))
		if err != nil {
			return nil, fmt.Errorf("glob model dir %s: %w", path_, err)
		}
		sort.Strings(files)
		for _, f := range files {
			raw, err := os.ReadFile(f)
			if err != nil {
				return nil, fmt.Errorf("read model file %s: %w", f, err)
			}
			sources = append(sources, string(raw))
		}
	} else {
		raw, err := os.ReadFile(path_)
		if err != nil {
			return nil, fmt.Errorf("read model file %s: %w", path_, err)
		}
		sources = splitOMLChunks(string(raw))
	}

	ms := &ModelSet{}
	for _, src := range sources {
		if strings.TrimSpace(src) == "" {
			continue
		}
		m, err := oml.Parse(src)
		if err != nil {
			return nil, fmt.Errorf("parse oml model: %w", err)
		}
		obj := oml.NewObjModel(m, warn)
		obj.Forward = forward
		ms.models = append(ms.models, compiledModel{model: m, obj: obj})
	}
	return ms, nil
}

func splitOMLChunks(src string) []string {
	lines := strings.Split(src, "\n")
	var chunks []string
	var cur []string
	for _, line := range lines {
		if strings.TrimSpace(line) == "===" {
			chunks = append(chunks, strings.Join(cur, "\n"))
			cur = nil
			continue
		}
		cur = append(cur, line)
	}
	chunks = append(chunks, strings.Join(cur, "\n"))
	return chunks
}

// SelectForRule returns the first enabled model whose `rule:` header
// matches ruleName exactly, as a glob, or is "*" (matches every rule).
func (ms *ModelSet) SelectForRule(ruleName string) *compiledModel {
	if ms == nil {
		return nil
	}
	for i, cm := range ms.models {
		if !cm.model.Enabled {
			continue
		}
		if cm.model.Rule == "*" || cm.model.Rule == ruleName {
			return &ms.models[i]
		}
		if ok, err := path.Match(cm.model.Rule, ruleName); err == nil && ok {
			return &ms.models[i]
		}
	}
	return nil
}
