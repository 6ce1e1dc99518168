package voicebank

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Error message formats for file parsing.
const (
	errFmtReadFile       = "%w: failed to read voicebank file %s: %w"
	errFmtDecode         = "%w: failed to decode voicebank: %w"
	errFmtMissingField   = "%w: missing required field %q"
	errFmtSpecialMapping = "%w: %q must be a mapping of pattern to clips (line %d)"
	errFmtPatternKey     = "%w: special pattern key must be a string (line %d)"
	errFmtSpecValue      = "%w: special pattern %q must be a clip or a list of clips (line %d)"
	errFmtClipItem       = "%w: special pattern %q: list items must be clip names (line %d)"
)

// Field names as they appear in the voicebank file.
const (
	fieldPort           = "port"
	fieldSampleRate     = "sampleRate"
	fieldSilentDuration = "silentDuration"
	fieldPinyin         = "pinyin"
	fieldSpecial        = "special"
)

// document mirrors the voicebank file. The special mapping is kept as a node so
// that the declaration order of its keys survives decoding.
type document struct {
	Port           *int              `yaml:"port"`
	SampleRate     *int              `yaml:"sampleRate"`
	SilentDuration *int              `yaml:"silentDuration"`
	Pinyin         map[string]string `yaml:"pinyin"`
	Special        yaml.Node         `yaml:"special"`
}

// Load reads and validates the voicebank file at path.
func Load(path string) (*Voicebank, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf(errFmtReadFile, ErrInvalidConfig, path, err)
	}

	return Parse(data)
}

// Parse decodes a YAML (or JSON) voicebank document and validates it.
func Parse(data []byte) (*Voicebank, error) {
	var doc document

	err := yaml.Unmarshal(data, &doc)
	if err != nil {
		return nil, fmt.Errorf(errFmtDecode, ErrInvalidConfig, err)
	}

	requiredErr := doc.checkRequired()
	if requiredErr != nil {
		return nil, requiredErr
	}

	entries, err := parseSpecial(&doc.Special)
	if err != nil {
		return nil, err
	}

	return New(Params{
		Syllables:      doc.Pinyin,
		Special:        entries,
		Port:           *doc.Port,
		SampleRate:     *doc.SampleRate,
		SilentDuration: *doc.SilentDuration,
	})
}

func (d *document) checkRequired() error {
	switch {
	case d.Port == nil:
		return fmt.Errorf(errFmtMissingField, ErrInvalidConfig, fieldPort)
	case d.SampleRate == nil:
		return fmt.Errorf(errFmtMissingField, ErrInvalidConfig, fieldSampleRate)
	case d.SilentDuration == nil:
		return fmt.Errorf(errFmtMissingField, ErrInvalidConfig, fieldSilentDuration)
	case d.Pinyin == nil:
		return fmt.Errorf(errFmtMissingField, ErrInvalidConfig, fieldPinyin)
	case d.Special.Kind == 0:
		return fmt.Errorf(errFmtMissingField, ErrInvalidConfig, fieldSpecial)
	default:
		return nil
	}
}

func parseSpecial(node *yaml.Node) ([]PatternEntry, error) {
	node = resolveAlias(node)
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf(errFmtSpecialMapping, ErrInvalidConfig, fieldSpecial, node.Line)
	}

	entries := make([]PatternEntry, 0, len(node.Content)/2)

	for i := 0; i+1 < len(node.Content); i += 2 {
		key := resolveAlias(node.Content[i])
		if key.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf(errFmtPatternKey, ErrInvalidConfig, key.Line)
		}

		spec, err := parseSpec(key.Value, resolveAlias(node.Content[i+1]))
		if err != nil {
			return nil, err
		}

		entries = append(entries, PatternEntry{Source: key.Value, Spec: spec, Index: len(entries)})
	}

	return entries, nil
}

func parseSpec(pattern string, node *yaml.Node) (ClipSpec, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		return Single(node.Value), nil
	case yaml.SequenceNode:
		items := node.Content
		if len(items) > 0 && isRandomMarker(items[0]) {
			return parseRandom(pattern, items[1:])
		}

		ids, err := clipNames(pattern, items)
		if err != nil {
			return ClipSpec{}, err
		}

		return Sequence(ids...), nil
	default:
		return ClipSpec{}, fmt.Errorf(errFmtSpecValue, ErrInvalidConfig, pattern, node.Line)
	}
}

func parseRandom(pattern string, items []*yaml.Node) (ClipSpec, error) {
	alternatives := make([]ClipSpec, 0, len(items))

	for _, item := range items {
		item = resolveAlias(item)

		switch item.Kind {
		case yaml.ScalarNode:
			alternatives = append(alternatives, Single(item.Value))
		case yaml.SequenceNode:
			ids, err := clipNames(pattern, item.Content)
			if err != nil {
				return ClipSpec{}, err
			}

			alternatives = append(alternatives, Sequence(ids...))
		default:
			return ClipSpec{}, fmt.Errorf(errFmtClipItem, ErrInvalidConfig, pattern, item.Line)
		}
	}

	return Random(alternatives...), nil
}

func clipNames(pattern string, items []*yaml.Node) ([]string, error) {
	ids := make([]string, 0, len(items))

	for _, item := range items {
		item = resolveAlias(item)
		if item.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf(errFmtClipItem, ErrInvalidConfig, pattern, item.Line)
		}

		ids = append(ids, item.Value)
	}

	return ids, nil
}

func isRandomMarker(node *yaml.Node) bool {
	node = resolveAlias(node)

	return node.Kind == yaml.ScalarNode && node.Value == RandomMarker
}

func resolveAlias(node *yaml.Node) *yaml.Node {
	for node.Kind == yaml.AliasNode && node.Alias != nil {
		node = node.Alias
	}

	return node
}
