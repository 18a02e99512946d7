package script

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// StoryFile is the top-level structure of a story YAML file.
//
// Example:
//
//	story:
//	  title: "The Lighthouse"
//	  start: intro
//	  language: en
//	scenes:
//	  - id: intro
//	    content: |
//	      Mira: Did you hear that?
//	      A wave crashes against the rocks.
//	    choices:
//	      - id: go-up
//	        target: stairs
//	        label: "Climb the stairs"
type StoryFile struct {
	Story  StoryMeta `yaml:"story"`
	Scenes []Scene   `yaml:"scenes"`
}

// StoryMeta holds top-level metadata for a story.
type StoryMeta struct {
	// Title is the story's display name.
	Title string `yaml:"title"`

	// Start is the id of the opening scene.
	Start string `yaml:"start"`

	// Language is the default playback language code (e.g. "en").
	Language string `yaml:"language"`
}

// Story is a loaded, validated story graph. Read-only after construction
// and safe for concurrent use.
type Story struct {
	Meta   StoryMeta
	scenes map[string]*Scene
}

// SceneSource supplies scenes by id. The playback controller follows choice
// edges through this interface.
type SceneSource interface {
	// Scene returns the scene with the given id, or false when absent.
	Scene(id string) (*Scene, bool)
}

// Compile-time interface check.
var _ SceneSource = (*Story)(nil)

// LoadStory reads and validates a story YAML file from disk.
func LoadStory(path string) (*Story, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("script: open story %q: %w", path, err)
	}
	defer f.Close()

	story, err := LoadStoryFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("script: parse story %q: %w", path, err)
	}
	return story, nil
}

// LoadStoryFromReader decodes and validates a story from r. Useful in tests
// where stories are constructed from string literals.
func LoadStoryFromReader(r io.Reader) (*Story, error) {
	var file StoryFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	return NewStory(file)
}

// NewStory validates a decoded story file and builds the scene index. Beats
// within each scene are ordered by their Order field.
func NewStory(file StoryFile) (*Story, error) {
	var errs []error
	scenes := make(map[string]*Scene, len(file.Scenes))

	for i := range file.Scenes {
		scene := &file.Scenes[i]
		if scene.ID == "" {
			errs = append(errs, fmt.Errorf("scene %d has no id", i))
			continue
		}
		if _, dup := scenes[scene.ID]; dup {
			errs = append(errs, fmt.Errorf("duplicate scene id %q", scene.ID))
			continue
		}
		sort.SliceStable(scene.Beats, func(a, b int) bool {
			return scene.Beats[a].Order < scene.Beats[b].Order
		})
		scenes[scene.ID] = scene
	}

	for _, scene := range scenes {
		for _, choice := range scene.Choices {
			if _, ok := scenes[choice.Target]; !ok {
				errs = append(errs, fmt.Errorf("scene %q: choice %q targets unknown scene %q", scene.ID, choice.ID, choice.Target))
			}
		}
	}

	if file.Story.Start != "" {
		if _, ok := scenes[file.Story.Start]; !ok {
			errs = append(errs, fmt.Errorf("start scene %q does not exist", file.Story.Start))
		}
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("script: invalid story: %w", errors.Join(errs...))
	}
	return &Story{Meta: file.Story, scenes: scenes}, nil
}

// Scene implements [SceneSource.Scene].
func (s *Story) Scene(id string) (*Scene, bool) {
	scene, ok := s.scenes[id]
	return scene, ok
}

// StartScene returns the story's opening scene.
func (s *Story) StartScene() (*Scene, bool) {
	return s.Scene(s.Meta.Start)
}
