// Package models keeps the named model configurations a request may select.
package models

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/vamp-go/vamp-go/internal/schema"
)

// DefaultName is the model that is always registered.
const DefaultName = "default"

const confFile = "interface.yml"

// ErrUnknownModel indicates a request named a model that is not registered.
var ErrUnknownModel = errors.New("unknown model")

// Checkpoints are the weights an interface.yml points the backend at.
type Checkpoints struct {
	Coarse     string `yaml:"Interface.coarse_ckpt"`
	CoarseFine string `yaml:"Interface.coarse2fine_ckpt"`
	Codec      string `yaml:"Interface.codec_ckpt"`
	Beats      string `yaml:"Interface.wavebeat_ckpt"`
}

// Model is one registered configuration.
type Model struct {
	Name        string
	Path        string
	Checkpoints Checkpoints
	// Conf holds the whole file for keys the service does not interpret.
	Conf map[string]interface{}
}

// Spec returns the description of m sent with every generate call.
func (m Model) Spec() schema.ModelSpec {
	spec := schema.ModelSpec{Name: m.Name, Config: m.Conf}
	if m.Checkpoints != (Checkpoints{}) {
		ckpt := schema.ModelCheckpoints(m.Checkpoints)
		spec.Checkpoints = &ckpt
	}
	return spec
}

// Registry maps model names to configurations. It is read-only after Load.
type Registry struct {
	models      map[string]Model
	names       []string
	defaultName string
}

// Load registers every <dir>/<name>/interface.yml plus the default model. A
// missing dir leaves only the default. defaultName selects which entry an
// empty request resolves to.
func Load(dir, defaultName string, logger zerolog.Logger) (*Registry, error) {
	if defaultName == "" {
		defaultName = DefaultName
	}
	r := &Registry{
		models:      map[string]Model{DefaultName: {Name: DefaultName}},
		defaultName: defaultName,
	}

	if dir != "" {
		paths, err := filepath.Glob(filepath.Join(dir, "*", confFile))
		if err != nil {
			return nil, fmt.Errorf("scanning %s: %w", dir, err)
		}
		for _, path := range paths {
			m, err := loadModel(path)
			if err != nil {
				return nil, err
			}
			r.models[m.Name] = m
			logger.Debug().Str("model", m.Name).Str("path", path).Msg("Registered model")
		}
	}

	if _, ok := r.models[defaultName]; !ok {
		return nil, fmt.Errorf("%w: default model %q", ErrUnknownModel, defaultName)
	}

	for name := range r.models {
		r.names = append(r.names, name)
	}
	sort.Strings(r.names)

	logger.Info().Strs("models", r.names).Str("default", defaultName).Msg("Model registry loaded")
	return r, nil
}

func loadModel(path string) (Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Model{}, fmt.Errorf("reading %s: %w", path, err)
	}

	m := Model{Name: filepath.Base(filepath.Dir(path)), Path: path}
	if err := yaml.Unmarshal(data, &m.Conf); err != nil {
		return Model{}, fmt.Errorf("unmarshaling %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &m.Checkpoints); err != nil {
		return Model{}, fmt.Errorf("unmarshaling %s: %w", path, err)
	}
	return m, nil
}

// Resolve returns the named model. An empty name selects the default.
func (r *Registry) Resolve(name string) (Model, error) {
	if name == "" {
		name = r.defaultName
	}
	m, ok := r.models[name]
	if !ok {
		return Model{}, fmt.Errorf("%w: %q", ErrUnknownModel, name)
	}
	return m, nil
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}

// Default returns the name empty requests resolve to.
func (r *Registry) Default() string {
	return r.defaultName
}

// Describe lists the models in wire form.
func (r *Registry) Describe() *schema.ModelsResponse {
	resp := &schema.ModelsResponse{Default: r.defaultName, Models: make([]schema.ModelInfo, 0, len(r.names))}
	for _, name := range r.names {
		resp.Models = append(resp.Models, schema.ModelInfo{
			Name:    name,
			Path:    r.models[name].Path,
			Default: name == r.defaultName,
		})
	}
	return resp
}
