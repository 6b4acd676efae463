package schema

// ModelInfo describes one registered model.
type ModelInfo struct {
	Name    string `json:"name" msgpack:"name"`
	Path    string `json:"path,omitempty" msgpack:"path,omitempty"`
	Default bool   `json:"default" msgpack:"default"`
}

// ModelsResponse lists the registered models.
type ModelsResponse struct {
	Models  []ModelInfo `json:"models" msgpack:"models"`
	Default string      `json:"default" msgpack:"default"`
}
