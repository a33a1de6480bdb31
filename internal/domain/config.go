package domain

// Config is the node description served on the well-known endpoint.
type Config struct {
	Name      string `yaml:"name"`
	Publisher string `yaml:"publisher"`
	Transport string `yaml:"transport"`
	ChainID   uint64 `yaml:"chainID"`
	Contract  string `yaml:"contract"`
}
