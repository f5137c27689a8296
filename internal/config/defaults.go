package config

const (
	defaultConfigPath        = "~/.config/alfalfa/config.toml"
	projectConfigName        = "alfalfa.toml"
	defaultCatalogPath       = "~/.local/share/alfalfa/catalog.db"
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
	defaultLogFileLevel      = "debug"
	defaultReconstructor     = ReconstructorIntra
	defaultContinuationEvery = 1
)

// Reconstructor names accepted in decoder.reconstructor.
const (
	ReconstructorIntra     = "intra"
	ReconstructorSynthetic = "synthetic"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			Catalog: defaultCatalogPath,
		},
		Logging: Logging{
			Format:    defaultLogFormat,
			Level:     defaultLogLevel,
			FileLevel: defaultLogFileLevel,
		},
		Decoder: Decoder{
			Reconstructor: defaultReconstructor,
		},
		Serialize: Serialize{
			ContinuationEvery: defaultContinuationEvery,
		},
	}
}
