package config

// ArtifactsConfig holds artifact storage configuration
type ArtifactsConfig struct {
	// Root directory for staged uploads and result files
	Root string `mapstructure:"root" validate:"required"`
}
