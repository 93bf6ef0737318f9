package monitoring

// Config configures the operational metrics endpoint.
type Config struct {
	HTTP string `toml:",omitempty"`
	Port int    `toml:",omitempty"`
}

// DefaultConfig is the default metrics endpoint config.
var DefaultConfig = Config{
	HTTP: "127.0.0.1",
	Port: 19090,
}
