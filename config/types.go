package config

// Payment describes the asset escrows settle in. It is created at first start
// with the platform authority as mint authority.
type Payment struct {
	Symbol         string `toml:"Symbol"`
	TransferFeeBps uint16 `toml:"TransferFeeBps"`
	MaxTransferFee uint64 `toml:"MaxTransferFee"`
	// InitialSupply is minted into the treasury when the mint is created.
	InitialSupply uint64 `toml:"InitialSupply"`
}

// RPC configures the JSON-RPC server.
type RPC struct {
	// JWTSecret enables bearer authentication of stay_sendTransaction.
	// JWTSecretEnv names an environment variable that overrides it.
	JWTSecret    string `toml:"JWTSecret"`
	JWTSecretEnv string `toml:"JWTSecretEnv"`
	JWTIssuer    string `toml:"JWTIssuer"`

	RateLimitPerSecond float64 `toml:"RateLimitPerSecond"`
	RateLimitBurst     int     `toml:"RateLimitBurst"`
	MaxBodyBytes       int64   `toml:"MaxBodyBytes"`

	ReadHeaderTimeout int `toml:"ReadHeaderTimeout"`
	ReadTimeout       int `toml:"ReadTimeout"`
	WriteTimeout      int `toml:"WriteTimeout"`
	IdleTimeout       int `toml:"IdleTimeout"`
}

type Logging struct {
	Level      string `toml:"Level"`
	Env        string `toml:"Env"`
	File       string `toml:"File"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays"`
}

// Telemetry configures the OTLP exporters.
type Telemetry struct {
	Endpoint    string  `toml:"Endpoint"`
	Insecure    bool    `toml:"Insecure"`
	Headers     string  `toml:"Headers"`
	Traces      bool    `toml:"Traces"`
	Metrics     bool    `toml:"Metrics"`
	SampleRatio float64 `toml:"SampleRatio"`
}
