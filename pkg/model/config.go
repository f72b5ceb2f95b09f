package model

import "time"

// Cfg is the root configuration for all services in this repository.
type Cfg struct {
	Common   Common    `yaml:"common" validate:"required"`
	Issuer   *Issuer   `yaml:"issuer"`
	Verifier *Verifier `yaml:"verifier"`
}

// Common holds configuration shared by the issuer and the verifier.
type Common struct {
	// Production switches gin and zap to their production presets.
	Production bool    `yaml:"production" envconfig:"PRODUCTION"`
	Log        Log     `yaml:"log"`
	Tracing    Tracing `yaml:"tracing"`
	Mongo      Mongo   `yaml:"mongo"`
	Kafka      Kafka   `yaml:"kafka"`

	// HTTPTimeout bounds every outbound HTTP call. A service must not
	// start without an explicit deadline, hence required.
	HTTPTimeout time.Duration `yaml:"http_timeout" envconfig:"HTTP_TIMEOUT" default:"5s" validate:"required"`
	// DBTimeout bounds every datastore operation.
	DBTimeout time.Duration `yaml:"db_timeout" envconfig:"DB_TIMEOUT" default:"3s" validate:"required"`
}

type Log struct {
	Level string `yaml:"level" envconfig:"LOG_LEVEL"`
}

// Tracing configures the OTLP trace exporter. An empty Addr disables export
// and installs a no-op tracer.
type Tracing struct {
	Addr string `yaml:"addr" envconfig:"TRACING_ADDR"`
}

type Mongo struct {
	URI string `yaml:"uri" envconfig:"MONGO_URI"`
}

// Kafka configures the credential activity publisher. When disabled the
// services fall back to a no-op publisher.
type Kafka struct {
	Enabled bool     `yaml:"enabled" envconfig:"KAFKA_ENABLED"`
	Brokers []string `yaml:"brokers" envconfig:"KAFKA_BROKERS"`
	Topic   string   `yaml:"topic" envconfig:"KAFKA_TOPIC" default:"credential_activity"`
}

// APIServer configures one HTTP listener.
type APIServer struct {
	Addr      string    `yaml:"addr" validate:"required"`
	RateLimit RateLimit `yaml:"rate_limit"`
}

// RateLimit caps requests per client IP over a one minute window.
type RateLimit struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute" default:"600"`
}

// Issuer configures the credential issuer service.
type Issuer struct {
	APIServer APIServer `yaml:"api_server" validate:"required"`

	// DID is the issuer identity placed in every credential.
	DID string `yaml:"did" validate:"required"`
	// SigningKeyPath points at a PEM encoded P-256 private key.
	SigningKeyPath string `yaml:"signing_key_path" validate:"required"`
	// KeyID is the JOSE kid for issued credentials. Defaults to DID + "#key-1".
	KeyID string `yaml:"key_id"`
	// ExternalURL is the public base URL under which status lists and the
	// DID document are served.
	ExternalURL string `yaml:"external_url" validate:"required"`

	// CredentialTTL is the validity window stamped on issued credentials.
	CredentialTTL time.Duration `yaml:"credential_ttl" envconfig:"CREDENTIAL_TTL" default:"8760h" validate:"required"`
	// SubjectSchemaPath optionally points at a JSON Schema applied to
	// every credential subject before signing.
	SubjectSchemaPath string `yaml:"subject_schema_path"`

	StatusList StatusListCfg `yaml:"status_list"`
}

// StatusListCfg sizes the issuer's status lists.
type StatusListCfg struct {
	// Size is the number of two-bit entries per list.
	Size int `yaml:"size" default:"65536" validate:"required,min=8"`
	// TokenTTL is the exp window stamped on signed status list tokens.
	TokenTTL time.Duration `yaml:"token_ttl" envconfig:"STATUS_TOKEN_TTL" default:"24h" validate:"required"`
}

// Verifier configures the presentation verifier service.
type Verifier struct {
	APIServer APIServer `yaml:"api_server" validate:"required"`

	// ExternalURL is the public base URL wallets post authorization
	// responses to.
	ExternalURL string `yaml:"external_url" validate:"required"`

	// TrustedIACAPaths point at PEM files holding mdoc IACA root
	// certificates.
	TrustedIACAPaths []string `yaml:"trusted_iaca_paths"`
	// TrustedKeys maps issuer and holder DIDs to PEM encoded public keys
	// for deployments that pin keys instead of resolving did:web.
	TrustedKeys map[string]string `yaml:"trusted_keys"`

	// AllowedSkew widens temporal claim checks in both directions.
	AllowedSkew time.Duration `yaml:"allowed_skew" envconfig:"ALLOWED_SKEW"`
	// DIDCacheTTL bounds reuse of remotely resolved DID keys.
	DIDCacheTTL time.Duration `yaml:"did_cache_ttl" envconfig:"DID_CACHE_TTL" default:"5m" validate:"required"`
	// SessionTTL bounds the lifetime of OpenID4VP sessions.
	SessionTTL time.Duration `yaml:"session_ttl" envconfig:"SESSION_TTL" default:"10m" validate:"required"`
	// StatusListTTL bounds how long fetched status lists are cached.
	StatusListTTL time.Duration `yaml:"status_list_ttl" envconfig:"STATUS_LIST_TTL" default:"1m" validate:"required"`
	// SkipMDocRevocationCheck disables the OCSP lookup on mdoc document
	// signer certificates.
	SkipMDocRevocationCheck bool `yaml:"skip_mdoc_revocation_check"`

	// SessionStore selects where OpenID4VP sessions live.
	SessionStore string `yaml:"session_store" default:"memory" validate:"oneof=memory mongo"`
}
