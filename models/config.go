package models

type Config struct {
	Debug bool `envconfig:"GENEGNOME_DEBUG" yaml:"debug"`

	Api struct {
		Port        string `envconfig:"GENEGNOME_API_INTERNAL_PORT" yaml:"port"`
		Url         string `envconfig:"GENEGNOME_API_PUBLIC_URL" yaml:"url"`
		DataRoot    string `envconfig:"GENEGNOME_DATA_ROOT" yaml:"dataRoot"`
		MaxPartSize int64  `envconfig:"GENEGNOME_MAX_PART_SIZE_BYTES" yaml:"maxPartSize"`
	} `yaml:"api"`

	Database struct {
		Dsn string `envconfig:"GENEGNOME_DATABASE_DSN" yaml:"dsn"`
	} `yaml:"database"`

	Redis struct {
		Address  string `envconfig:"GENEGNOME_REDIS_ADDRESS" yaml:"address"`
		Password string `envconfig:"GENEGNOME_REDIS_PASSWORD" yaml:"password"`
	} `yaml:"redis"`

	ReferencePanel struct {
		Path string `envconfig:"GENEGNOME_REFERENCE_PANEL_PATH" yaml:"path"`
	} `yaml:"referencePanel"`

	Worker struct {
		Count                   int `envconfig:"GENEGNOME_WORKER_COUNT" default:"2" yaml:"count"`
		HeartbeatTimeoutSeconds int `envconfig:"GENEGNOME_WORKER_HEARTBEAT_TIMEOUT_SECONDS" default:"120" yaml:"heartbeatTimeoutSeconds"`
		StuckJobThresholdMins   int `envconfig:"GENEGNOME_STUCK_JOB_THRESHOLD_MINUTES" default:"120" yaml:"stuckJobThresholdMins"`
	} `yaml:"worker"`

	Retention struct {
		DataWindowHours       int `envconfig:"GENEGNOME_RETENTION_WINDOW_HOURS" default:"72" yaml:"dataWindowHours"`
		TokenExpiryHours      int `envconfig:"GENEGNOME_TOKEN_EXPIRY_HOURS" default:"24" yaml:"tokenExpiryHours"`
		ChunkSessionIdleHours int `envconfig:"GENEGNOME_CHUNK_SESSION_IDLE_HOURS" default:"1" yaml:"chunkSessionIdleHours"`
	} `yaml:"retention"`

	Download struct {
		MaxAttempts        int `envconfig:"GENEGNOME_MAX_DOWNLOAD_ATTEMPTS" default:"5" yaml:"maxAttempts"`
		RateLimitPerMinute int `envconfig:"GENEGNOME_DOWNLOAD_RATE_LIMIT_PER_MINUTE" default:"3" yaml:"rateLimitPerMinute"`
		PasswordLength     int `envconfig:"GENEGNOME_DOWNLOAD_PASSWORD_LENGTH" default:"16" yaml:"passwordLength"`
	} `yaml:"download"`

	Argon2 struct {
		Time        uint32 `envconfig:"GENEGNOME_ARGON2_TIME" default:"3" yaml:"time"`
		MemoryKiB   uint32 `envconfig:"GENEGNOME_ARGON2_MEMORY_KIB" default:"65536" yaml:"memoryKiB"`
		Parallelism uint8  `envconfig:"GENEGNOME_ARGON2_PARALLELISM" default:"4" yaml:"parallelism"`
	} `yaml:"argon2"`

	Smtp struct {
		Host     string `envconfig:"GENEGNOME_SMTP_HOST" yaml:"host"`
		Port     int    `envconfig:"GENEGNOME_SMTP_PORT" default:"587" yaml:"port"`
		From     string `envconfig:"GENEGNOME_SMTP_FROM" yaml:"from"`
		Username string `envconfig:"GENEGNOME_SMTP_USERNAME" yaml:"username"`
		Password string `envconfig:"GENEGNOME_SMTP_PASSWORD" yaml:"password"`
	} `yaml:"smtp"`
}
