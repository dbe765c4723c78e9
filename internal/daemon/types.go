package daemon

// StartOptions configures the daemon (home, port, DB backend, metrics).
type StartOptions struct {
	Home       string
	Port       int
	Dev        bool
	PprofAddr  string
	DBDriver   string // "sqlite" (default) or "postgres"
	DBURL      string // for postgres: connection string (or DATABASE_URL env)
	EnableOtel bool   // enable OpenTelemetry metrics (Prometheus exporter + HTTP instrumentation)
}

// StatusInfo is the result of Status (running or not, PID, listen addr).
type StatusInfo struct {
	Running bool
	PID     int
	Addr    string
}
