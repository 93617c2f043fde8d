package service

const (
	DefaultDiscoverChunkSize = 200
	DefaultDiscoverCap       = 2000
	DefaultDeleteChunkSize   = 100
	DefaultDeleteCap         = 400
)

// DiscoveryLimits bound one discovery pass: rows per ledger append and
// matched files per run.
type DiscoveryLimits struct {
	WriteChunkSize int
	MaxFiles       int
}

// ReconcileLimits bound one reconciliation pass: rows per delete chunk and
// attempted deletions per run.
type ReconcileLimits struct {
	DeleteChunkSize int
	MaxFiles        int
}

func DefaultDiscoveryLimits() DiscoveryLimits {
	return DiscoveryLimits{WriteChunkSize: DefaultDiscoverChunkSize, MaxFiles: DefaultDiscoverCap}
}

func DefaultReconcileLimits() ReconcileLimits {
	return ReconcileLimits{DeleteChunkSize: DefaultDeleteChunkSize, MaxFiles: DefaultDeleteCap}
}

func (l DiscoveryLimits) normalized() DiscoveryLimits {
	if l.WriteChunkSize <= 0 {
		l.WriteChunkSize = DefaultDiscoverChunkSize
	}
	if l.MaxFiles <= 0 {
		l.MaxFiles = DefaultDiscoverCap
	}
	return l
}

func (l ReconcileLimits) normalized() ReconcileLimits {
	if l.DeleteChunkSize <= 0 {
		l.DeleteChunkSize = DefaultDeleteChunkSize
	}
	if l.MaxFiles <= 0 {
		l.MaxFiles = DefaultDeleteCap
	}
	return l
}
