package lifetimer

// NoOpLifetimer is used when the periodic sweep is disabled.
// Expired entries are then only dropped by the reads that discover them.
type NoOpLifetimer struct{}

// LifetimerMetrics always returns zero values.
func (NoOpLifetimer) LifetimerMetrics() (scans, removed int64) {
	return 0, 0
}

// Close does nothing and returns nil.
func (NoOpLifetimer) Close() error {
	return nil
}
