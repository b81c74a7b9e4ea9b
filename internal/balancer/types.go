package balancer

// Member is a weighted, named selection candidate
type Member interface {
	Name() string
	Weight() int
}

// Provider supplies the candidates currently eligible for selection
type Provider[T Member] interface {
	// Main returns available main members
	Main() []T

	// Fallback returns available fallback members
	Fallback() []T
}
