package balancer

import (
	"sync"
)

// WeightedRoundRobin implements weighted round-robin load balancing
type WeightedRoundRobin[T Member] struct {
	provider      Provider[T]
	mu            sync.Mutex
	currentIndex  int
	currentWeight int
}

// NewWeightedRoundRobin creates a new WeightedRoundRobin balancer
func NewWeightedRoundRobin[T Member](provider Provider[T]) *WeightedRoundRobin[T] {
	return &WeightedRoundRobin[T]{
		provider:      provider,
		currentIndex:  -1,
		currentWeight: 0,
	}
}

// Next returns the next member using weighted round-robin.
// Main members are preferred over fallback; members in exclude are skipped.
func (wrr *WeightedRoundRobin[T]) Next(exclude map[string]bool) (T, bool) {
	wrr.mu.Lock()
	defer wrr.mu.Unlock()

	var zero T
	members := wrr.getAvailable(exclude)
	if len(members) == 0 {
		return zero, false
	}

	if len(members) == 1 {
		return members[0], true
	}

	gcd := gcdWeights(members)
	maxWeight := maxWeight(members)
	if maxWeight <= 0 {
		wrr.currentIndex = (wrr.currentIndex + 1) % len(members)
		return members[wrr.currentIndex], true
	}

	for {
		wrr.currentIndex = (wrr.currentIndex + 1) % len(members)

		if wrr.currentIndex == 0 {
			wrr.currentWeight = wrr.currentWeight - gcd
			if wrr.currentWeight <= 0 {
				wrr.currentWeight = maxWeight
			}
		}

		m := members[wrr.currentIndex]
		if m.Weight() >= wrr.currentWeight {
			return m, true
		}
	}
}

// Reset resets the balancer state
func (wrr *WeightedRoundRobin[T]) Reset() {
	wrr.mu.Lock()
	defer wrr.mu.Unlock()

	wrr.currentIndex = -1
	wrr.currentWeight = 0
}

// getAvailable returns main members if any remain, otherwise fallback members
func (wrr *WeightedRoundRobin[T]) getAvailable(exclude map[string]bool) []T {
	main := filterExcluded(wrr.provider.Main(), exclude)
	if len(main) > 0 {
		return main
	}
	return filterExcluded(wrr.provider.Fallback(), exclude)
}

// filterExcluded removes excluded members from the list
func filterExcluded[T Member](members []T, exclude map[string]bool) []T {
	if len(exclude) == 0 {
		return members
	}

	result := make([]T, 0, len(members))
	for _, m := range members {
		if !exclude[m.Name()] {
			result = append(result, m)
		}
	}
	return result
}

// gcdWeights calculates the GCD of all positive member weights
func gcdWeights[T Member](members []T) int {
	result := 0
	for _, m := range members {
		if w := m.Weight(); w > 0 {
			result = gcd(result, w)
		}
	}
	if result == 0 {
		return 1
	}
	return result
}

// maxWeight returns the maximum weight among members
func maxWeight[T Member](members []T) int {
	max := 0
	for _, m := range members {
		if m.Weight() > max {
			max = m.Weight()
		}
	}
	return max
}

// gcd calculates the greatest common divisor
func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}
