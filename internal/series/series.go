package series

// DefaultCapacity bounds per-instrument history when no override is given.
const DefaultCapacity = 200

// Rolling holds a bounded FIFO window of observed prices for one instrument.
// Once capacity is reached the oldest observation is evicted on Add.
// It is not safe for concurrent use; each watcher owns its instrument series.
type Rolling struct {
	buf   []float64
	head  int
	count int
}

// NewRolling constructs a rolling series with the given capacity.
// Non-positive capacities fall back to DefaultCapacity.
func NewRolling(capacity int) *Rolling {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Rolling{buf: make([]float64, capacity)}
}

// Add appends a price, evicting the oldest once the window is full.
func (r *Rolling) Add(price float64) {
	idx := (r.head + r.count) % len(r.buf)
	r.buf[idx] = price
	if r.count < len(r.buf) {
		r.count++
		return
	}
	r.head = (r.head + 1) % len(r.buf)
}

// Len reports how many observations are currently held.
func (r *Rolling) Len() int {
	return r.count
}

// Cap reports the fixed window capacity.
func (r *Rolling) Cap() int {
	return len(r.buf)
}

// at returns the i-th oldest element; i must be in [0, count).
func (r *Rolling) at(i int) float64 {
	return r.buf[(r.head+i)%len(r.buf)]
}

// Last returns the most recent observation, if any.
func (r *Rolling) Last() (float64, bool) {
	if r.count == 0 {
		return 0, false
	}
	return r.at(r.count - 1), true
}

// SMA computes the simple moving average of the last n observations.
// The second return is false when fewer than n observations exist.
func (r *Rolling) SMA(n int) (float64, bool) {
	if n <= 0 || r.count < n {
		return 0, false
	}
	sum := 0.0
	for i := r.count - n; i < r.count; i++ {
		sum += r.at(i)
	}
	return sum / float64(n), true
}

// RSI computes the Relative Strength Index over the last n deltas, using the
// ratio of summed gains to summed losses. Requires n+1 observations. A window
// with zero cumulative loss saturates at 100 rather than dividing by zero.
func (r *Rolling) RSI(n int) (float64, bool) {
	if n <= 0 || r.count < n+1 {
		return 0, false
	}
	gains, losses := 0.0, 0.0
	for i := r.count - n; i < r.count; i++ {
		d := r.at(i) - r.at(i-1)
		if d >= 0 {
			gains += d
		} else {
			losses -= d
		}
	}
	if losses == 0 {
		return 100, true
	}
	rs := gains / losses
	return 100 - (100 / (1 + rs)), true
}

// MaxLast returns the maximum of the last n observations.
func (r *Rolling) MaxLast(n int) (float64, bool) {
	if n <= 0 || r.count < n {
		return 0, false
	}
	max := r.at(r.count - n)
	for i := r.count - n + 1; i < r.count; i++ {
		if v := r.at(i); v > max {
			max = v
		}
	}
	return max, true
}

// MinLast returns the minimum of the last n observations.
func (r *Rolling) MinLast(n int) (float64, bool) {
	if n <= 0 || r.count < n {
		return 0, false
	}
	min := r.at(r.count - n)
	for i := r.count - n + 1; i < r.count; i++ {
		if v := r.at(i); v < min {
			min = v
		}
	}
	return min, true
}

// Values copies out the window oldest-first, mainly for simulation output.
func (r *Rolling) Values() []float64 {
	out := make([]float64, r.count)
	for i := 0; i < r.count; i++ {
		out[i] = r.at(i)
	}
	return out
}
