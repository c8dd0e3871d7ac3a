package wire

// UserDataStreamState tracks an account's active user-data subscription
// ids against Binance's concurrency and lifetime ceilings.
//
// lifetime_count increments monotonically on every Add and is never
// decremented by Remove/ClearAll — it bounds how many subscriptions an
// account may ever create on a single connection, not how many are live at
// once.
type UserDataStreamState struct {
	active        []int64
	maxConcurrent int
	maxLifetime   uint32
	lifetimeCount uint32
}

const (
	DefaultMaxConcurrentStreams = 1000
	DefaultMaxLifetimeStreams   = 65535
)

func NewUserDataStreamState() *UserDataStreamState {
	return &UserDataStreamState{
		maxConcurrent: DefaultMaxConcurrentStreams,
		maxLifetime:   DefaultMaxLifetimeStreams,
	}
}

func (s *UserDataStreamState) CanCreate() bool {
	return len(s.active) < s.maxConcurrent && s.lifetimeCount < s.maxLifetime
}

// Add records a new subscription id, subject to CanCreate. Returns false
// without mutating state if the account is already at either ceiling.
func (s *UserDataStreamState) Add(id int64) bool {
	if !s.CanCreate() {
		return false
	}
	s.active = append(s.active, id)
	s.lifetimeCount++
	return true
}

// Remove drops id from the active set. lifetime_count is untouched.
func (s *UserDataStreamState) Remove(id int64) {
	for i, a := range s.active {
		if a == id {
			s.active = append(s.active[:i], s.active[i+1:]...)
			return
		}
	}
}

// ClearAll drops every active subscription. lifetime_count is untouched.
func (s *UserDataStreamState) ClearAll() {
	s.active = nil
}

func (s *UserDataStreamState) Active() []int64 {
	out := make([]int64, len(s.active))
	copy(out, s.active)
	return out
}

func (s *UserDataStreamState) LifetimeCount() uint32 { return s.lifetimeCount }
