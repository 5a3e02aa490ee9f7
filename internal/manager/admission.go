package manager

import "context"

// acquire enters the exclusive section. A caller still waiting gives up
// when ctx is done; once inside, the operation runs to completion.
// Returns a release func to be deferred.
func (m *Manager) acquire(ctx context.Context) (func(), error) {
	if err := ctx.Err(); err != nil {
		return func() {}, err
	}
	select {
	case m.slot <- struct{}{}:
		return func() { <-m.slot }, nil
	case <-ctx.Done():
		return func() {}, ctx.Err()
	}
}
