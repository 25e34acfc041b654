package identity

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kevinaaaquil/circulation/circulation"
	"github.com/kevinaaaquil/circulation/models"
)

type userMap map[string]*models.User

func (m userMap) UserByID(_ context.Context, id string) (*models.User, error) {
	if u, ok := m[id]; ok {
		return u, nil
	}
	return nil, circulation.NotFound(circulation.ErrUserNotFound, id)
}

func TestIssueResolve(t *testing.T) {
	users := userMap{"u1": {ID: "u1", Email: "ada@example.org", Role: models.RoleLibrarian, BranchID: "north", IsActive: true}}
	o := NewJWTOracle("s3cret", users)

	token, err := o.Issue(users["u1"])
	require.NoError(t, err)

	actor, err := o.Resolve(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, models.Actor{UserID: "u1", Role: models.RoleLibrarian, BranchID: "north", IsActive: true}, actor)

	// role changes apply to tokens already issued
	users["u1"].Role = models.RoleStudent
	users["u1"].IsActive = false
	actor, err = o.Resolve(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, models.RoleStudent, actor.Role)
	assert.False(t, actor.IsActive)
}

func TestResolveRejects(t *testing.T) {
	users := userMap{"u1": {ID: "u1", IsActive: true}}
	o := NewJWTOracle("s3cret", users)
	ctx := context.Background()

	_, err := o.Resolve(ctx, "garbage")
	assert.ErrorIs(t, err, circulation.ErrUnauthorized)

	other, err := NewJWTOracle("different", users).Issue(users["u1"])
	require.NoError(t, err)
	_, err = o.Resolve(ctx, other)
	assert.ErrorIs(t, err, circulation.ErrUnauthorized)

	ghost, err := o.Issue(&models.User{ID: "ghost"})
	require.NoError(t, err)
	_, err = o.Resolve(ctx, ghost)
	assert.Equal(t, circulation.KindForbidden, circulation.KindOf(err))

	o.now = func() time.Time { return time.Now().Add(-2 * TokenTTL) }
	expired, err := o.Issue(users["u1"])
	require.NoError(t, err)
	o.now = time.Now
	_, err = o.Resolve(ctx, expired)
	assert.ErrorIs(t, err, circulation.ErrUnauthorized)
}

// stalledLookup blocks until the caller gives up.
type stalledLookup struct{}

func (stalledLookup) UserByID(ctx context.Context, _ string) (*models.User, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestResolveTimesOut(t *testing.T) {
	o := NewJWTOracle("s3cret", stalledLookup{}, WithLookupTimeout(20*time.Millisecond))
	token, err := o.Issue(&models.User{ID: "u1"})
	require.NoError(t, err)

	start := time.Now()
	_, err = o.Resolve(context.Background(), token)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, circulation.KindStoreUnavailable, circulation.KindOf(err))
	assert.True(t, circulation.IsRetryable(err))
}
