package pool

import (
	"context"
	"testing"

	"github.com/databricks-labs/gatewaydb/driver"
	"github.com/databricks-labs/gatewaydb/internal/fakedriver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLeaseSPReuse(t *testing.T) {
	fd := fakedriver.New()
	p := New(fd)
	ctx := WithTask(context.Background())

	c1, release1, err := p.Lease(ctx, driver.Identity{})
	require.NoError(t, err)
	release1()

	c2, release2, err := p.Lease(ctx, driver.Identity{})
	require.NoError(t, err)
	release2()

	assert.Same(t, c1, c2)
	assert.Equal(t, 1, fd.OpenCount())
}

func TestLeaseOBOSameTokenReuse(t *testing.T) {
	fd := fakedriver.New()
	p := New(fd)
	ctx := WithTask(context.Background())

	c1, r1, err := p.Lease(ctx, driver.Identity{Token: "tok-a"})
	require.NoError(t, err)
	r1()
	c2, r2, err := p.Lease(ctx, driver.Identity{Token: "tok-a"})
	require.NoError(t, err)
	r2()

	assert.Same(t, c1, c2)
	assert.Equal(t, 1, fd.OpenCount())
}

func TestLeaseOBODifferentTokenIsOneShot(t *testing.T) {
	fd := fakedriver.New()
	p := New(fd)
	ctx := WithTask(context.Background())

	cached, rCached, err := p.Lease(ctx, driver.Identity{Token: "tok-a"})
	require.NoError(t, err)
	rCached()

	oneShot, rOneShot, err := p.Lease(ctx, driver.Identity{Token: "tok-b"})
	require.NoError(t, err)
	assert.NotSame(t, cached, oneShot)
	rOneShot() // closes the one-shot connection

	// The cached OBO connection under tok-a is still reusable afterwards.
	again, rAgain, err := p.Lease(ctx, driver.Identity{Token: "tok-a"})
	require.NoError(t, err)
	rAgain()
	assert.Same(t, cached, again)
}

func TestLeasePanicsWithoutTask(t *testing.T) {
	fd := fakedriver.New()
	p := New(fd)
	assert.Panics(t, func() {
		_, _, _ = p.Lease(context.Background(), driver.Identity{})
	})
}

func TestCloseTaskClosesCachedConnections(t *testing.T) {
	fd := fakedriver.New()
	p := New(fd)
	ctx := WithTask(context.Background())

	c, release, err := p.Lease(ctx, driver.Identity{})
	require.NoError(t, err)
	release()

	p.CloseTask(ctx)
	assert.True(t, fd.IsClosed(c))
}
