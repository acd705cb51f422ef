// Package redis connects to Redis and provides a lease-style Locker used to
// keep scheduled sweeps from running on two replicas at once.
//
//	client, err := redis.Connect(ctx, cfg)
//	locker := redis.NewLocker(client, "creditkit:lock:")
//	release, err := locker.Acquire(ctx, "sweeper", 5*time.Minute)
//	if errors.Is(err, redis.ErrLockNotAcquired) {
//		return nil // someone else is sweeping
//	}
//	defer release(ctx)
package redis
