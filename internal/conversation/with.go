package conversation

import "context"

// With mounts a view of the conversation with peer, runs fn against it and
// unmounts it again, even when fn fails.
func With(ctx context.Context, deps Deps, peer string, fn func(*View) error) (err error) {
	v, err := NewView(deps, peer)
	if err != nil {
		return err
	}
	if err := v.Mount(ctx); err != nil {
		return err
	}
	defer func() {
		if uerr := v.Unmount(); err == nil {
			err = uerr
		}
	}()
	return fn(v)
}
