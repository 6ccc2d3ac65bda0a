package pumped

// Synchronous views compute a value from the current source values and
// return it. A returned error is reported and leaves the previous value.
//
// Asynchronous views receive a set callback instead. They may call it later,
// from any goroutine, or not at all. set reports whether the value was
// applied; it returns false once a newer computation has been issued.

func Derive1[T any, D1 any](
	s *Scope,
	d1 Readable[D1],
	fn func(*ComputeCtx, D1) (T, error),
	opts ...NodeOption,
) *View[T] {
	v := newView[T](s, []AnyNode{d1}, false, opts)
	v.run = func(cc *ComputeCtx) {
		val, err := fn(cc, d1.Read())
		if err != nil {
			cc.Fail(err)
			return
		}
		v.apply(cc.version, val)
	}
	v.start([]func(func()) Unsubscribe{watch(d1)})
	return v
}

func Derive2[T any, D1 any, D2 any](
	s *Scope,
	d1 Readable[D1],
	d2 Readable[D2],
	fn func(*ComputeCtx, D1, D2) (T, error),
	opts ...NodeOption,
) *View[T] {
	v := newView[T](s, []AnyNode{d1, d2}, false, opts)
	v.run = func(cc *ComputeCtx) {
		val, err := fn(cc, d1.Read(), d2.Read())
		if err != nil {
			cc.Fail(err)
			return
		}
		v.apply(cc.version, val)
	}
	v.start([]func(func()) Unsubscribe{watch(d1), watch(d2)})
	return v
}

func Derive3[T any, D1 any, D2 any, D3 any](
	s *Scope,
	d1 Readable[D1],
	d2 Readable[D2],
	d3 Readable[D3],
	fn func(*ComputeCtx, D1, D2, D3) (T, error),
	opts ...NodeOption,
) *View[T] {
	v := newView[T](s, []AnyNode{d1, d2, d3}, false, opts)
	v.run = func(cc *ComputeCtx) {
		val, err := fn(cc, d1.Read(), d2.Read(), d3.Read())
		if err != nil {
			cc.Fail(err)
			return
		}
		v.apply(cc.version, val)
	}
	v.start([]func(func()) Unsubscribe{watch(d1), watch(d2), watch(d3)})
	return v
}

func DeriveAsync1[T any, D1 any](
	s *Scope,
	d1 Readable[D1],
	fn func(*ComputeCtx, D1, func(T) bool),
	opts ...NodeOption,
) *View[T] {
	v := newView[T](s, []AnyNode{d1}, true, opts)
	v.run = func(cc *ComputeCtx) {
		fn(cc, d1.Read(), v.setter(cc.version))
	}
	v.start([]func(func()) Unsubscribe{watch(d1)})
	return v
}

func DeriveAsync2[T any, D1 any, D2 any](
	s *Scope,
	d1 Readable[D1],
	d2 Readable[D2],
	fn func(*ComputeCtx, D1, D2, func(T) bool),
	opts ...NodeOption,
) *View[T] {
	v := newView[T](s, []AnyNode{d1, d2}, true, opts)
	v.run = func(cc *ComputeCtx) {
		fn(cc, d1.Read(), d2.Read(), v.setter(cc.version))
	}
	v.start([]func(func()) Unsubscribe{watch(d1), watch(d2)})
	return v
}

func DeriveAsync3[T any, D1 any, D2 any, D3 any](
	s *Scope,
	d1 Readable[D1],
	d2 Readable[D2],
	d3 Readable[D3],
	fn func(*ComputeCtx, D1, D2, D3, func(T) bool),
	opts ...NodeOption,
) *View[T] {
	v := newView[T](s, []AnyNode{d1, d2, d3}, true, opts)
	v.run = func(cc *ComputeCtx) {
		fn(cc, d1.Read(), d2.Read(), d3.Read(), v.setter(cc.version))
	}
	v.start([]func(func()) Unsubscribe{watch(d1), watch(d2), watch(d3)})
	return v
}

func (v *View[T]) setter(version uint64) func(T) bool {
	return func(val T) bool {
		return v.apply(version, val)
	}
}
