// Package pumped provides observable cells and derived views that keep
// themselves consistent as their inputs change.
//
// # Overview
//
// Pumped organizes state around three core concepts:
//
//  1. Cells: single mutable values that notify subscribers on every write
//  2. Views: read-only values computed from cells or other views
//  3. Scopes: owners of cells and views that serialize notifications,
//     run extensions and keep an execution history
//
// # Basic Usage
//
//	scope := pumped.NewScope()
//	defer scope.Dispose()
//
//	counter := pumped.NewCell(scope, 5, pumped.Named("counter"))
//
//	doubled := pumped.Derive1(scope, counter,
//	    func(cc *pumped.ComputeCtx, n int) (int, error) {
//	        return n * 2, nil
//	    },
//	)
//
//	counter.Write(7)
//	doubled.Read() // 14
//
// # Subscriptions
//
// Subscribe calls the callback immediately with the current value and again
// after every write. The returned func removes the subscription; calling it
// twice is a no-op.
//
//	unsubscribe := counter.Subscribe(func(n int) {
//	    fmt.Println("counter is", n)
//	})
//	defer unsubscribe()
//
// Callbacks of one scope never run concurrently. A write issued from inside a
// callback is queued and delivered once the current callback returns, so every
// subscriber sees writes to a cell in order.
//
// # Asynchronous Views
//
// Asynchronous views receive a set callback instead of returning a value:
//
//	details := pumped.DeriveAsync1(scope, selection,
//	    func(cc *pumped.ComputeCtx, id int, set func([]Detail) bool) {
//	        go func() {
//	            d, err := client.Details(cc.Context(), id)
//	            if err != nil {
//	                cc.Fail(err)
//	                return
//	            }
//	            set(d)
//	        }()
//	    },
//	)
//
// Every source change bumps the view's version and issues a new computation.
// set applies a result only while its computation is still the latest one; a
// result that arrives after newer inputs is discarded and set returns false.
// The context returned by cc.Context is cancelled as soon as the computation is
// superseded or the scope is disposed.
//
// # Tags
//
// Tags provide type-safe metadata for cells, views and scopes:
//
//	ownerTag := pumped.NewTag[string]("owner")
//
//	cell := pumped.NewCell(scope, 0, pumped.WithTag(ownerTag, "sync"))
//	owner, ok := ownerTag.Get(cell)
//
//	scope := pumped.NewScope(pumped.WithScopeTag(ownerTag, "app"))
//
// # Executions
//
// Exec and Exec1 run named short-span operations and record them in the
// scope's execution tree:
//
//	n, execCtx, err := pumped.Exec(ctx, scope, "load", func(e *pumped.ExecutionCtx) (int, error) {
//	    items, _, err := pumped.Exec1(e, "load.items", fetchItems)
//	    return len(items), err
//	})
//
//	tree := scope.GetExecutionTree()
//	failed := tree.Filter(func(node *pumped.ExecutionNode) bool {
//	    status, _ := pumped.Status().GetFromExecution(node)
//	    return status == pumped.ExecutionStatusFailed
//	})
//
// # Extensions
//
// Extensions see every write, computation and applied or discarded result:
//
//	type LoggingExtension struct {
//	    pumped.BaseExtension
//	}
//
//	func (e *LoggingExtension) Wrap(ctx context.Context, next func() (any, error), op *pumped.Operation) (any, error) {
//	    result, err := next()
//	    log.Printf("%s %s", op.Kind, pumped.NameOf(op.Node))
//	    return result, err
//	}
//
//	scope := pumped.NewScope(
//	    pumped.WithExtension(&LoggingExtension{
//	        BaseExtension: pumped.NewBaseExtension("logging"),
//	    }),
//	)
//
// # Thread Safety
//
// Cells and views can be read and written from any goroutine. Asynchronous
// set callbacks may be called from any goroutine.
package pumped
