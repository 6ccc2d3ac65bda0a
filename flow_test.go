package pumped

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestExecRecordsExecution(t *testing.T) {
	scope := NewScope()
	defer scope.Dispose()

	result, execCtx, err := Exec(context.Background(), scope, "sum", func(e *ExecutionCtx) (int, error) {
		return 42, nil
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result != 42 {
		t.Errorf("expected 42, got %d", result)
	}

	node := scope.GetExecutionTree().GetNode(execCtx.ID())
	if node == nil {
		t.Fatal("expected execution to be recorded")
	}
	if name, _ := FlowName().GetFromExecution(node); name != "sum" {
		t.Errorf("expected flow name 'sum', got %q", name)
	}
	if status, _ := Status().GetFromExecution(node); status != ExecutionStatusSuccess {
		t.Errorf("expected success, got %v", status)
	}
	if out, _ := Output().GetFromExecution(node); out != 42 {
		t.Errorf("expected output 42, got %v", out)
	}
	start, _ := StartTime().GetFromExecution(node)
	end, _ := EndTime().GetFromExecution(node)
	if end.Before(start) {
		t.Error("expected end time after start time")
	}
}

func TestExecChildren(t *testing.T) {
	scope := NewScope()
	defer scope.Dispose()

	userTag := NewTag[string]("user")

	_, root, err := Exec(context.Background(), scope, "parent", func(e *ExecutionCtx) (string, error) {
		e.Set(userTag, "ada")

		a, _, err := Exec1(e, "child.a", func(child *ExecutionCtx) (string, error) {
			v, ok := child.Lookup(userTag)
			if !ok {
				return "", errors.New("expected tag from parent")
			}
			return v.(string), nil
		})
		if err != nil {
			return "", err
		}
		b, _, err := Exec1(e, "child.b", func(child *ExecutionCtx) (string, error) {
			return "b", nil
		})
		return a + b, err
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	tree := scope.GetExecutionTree()
	children := tree.GetChildren(root.ID())
	if len(children) != 2 {
		t.Fatalf("expected 2 children, got %d", len(children))
	}
	for i, want := range []string{"child.a", "child.b"} {
		if name, _ := FlowName().GetFromExecution(children[i]); name != want {
			t.Errorf("expected child %d to be %q, got %q", i, want, name)
		}
		if children[i].ParentID != root.ID() {
			t.Errorf("expected parent %s, got %s", root.ID(), children[i].ParentID)
		}
	}
	if roots := tree.GetRoots(); len(roots) != 1 {
		t.Errorf("expected 1 root, got %d", len(roots))
	}
	if out, _ := Output().GetFromExecution(tree.GetNode(root.ID())); out != "adab" {
		t.Errorf("expected output 'adab', got %v", out)
	}
}

func TestExecFailure(t *testing.T) {
	scope := NewScope()
	defer scope.Dispose()

	boom := errors.New("boom")
	_, execCtx, err := Exec(context.Background(), scope, "fail", func(e *ExecutionCtx) (int, error) {
		return 0, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	node := scope.GetExecutionTree().GetNode(execCtx.ID())
	if status, _ := Status().GetFromExecution(node); status != ExecutionStatusFailed {
		t.Errorf("expected failed, got %v", status)
	}
	if recorded, _ := ErrorTag().GetFromExecution(node); !errors.Is(recorded, boom) {
		t.Errorf("expected recorded error, got %v", recorded)
	}
}

func TestExecCancelled(t *testing.T) {
	scope := NewScope()
	defer scope.Dispose()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ran := false
	_, execCtx, err := Exec(ctx, scope, "cancelled", func(e *ExecutionCtx) (int, error) {
		ran = true
		return 1, nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if ran {
		t.Error("expected fn not to run on a cancelled context")
	}
	node := scope.GetExecutionTree().GetNode(execCtx.ID())
	if status, _ := Status().GetFromExecution(node); status != ExecutionStatusCancelled {
		t.Errorf("expected cancelled, got %v", status)
	}
}

func TestExecCancelledWhileRunning(t *testing.T) {
	scope := NewScope()
	defer scope.Dispose()

	ctx, cancel := context.WithCancel(context.Background())
	release := make(chan struct{})
	defer close(release)

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, _, err := Exec(ctx, scope, "slow", func(e *ExecutionCtx) (int, error) {
		<-release
		return 1, nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestExecPanic(t *testing.T) {
	scope := NewScope()
	defer scope.Dispose()

	_, execCtx, err := Exec(context.Background(), scope, "panics", func(e *ExecutionCtx) (int, error) {
		panic("kaboom")
	})
	if err == nil || !strings.Contains(err.Error(), "kaboom") {
		t.Fatalf("expected panic error, got %v", err)
	}
	node := scope.GetExecutionTree().GetNode(execCtx.ID())
	if stack, ok := PanicStack().GetFromExecution(node); !ok || len(stack) == 0 {
		t.Error("expected panic stack to be recorded")
	}
}

func TestExecutionHistoryLimit(t *testing.T) {
	scope := NewScope(WithHistoryLimit(3))
	defer scope.Dispose()

	var first string
	for i := 0; i < 5; i++ {
		_, execCtx, _ := Exec(context.Background(), scope, "tick", func(e *ExecutionCtx) (int, error) {
			return i, nil
		})
		if i == 0 {
			first = execCtx.ID()
		}
	}

	tree := scope.GetExecutionTree()
	if roots := tree.GetRoots(); len(roots) != 3 {
		t.Errorf("expected 3 retained executions, got %d", len(roots))
	}
	if tree.GetNode(first) != nil {
		t.Error("expected the oldest execution to be evicted")
	}
	failed := tree.Filter(func(n *ExecutionNode) bool {
		s, _ := Status().GetFromExecution(n)
		return s != ExecutionStatusSuccess
	})
	if len(failed) != 0 {
		t.Errorf("expected no failures, got %d", len(failed))
	}
}

func TestExecutionCtxScopeLookup(t *testing.T) {
	envTag := NewTag[string]("env")
	scope := NewScope(WithScopeTag(envTag, "test"))
	defer scope.Dispose()

	_, _, err := Exec(context.Background(), scope, "lookup", func(e *ExecutionCtx) (string, error) {
		if e.Parent() != nil {
			return "", errors.New("expected root execution")
		}
		if _, ok := e.GetFromParent(envTag); ok {
			return "", errors.New("expected nothing in parents")
		}
		v, ok := e.Lookup(envTag)
		if !ok || v != "test" {
			return "", errors.New("expected scope tag")
		}
		return v.(string), nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestExecutionStatusString(t *testing.T) {
	if ExecutionStatusCancelled.String() != "cancelled" {
		t.Errorf("unexpected %q", ExecutionStatusCancelled.String())
	}
	if ExecutionStatus(9).String() != "status(9)" {
		t.Errorf("unexpected %q", ExecutionStatus(9).String())
	}
}
