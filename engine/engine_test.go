package engine

import (
	"errors"
	"testing"
)

func TestRegisterAndDefault(t *testing.T) {
	t.Cleanup(func() { Register(nil) })

	Register(nil)
	if Default() != nil {
		t.Fatalf("未注册时 Default 应为 nil")
	}

	want := errors.New("stub")
	Register(BuilderFunc(func(string) (Animation, error) { return nil, want }))
	b := Default()
	if b == nil {
		t.Fatalf("注册后 Default 不应为 nil")
	}
	if _, err := b.Build("{}"); !errors.Is(err, want) {
		t.Fatalf("应调用到注册的构建函数: %v", err)
	}

	// 后注册者覆盖先注册者。
	other := errors.New("other")
	Register(BuilderFunc(func(string) (Animation, error) { return nil, other }))
	if _, err := Default().Build("{}"); !errors.Is(err, other) {
		t.Fatalf("后注册者应生效: %v", err)
	}
}
