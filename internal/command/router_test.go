package command

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nextlevelbuilder/msgcode/internal/routestore"
)

func newRouter(t *testing.T) (*Router, string) {
	t.Helper()
	wsRoot := t.TempDir()
	store := routestore.New(filepath.Join(t.TempDir(), "routes.json"))
	if err := store.Load(); err != nil {
		t.Fatal(err)
	}
	return &Router{Routes: store, WorkspaceRoot: wsRoot}, wsRoot
}

func TestBindThenWhere(t *testing.T) {
	r, wsRoot := newRouter(t)
	res := r.Handle("any;+;c1", ParseCommand("/bind acme/ops"))
	if !res.Success || !strings.Contains(res.Message, "绑定成功") || !strings.Contains(res.Message, "acme/ops") {
		t.Fatalf("unexpected bind result: %+v", res)
	}
	if _, err := os.Stat(filepath.Join(wsRoot, "acme", "ops")); err != nil {
		t.Fatalf("expected workspace directory created: %v", err)
	}

	where := r.Handle("any;+;c1", ParseCommand("/where"))
	if !where.Success || !strings.Contains(where.Message, "当前绑定") {
		t.Fatalf("unexpected where result: %+v", where)
	}
}

func TestWhereUnboundReportsUnbound(t *testing.T) {
	r, _ := newRouter(t)
	res := r.Handle("any;+;c2", ParseCommand("/where"))
	if res.Message != "未绑定" {
		t.Fatalf("expected 未绑定, got %+v", res)
	}
}

func TestBindRejectsEscapingPath(t *testing.T) {
	r, _ := newRouter(t)
	res := r.Handle("any;+;c3", ParseCommand("/bind ../escape"))
	if res.Success {
		t.Fatal("expected escaping path to be rejected")
	}
}

func TestUnbindRemovesRoute(t *testing.T) {
	r, _ := newRouter(t)
	r.Handle("any;+;c4", ParseCommand("/bind team/x"))
	r.Handle("any;+;c4", ParseCommand("/unbind"))
	where := r.Handle("any;+;c4", ParseCommand("/where"))
	if where.Message != "未绑定" {
		t.Fatalf("expected unbound after /unbind, got %+v", where)
	}
}
