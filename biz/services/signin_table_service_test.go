package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"console-checkout/biz/signin"
)

func newTestSigninService(m *memStore) *SigninTableService {
	s := NewSigninTableService(m)
	s.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return s
}

// TestSigninTableDefault 测试新应用使用默认表格
func TestSigninTableDefault(t *testing.T) {
	s := newTestSigninService(newMemStore())

	table, err := s.Get(context.Background(), "acme", "app")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(table) != len(signin.DefaultTable()) {
		t.Errorf("rows = %d, want default table", len(table))
	}
	for _, row := range table {
		if row.Key == "" || row.Kind == "" {
			t.Errorf("Row not normalized: %+v", row)
		}
	}
}

// TestSigninTableNormalizesStored 测试旧数据补齐 key 和类别
func TestSigninTableNormalizesStored(t *testing.T) {
	m := newMemStore()
	m.tables["acme/app"] = []byte(`[{"name":"ID","visible":true},{"name":"Text 1","visible":true,"isCustom":true,"label":"<b>hi</b>"}]`)
	s := newTestSigninService(m)

	table, err := s.Get(context.Background(), "acme", "app")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(table) != 2 || table[0].Kind != signin.KindID || table[1].Kind != signin.KindCustom {
		t.Errorf("Unexpected table %+v", table)
	}
}

// TestSigninTableApply 测试编辑并保存
func TestSigninTableApply(t *testing.T) {
	m := newMemStore()
	s := newTestSigninService(m)
	ctx := context.Background()

	table, err := s.Apply(ctx, "acme", "app", IntentRequest{Op: "addCustom"})
	if err != nil {
		t.Fatalf("Apply(addCustom) error = %v", err)
	}
	last := table[len(table)-1]
	if !last.IsCustom || last.Name != "Text 1700000000000" {
		t.Errorf("Unexpected custom row %+v", last)
	}

	var saved signin.Table
	if err := json.Unmarshal(m.tables["acme/app"], &saved); err != nil {
		t.Fatalf("stored table is not valid JSON: %v", err)
	}
	if len(saved) != len(table) {
		t.Errorf("saved rows = %d, want %d", len(saved), len(table))
	}

	table, err = s.Apply(ctx, "acme", "app", IntentRequest{Op: "up", Index: len(table) - 1})
	if err != nil {
		t.Fatalf("Apply(up) error = %v", err)
	}
	if table[len(table)-2].Name != "Text 1700000000000" {
		t.Errorf("Custom row not moved up: %v", table.Names())
	}
}

// TestSigninTableApplyRejected 测试非法编辑不保存
func TestSigninTableApplyRejected(t *testing.T) {
	m := newMemStore()
	s := newTestSigninService(m)
	ctx := context.Background()

	tests := []struct {
		name string
		req  IntentRequest
		want error
	}{
		{"未知字段", IntentRequest{Op: "update", Index: 0, Field: "color", Value: "red"}, signin.ErrUnknownField},
		{"重复名称", IntentRequest{Op: "update", Index: 0, Field: "name", Value: "Languages"}, signin.ErrDuplicateName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.Apply(ctx, "acme", "app", tt.req); !errors.Is(err, tt.want) {
				t.Errorf("Apply() error = %v, want %v", err, tt.want)
			}
			if _, ok := m.tables["acme/app"]; ok {
				t.Error("Rejected edit should not be saved")
			}
		})
	}

	if _, err := s.Apply(ctx, "acme", "app", IntentRequest{Op: "drop"}); err == nil {
		t.Error("Expected error for unknown op")
	}
}

// TestSigninTableReplace 测试整体替换
func TestSigninTableReplace(t *testing.T) {
	m := newMemStore()
	s := newTestSigninService(m)
	ctx := context.Background()

	dup := signin.Table{{Name: "Logo"}, {Name: "Logo"}}
	if _, err := s.Replace(ctx, "acme", "app", dup); !errors.Is(err, signin.ErrDuplicateName) {
		t.Errorf("Replace(dup) error = %v", err)
	}

	table, err := s.Replace(ctx, "acme", "app", signin.Table{{Name: "Logo", Visible: true}, {Name: "Username", Visible: true}})
	if err != nil {
		t.Fatalf("Replace() error = %v", err)
	}
	if table[1].Kind != signin.KindCredential || table[0].Key == "" {
		t.Errorf("Replaced table not normalized: %+v", table)
	}
	if _, ok := m.tables["acme/app"]; !ok {
		t.Error("Replaced table not saved")
	}
}

// TestSigninTableReplaceInvariants 测试替换时纠正客户端提交的行
func TestSigninTableReplaceInvariants(t *testing.T) {
	tests := []struct {
		name  string
		row   signin.Row
		check func(t *testing.T, row signin.Row)
	}{
		{"隐藏行不能必填", signin.Row{Name: "Username", Visible: false, Required: true}, func(t *testing.T, row signin.Row) {
			if row.Required {
				t.Errorf("Hidden row saved as required: %+v", row)
			}
		}},
		{"伪造类别", signin.Row{Name: "Password", Kind: signin.KindCustom, Visible: true}, func(t *testing.T, row signin.Row) {
			if row.Kind != signin.KindCredential {
				t.Errorf("Kind = %q, want %q", row.Kind, signin.KindCredential)
			}
		}},
		{"非法规则", signin.Row{Name: "Providers", Kind: signin.KindID, Rule: "bogus", Visible: true}, func(t *testing.T, row signin.Row) {
			if row.Kind != signin.KindProviders || row.Rule != signin.RuleNone {
				t.Errorf("Unexpected row %+v", row)
			}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newMemStore()
			s := newTestSigninService(m)
			ctx := context.Background()

			if _, err := s.Replace(ctx, "acme", "app", signin.Table{tt.row}); err != nil {
				t.Fatalf("Replace() error = %v", err)
			}
			stored, err := s.Get(ctx, "acme", "app")
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			tt.check(t, stored[0])
		})
	}

	m := newMemStore()
	s := newTestSigninService(m)
	table, err := s.Replace(context.Background(), "acme", "app", signin.Table{{Key: "k1", Name: "Logo"}, {Key: "k1", Name: "ID"}})
	if err != nil {
		t.Fatalf("Replace() error = %v", err)
	}
	if table[0].Key == table[1].Key {
		t.Errorf("Duplicate keys kept: %q", table[0].Key)
	}

	// 之后的字段编辑按纠正后的类别进行
	if _, err := s.Replace(context.Background(), "acme", "app", signin.Table{{Name: "Password", Kind: signin.KindCustom, Visible: true}}); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}
	if _, err := s.Apply(context.Background(), "acme", "app", IntentRequest{Op: "update", Index: 0, Field: "name", Value: "Username"}); err != nil {
		t.Errorf("Apply(rename) error = %v", err)
	}
}

// TestSigninTableConcurrentApply 测试同一应用的并发编辑不会丢失
func TestSigninTableConcurrentApply(t *testing.T) {
	m := newMemStore()
	s := newTestSigninService(m)
	ctx := context.Background()

	const edits = 8
	var wg sync.WaitGroup
	errs := make(chan error, edits)
	for i := 0; i < edits; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Apply(ctx, "acme", "app", IntentRequest{Op: "add"}); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("Apply(add) error = %v", err)
	}

	table, err := s.Get(ctx, "acme", "app")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if want := len(signin.DefaultTable()) + edits; len(table) != want {
		t.Errorf("rows = %d, want %d", len(table), want)
	}
	seen := make(map[string]bool)
	for _, name := range table.Names() {
		if seen[name] {
			t.Errorf("Duplicate name %q", name)
		}
		seen[name] = true
	}
}

// TestSigninTableSaveFailure 测试保存失败时返回原表格
func TestSigninTableSaveFailure(t *testing.T) {
	m := newMemStore()
	m.saveErr = errors.New("disk full")
	s := newTestSigninService(m)

	table, err := s.Apply(context.Background(), "acme", "app", IntentRequest{Op: "delete", Index: 0})
	if !errors.Is(err, m.saveErr) {
		t.Fatalf("Apply() error = %v", err)
	}
	if len(table) != len(signin.DefaultTable()) {
		t.Error("Failed save should return the unchanged table")
	}
}
