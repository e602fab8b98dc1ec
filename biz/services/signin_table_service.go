package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"console-checkout/biz"
	"console-checkout/biz/signin"
	"console-checkout/cache"
	"console-checkout/common"

	"go.uber.org/zap"
)

// IntentRequest 登录项表格编辑请求
type IntentRequest struct {
	Op    string `json:"op"`
	Index int    `json:"index"`
	Field string `json:"field,omitempty"`
	Value string `json:"value,omitempty"`
}

// SigninTableService 应用登录项表格的读取与编辑
// 同一应用的修改在进程内串行执行，每次都基于最新保存的表格
type SigninTableService struct {
	store Store
	now   func() time.Time
	locks sync.Map // owner/application -> *sync.Mutex
}

// NewSigninTableService 创建登录项表格服务
func NewSigninTableService(store Store) *SigninTableService {
	return &SigninTableService{store: store, now: time.Now}
}

// Get 读取表格：缓存 -> 数据库 -> 默认表格
func (s *SigninTableService) Get(ctx context.Context, owner, application string) (signin.Table, error) {
	raw, err := cache.GetSigninTable(ctx, owner, application)
	if err == nil && raw != nil {
		var t signin.Table
		if err := json.Unmarshal(raw, &t); err == nil {
			common.RecordCacheLookup("signin_table", true)
			return signin.Normalize(t), nil
		}
		zap.L().Warn("Discarding invalid signin table cache", zap.String("owner", owner), zap.String("application", application))
	}
	common.RecordCacheLookup("signin_table", false)

	raw, err = s.store.GetSigninTable(ctx, owner, application)
	if err != nil {
		return nil, err
	}

	var t signin.Table
	if raw == nil {
		t = signin.DefaultTable()
	} else if err := json.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("invalid signin table of %s/%s: %w", owner, application, err)
	}
	t = signin.Normalize(t)

	if data, err := json.Marshal(t); err == nil {
		_ = cache.SetSigninTable(ctx, owner, application, data, cache.DefaultSigninTableTTL)
	}
	return t, nil
}

func (s *SigninTableService) lock(owner, application string) func() {
	v, _ := s.locks.LoadOrStore(owner+"/"+application, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// Replace 整体替换表格，行的类别、必填和规则按名称重新整理
func (s *SigninTableService) Replace(ctx context.Context, owner, application string, t signin.Table) (signin.Table, error) {
	if err := biz.ValidateTableSize(len(t)); err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(t))
	for _, name := range t.Names() {
		if seen[name] {
			return nil, fmt.Errorf("%w: %q", signin.ErrDuplicateName, name)
		}
		seen[name] = true
	}

	t = signin.Normalize(t)

	unlock := s.lock(owner, application)
	defer unlock()
	if err := s.save(ctx, owner, application, t); err != nil {
		common.RecordSigninTableMutation("replace", "error")
		return nil, err
	}
	common.RecordSigninTableMutation("replace", "success")
	return t, nil
}

// Apply 对表格应用一次编辑并保存，失败时表格不变
func (s *SigninTableService) Apply(ctx context.Context, owner, application string, req IntentRequest) (signin.Table, error) {
	if err := biz.ValidateIntentOp(req.Op); err != nil {
		return nil, err
	}
	in, err := signin.ParseIntent(req.Op, req.Index, req.Field, req.Value, s.now())
	if err != nil {
		common.RecordSigninTableMutation(req.Op, "rejected")
		return nil, err
	}

	unlock := s.lock(owner, application)
	defer unlock()

	t, err := s.Get(ctx, owner, application)
	if err != nil {
		return nil, err
	}

	var published signin.Table
	editor := signin.Editor{OnUpdateTable: func(next signin.Table) { published = next }}
	if _, err := editor.Dispatch(t, in); err != nil {
		common.RecordSigninTableMutation(req.Op, "rejected")
		zap.L().Debug("Signin table edit rejected",
			zap.String("owner", owner),
			zap.String("application", application),
			zap.String("op", req.Op),
			zap.Int("row_index", req.Index),
			zap.Error(err))
		return t, err
	}

	if err := biz.ValidateTableSize(len(published)); err != nil {
		common.RecordSigninTableMutation(req.Op, "rejected")
		return t, err
	}

	if err := s.save(ctx, owner, application, published); err != nil {
		common.RecordSigninTableMutation(req.Op, "error")
		return t, err
	}
	common.RecordSigninTableMutation(req.Op, "success")

	zap.L().Info("Signin table updated",
		zap.String("owner", owner),
		zap.String("application", application),
		zap.String("op", req.Op),
		zap.Int("row_index", req.Index),
		zap.Int("rows", len(published)))
	return published, nil
}

func (s *SigninTableService) save(ctx context.Context, owner, application string, t signin.Table) error {
	raw, err := json.Marshal(t)
	if err != nil {
		return err
	}
	if err := s.store.SaveSigninTable(ctx, owner, application, raw); err != nil {
		return err
	}
	_ = cache.InvalidateSigninTable(ctx, owner, application)
	return nil
}
