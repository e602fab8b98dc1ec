// Package signin 实现登录页配置项表格的编辑逻辑。
//
// 表格本身由调用方持有，这里的所有操作都返回新的表格，不会修改传入的切片。
package signin

import (
	"strings"

	"github.com/google/uuid"
)

// Kind 登录项的语义类别，创建行（或修改名称）时确定，之后随行保存
type Kind string

const (
	KindCustom     Kind = "custom"     // 自定义文本项
	KindText       Kind = "text"       // 名称带生成前缀、但不是自定义项
	KindCredential Kind = "credential" // Username / Password
	KindProviders  Kind = "providers"
	KindID         Kind = "id"
	KindStandard   Kind = "standard" // 其他目录项
	KindUnselected Kind = "unselected"
)

// 固定名称
const (
	NameUsername  = "Username"
	NamePassword  = "Password"
	NameProviders = "Providers"
	NameID        = "ID"

	// CustomPrefix 自定义项名称前缀，后接毫秒时间戳
	CustomPrefix = "Text "
	// PlaceholderName 目录用尽时新增行使用的占位名称
	PlaceholderName = "Please select a signin item"

	RuleNone = "None"
)

// Row 表格中的一行
type Row struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	Kind        Kind   `json:"kind"`
	Visible     bool   `json:"visible"`
	Required    bool   `json:"required,omitempty"`
	Rule        string `json:"rule,omitempty"`
	Label       string `json:"label,omitempty"`
	Placeholder string `json:"placeholder,omitempty"`
	IsCustom    bool   `json:"isCustom,omitempty"`
}

// Table 有序的登录项列表
type Table []Row

var newKey = func() string {
	return uuid.NewString()
}

// KindOf 根据名称和自定义标记解析行类别
func KindOf(name string, isCustom bool) Kind {
	switch {
	case isCustom:
		return KindCustom
	case strings.HasPrefix(name, CustomPrefix):
		return KindText
	case name == NameUsername || name == NamePassword:
		return KindCredential
	case name == NameProviders:
		return KindProviders
	case name == NameID:
		return KindID
	case inCatalog(name):
		return KindStandard
	default:
		return KindUnselected
	}
}

// Names 返回表格中所有行的名称
func (t Table) Names() []string {
	names := make([]string, 0, len(t))
	for _, row := range t {
		names = append(names, row.Name)
	}
	return names
}

// IndexOf 按 key 查找行的位置，不存在时返回 -1
func (t Table) IndexOf(key string) int {
	for i, row := range t {
		if row.Key == key {
			return i
		}
	}
	return -1
}

func (t Table) clone() Table {
	out := make(Table, len(t))
	copy(out, t)
	return out
}

func (t Table) hasName(name string, except int) bool {
	for i, row := range t {
		if i != except && row.Name == name {
			return true
		}
	}
	return false
}

// Normalize 整理外部传入或旧版本保存的表格：
// 类别总由名称和自定义标记推出，隐藏行不能必填，
// 类别不支持的规则重置为 None，缺失或重复的 key 重新生成
func Normalize(t Table) Table {
	out := t.clone()
	keys := make(map[string]bool, len(out))
	for i := range out {
		row := &out[i]
		if row.Key == "" || keys[row.Key] {
			row.Key = newKey()
		}
		keys[row.Key] = true

		row.Kind = KindOf(row.Name, row.IsCustom)
		if !row.Visible {
			row.Required = false
		}
		if row.IsCustom {
			row.Required = false
			row.Rule = ""
		} else if !ShapeOf(*row).hasRule(row.Rule) {
			row.Rule = RuleNone
		}
	}
	return out
}

// DefaultTable 新应用的默认登录项
func DefaultTable() Table {
	names := []string{
		"Back button",
		"Languages",
		"Logo",
		"Signin methods",
		NameUsername,
		NamePassword,
		NameProviders,
		"Agreement",
		"Forgot password?",
		"Login button",
		"Signup link",
	}

	t := make(Table, 0, len(names))
	for _, name := range names {
		row := Row{
			Key:      newKey(),
			Name:     name,
			Kind:     KindOf(name, false),
			Visible:  true,
			Required: true,
			Rule:     RuleNone,
		}
		if name == NameProviders {
			row.Rule = "small"
		}
		t = append(t, row)
	}
	return t
}
